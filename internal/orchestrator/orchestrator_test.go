package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IliaW/catalog-crawler/internal/derive"
	"github.com/IliaW/catalog-crawler/internal/keyword"
	"github.com/IliaW/catalog-crawler/internal/model"
	"github.com/IliaW/catalog-crawler/internal/render"
	"github.com/IliaW/catalog-crawler/internal/telemetry"
	"github.com/IliaW/catalog-crawler/internal/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher serves one single-page listing per source and tracks how many
// fetches run at the same time.
type countingFetcher struct {
	pages     map[string]string
	errs      map[string]error
	delay     time.Duration
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
	panicURLs map[string]bool
}

func (f *countingFetcher) Fetch(_ context.Context, url string, _ model.RenderMode) (*render.Result, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicURLs[url] {
		panic("fetcher blew up")
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	return &render.Result{Body: f.pages[url], FinalURL: url, StatusCode: 200}, nil
}

type memorySink struct {
	mu      sync.Mutex
	records []*model.CatalogRecord
}

func (s *memorySink) Upsert(rec *model.CatalogRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return true
}

func (s *memorySink) all() []*model.CatalogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.CatalogRecord(nil), s.records...)
}

type memoryIndex struct {
	mu      sync.Mutex
	batches [][]*model.CatalogRecord
}

func (s *memoryIndex) Index(records []*model.CatalogRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return len(records)
}

type sessionEntry struct {
	sourceID int64
	status   string
	records  int
	pages    int
}

type memorySessions struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*sessionEntry
}

func newMemorySessions() *memorySessions {
	return &memorySessions{entries: make(map[int64]*sessionEntry)}
}

func (s *memorySessions) Start(sourceID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.entries[s.nextID] = &sessionEntry{sourceID: sourceID, status: model.SessionRunning}
	return s.nextID
}

func (s *memorySessions) Complete(sessionID int64, recordsFound, pagesWalked int, status string, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return
	}
	e.status = status
	e.records = recordsFound
	e.pages = pagesWalked
}

func (s *memorySessions) bySource(sourceID int64) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.sourceID == sourceID {
			return e
		}
	}
	return nil
}

type memoryDLQ struct {
	mu      sync.Mutex
	sources []string
}

func (d *memoryDLQ) SendSourceToDLQ(sourceName string, _ error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, sourceName)
}

func listingFor(id int64) string {
	return fmt.Sprintf(`<div class="showindex__children">
		<a class="album__main" href="/albums/%d"><div class="album__title">Item %d</div></a>
	</div>`, id, id)
}

func sourceURL(id int64) string {
	return fmt.Sprintf("https://seller-%d.example.net/albums", id)
}

func makeSources(n int) ([]*model.Source, map[string]string) {
	sources := make([]*model.Source, 0, n)
	pages := make(map[string]string, n)
	for i := 1; i <= n; i++ {
		id := int64(i)
		sources = append(sources, &model.Source{
			ID: id, Name: fmt.Sprintf("seller-%d", id), ListingURL: sourceURL(id)})
		pages[sourceURL(id)] = listingFor(id)
	}
	return sources, pages
}

func newTestOrchestrator(f render.Fetcher, concurrency int) (*Orchestrator, *memorySink, *memoryIndex, *memorySessions, *memoryDLQ) {
	sink := &memorySink{}
	index := &memoryIndex{}
	sessions := newMemorySessions()
	dlq := &memoryDLQ{}
	o := &Orchestrator{
		Walker: &walker.Walker{
			Fetcher:  f,
			Deriver:  derive.NewFieldDeriver(keyword.NewStaticProvider()),
			MaxPages: 10,
			Metrics:  telemetry.NoopCrawl(),
		},
		Records:     sink,
		Index:       index,
		Sessions:    sessions,
		DLQ:         dlq,
		Concurrency: concurrency,
		Metrics:     telemetry.NoopCrawl(),
	}
	return o, sink, index, sessions, dlq
}

func TestRunRespectsAdmissionGate(t *testing.T) {
	sources, pages := makeSources(10)
	f := &countingFetcher{pages: pages, delay: 20 * time.Millisecond}
	o, sink, _, _, _ := newTestOrchestrator(f, 3)

	snap := o.Run(context.Background(), sources)

	assert.Equal(t, 10, snap.SourcesDone)
	assert.Equal(t, 10, snap.RecordsFound)
	assert.Empty(t, snap.Errors)
	assert.Len(t, sink.all(), 10)
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(3))
	assert.Greater(t, f.maxSeen.Load(), int32(1))
}

func TestRunIsolatesPermanentFailure(t *testing.T) {
	sources, pages := makeSources(4)
	broken := sources[1]
	delete(pages, broken.ListingURL)
	f := &countingFetcher{
		pages: pages,
		errs: map[string]error{
			broken.ListingURL: &render.FetchError{
				Kind: render.Permanent, URL: broken.ListingURL, StatusCode: 403,
				Err: errors.New("blocked")},
		},
	}
	o, sink, _, sessions, dlq := newTestOrchestrator(f, 2)

	snap := o.Run(context.Background(), sources)

	assert.Equal(t, 4, snap.SourcesDone)
	assert.Equal(t, 3, snap.RecordsFound)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], broken.Name)
	assert.Equal(t, []string{broken.Name}, dlq.sources)
	assert.Equal(t, model.SessionFailed, sessions.bySource(broken.ID).status)
	assert.Equal(t, model.SessionCompleted, sessions.bySource(sources[0].ID).status)
	// Healthy siblings' records still reached the sink.
	assert.Len(t, sink.all(), 3)
}

func TestRunTransientFailureCompletesSession(t *testing.T) {
	sources, pages := makeSources(2)
	flaky := sources[0]
	delete(pages, flaky.ListingURL)
	f := &countingFetcher{
		pages: pages,
		errs: map[string]error{
			flaky.ListingURL: &render.FetchError{
				Kind: render.Transient, URL: flaky.ListingURL,
				Err: errors.New("timeout")},
		},
	}
	o, _, _, sessions, dlq := newTestOrchestrator(f, 2)

	snap := o.Run(context.Background(), sources)

	// A transient fetch error shortens the walk but is not a source failure.
	assert.Empty(t, snap.Errors)
	assert.Empty(t, dlq.sources)
	assert.Equal(t, model.SessionNoRecords, sessions.bySource(flaky.ID).status)
}

func TestRunRecoversPanickedPipeline(t *testing.T) {
	sources, pages := makeSources(3)
	f := &countingFetcher{
		pages:     pages,
		panicURLs: map[string]bool{sources[2].ListingURL: true},
	}
	o, sink, _, sessions, dlq := newTestOrchestrator(f, 3)

	snap := o.Run(context.Background(), sources)

	assert.Equal(t, 3, snap.SourcesDone)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], sources[2].Name)
	assert.Len(t, sink.all(), 2)
	// The panicked pipeline's session is still closed, and the source is
	// dead-lettered like any other failed source.
	assert.Equal(t, model.SessionFailed, sessions.bySource(sources[2].ID).status)
	assert.Equal(t, []string{sources[2].Name}, dlq.sources)
	assert.Equal(t, model.SessionCompleted, sessions.bySource(sources[0].ID).status)
}

// gatedFetcher signals when the first fetch starts and holds it until the test
// releases it, so cancellation timing is deterministic.
type gatedFetcher struct {
	inner   *countingFetcher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *gatedFetcher) Fetch(ctx context.Context, url string, mode model.RenderMode) (*render.Result, error) {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return f.inner.Fetch(ctx, url, mode)
}

func TestRunCancellationAdmitsNoNewSources(t *testing.T) {
	sources, pages := makeSources(8)
	f := &gatedFetcher{
		inner:   &countingFetcher{pages: pages},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o, sink, _, _, _ := newTestOrchestrator(f, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan *RunSnapshot)
	go func() { done <- o.Run(ctx, sources) }()

	// Wait until the first pipeline holds the gate, then cancel. The admission
	// loop is blocked on the full gate and must take the ctx branch.
	<-f.started
	cancel()
	// Give the admission loop time to observe ctx while the gate is still
	// full, then let the held fetch finish.
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	snap := <-done

	// The in-flight pipeline finished normally, the rest were never admitted.
	assert.Equal(t, 1, snap.SourcesDone)
	assert.Len(t, sink.all(), 1)
}

func TestRunIndexesOnlyNonEmptyBatches(t *testing.T) {
	sources, pages := makeSources(2)
	pages[sources[1].ListingURL] = `<html><body>empty</body></html>`
	f := &countingFetcher{pages: pages}
	o, _, index, sessions, _ := newTestOrchestrator(f, 2)

	o.Run(context.Background(), sources)

	require.Len(t, index.batches, 1)
	assert.Len(t, index.batches[0], 1)
	assert.Equal(t, model.SessionNoRecords, sessions.bySource(sources[1].ID).status)
}

func TestStampSellerShop(t *testing.T) {
	src := &model.Source{ID: 1, Name: "seller-1", WeidianID: "424242"}
	withLink := &model.CatalogRecord{ID: "a", PurchaseLinks: map[string]string{
		"weidian": "https://weidian.com/item.html?itemID=1"}, PurchasePlatform: "weidian"}
	bare := &model.CatalogRecord{ID: "b"}

	stampSellerShop(src, []*model.CatalogRecord{withLink, bare})

	assert.Equal(t, "https://weidian.com/item.html?itemID=1", withLink.PurchaseLinks["weidian"])
	assert.Equal(t, "https://weidian.com/?userid=424242", bare.PurchaseLinks["weidian"])
	assert.Equal(t, "weidian", bare.PurchasePlatform)
}
