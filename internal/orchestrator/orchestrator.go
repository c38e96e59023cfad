// Package orchestrator fans out per-source crawl pipelines under a bounded
// admission gate, isolating failures so one broken source never stalls or
// corrupts the others.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IliaW/catalog-crawler/internal/enrich"
	"github.com/IliaW/catalog-crawler/internal/model"
	"github.com/IliaW/catalog-crawler/internal/render"
	"github.com/IliaW/catalog-crawler/internal/telemetry"
	"github.com/IliaW/catalog-crawler/internal/walker"
)

type RecordSink interface {
	Upsert(*model.CatalogRecord) bool
}

// IndexSink is best-effort: a failure here never fails the crawl.
type IndexSink interface {
	Index([]*model.CatalogRecord) int
}

type SessionLog interface {
	Start(sourceID int64) int64
	Complete(sessionID int64, recordsFound, pagesWalked int, status string, runErr error)
}

type SourceDLQ interface {
	SendSourceToDLQ(sourceName string, err error)
}

type Orchestrator struct {
	Walker      *walker.Walker
	Enricher    *enrich.Enricher // nil when enrichment is disabled
	Records     RecordSink
	Index       IndexSink
	Sessions    SessionLog
	DLQ         SourceDLQ
	Concurrency int
	Metrics     *telemetry.CrawlMetrics
}

// Run fans the sources out under the admission gate and blocks until every
// admitted pipeline reached Done or Failed. Cancellation is cooperative: once
// ctx is done no new source is admitted, in-flight pipelines finish normally.
// Run itself never fails; everything degrades to the snapshot's error list.
func (o *Orchestrator) Run(ctx context.Context, sources []*model.Source) *RunSnapshot {
	state := newRunState(len(sources))
	slog.Info("starting crawl run.", slog.Int("sources", len(sources)),
		slog.Int("concurrency limit", o.Concurrency))

	gate := make(chan struct{}, o.Concurrency)
	wg := &sync.WaitGroup{}
	for _, src := range sources {
		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			slog.Info("run cancelled. no new source pipelines will start.")
			wg.Wait()
			return state.Snapshot()
		}
		wg.Add(1)
		go func(src *model.Source) {
			defer wg.Done()
			defer func() { <-gate }()
			o.runPipeline(ctx, src, state)
		}(src)
	}
	wg.Wait()

	snap := state.Snapshot()
	slog.Info("crawl run finished.", slog.Int("sources done", snap.SourcesDone),
		slog.Int("records found", snap.RecordsFound),
		slog.Int("records enriched", snap.RecordsEnriched),
		slog.Int("errors", len(snap.Errors)),
		slog.Duration("took", time.Since(snap.StartedAt)))

	return snap
}

// runPipeline drives one source Pending -> Fetching/Parsing -> Enriching ->
// Done|Failed. It must not let anything escape: a panic or permanent error is
// recorded and the siblings keep running.
func (o *Orchestrator) runPipeline(ctx context.Context, src *model.Source, state *RunState) {
	var sessionID int64
	defer func() {
		if r := recover(); r != nil {
			slog.Error("source pipeline panicked.", slog.String("source", src.Name),
				slog.Any("panic", r))
			err := fmt.Errorf("panic: %v", r)
			state.recordError(src.Name, err)
			o.DLQ.SendSourceToDLQ(src.Name, err)
			// The session opened below must still be closed exactly once.
			o.Sessions.Complete(sessionID, 0, 0, model.SessionFailed, err)
			state.sourceDone(0, 0)
			o.Metrics.FailedSourceCnt(1)
		}
	}()

	slog.Info("crawling source.", slog.String("source", src.Name),
		slog.String("url", src.ListingURL), slog.String("mode", src.RenderMode.String()))
	sessionID = o.Sessions.Start(src.ID)

	out := o.Walker.Walk(ctx, src)
	slog.Info("walk finished.", slog.String("source", src.Name),
		slog.Int("pages", out.Pages), slog.Int("records", len(out.Records)),
		slog.String("state", out.State))

	// A source with a registered Weidian shop stamps its shop link on every
	// record up front; the enricher then skips records that already carry
	// links.
	if src.WeidianID != "" {
		stampSellerShop(src, out.Records)
	}

	enriched := 0
	if o.Enricher != nil && len(out.Records) > 0 {
		var recErrs []enrich.RecordError
		enriched, recErrs = o.Enricher.Enrich(ctx, out.Records)
		for _, re := range recErrs {
			slog.Debug("enrichment failed for record.", slog.String("source", src.Name),
				slog.String("record", re.RecordID), slog.String("err", re.Err.Error()))
		}
	}

	// Accumulated records are persisted even when the walk ended in
	// fetch_error: a partial catalog beats none.
	for _, rec := range out.Records {
		o.Records.Upsert(rec)
	}
	o.Metrics.RecordsFoundCnt(int64(len(out.Records)))
	if len(out.Records) > 0 {
		indexed := o.Index.Index(out.Records)
		slog.Debug("records handed to index sink.", slog.String("source", src.Name),
			slog.Int("indexed", indexed))
	}

	status := model.SessionCompleted
	if len(out.Records) == 0 {
		status = model.SessionNoRecords
	}
	if out.Err != nil && render.IsPermanent(out.Err) {
		// Permanent failure ends the pipeline in Failed and surfaces in the
		// run's error list; transient errors only shorten the walk.
		status = model.SessionFailed
		state.recordError(src.Name, out.Err)
		o.DLQ.SendSourceToDLQ(src.Name, out.Err)
		o.Metrics.FailedSourceCnt(1)
	}
	o.Sessions.Complete(sessionID, len(out.Records), out.Pages, status, out.Err)
	state.sourceDone(len(out.Records), enriched)
}

func stampSellerShop(src *model.Source, records []*model.CatalogRecord) {
	shopURL := fmt.Sprintf("https://weidian.com/?userid=%s", src.WeidianID)
	for _, rec := range records {
		if rec.PurchaseLinks == nil {
			rec.PurchaseLinks = map[string]string{}
		}
		if _, ok := rec.PurchaseLinks["weidian"]; !ok {
			rec.PurchaseLinks["weidian"] = shopURL
		}
		if rec.PurchasePlatform == "" {
			rec.PurchasePlatform = "weidian"
		}
	}
}
