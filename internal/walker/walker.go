// Package walker drives the per-source fetch→parse→continue loop until one of
// its terminal conditions.
package walker

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/IliaW/catalog-crawler/internal"
	"github.com/IliaW/catalog-crawler/internal/derive"
	"github.com/IliaW/catalog-crawler/internal/model"
	"github.com/IliaW/catalog-crawler/internal/parse"
	"github.com/IliaW/catalog-crawler/internal/render"
	"github.com/IliaW/catalog-crawler/internal/telemetry"
)

// Terminal states of a walk.
const (
	StateEmptyFirstPage  = "empty_first_page"
	StateExhausted       = "exhausted"
	StateMaxPagesReached = "max_pages_reached"
	StateFetchError      = "fetch_error"
	StateCancelled       = "cancelled"
)

const maxTitleLength = 200

// SnapshotArchiver stores raw page bodies that no parse strategy matched, for
// offline markup forensics.
type SnapshotArchiver interface {
	ArchiveSnapshot(pageURL, body string)
}

type Outcome struct {
	Records []*model.CatalogRecord
	Pages   int
	State   string
	Err     error // set when State == StateFetchError
}

type Walker struct {
	Fetcher  render.Fetcher
	Deriver  *derive.FieldDeriver
	Archive  SnapshotArchiver // optional
	MaxPages int
	Delay    time.Duration
	Metrics  *telemetry.CrawlMetrics
}

func (w *Walker) Walk(ctx context.Context, src *model.Source) *Outcome {
	out := &Outcome{}
	currentURL := src.ListingURL

	for currentURL != "" {
		if ctx.Err() != nil {
			out.State = StateCancelled
			return out
		}

		res, err := w.Fetcher.Fetch(ctx, currentURL, src.RenderMode)
		if err != nil {
			// Records accumulated on earlier pages are preserved.
			slog.Error("page fetch failed.", slog.String("source", src.Name),
				slog.String("url", currentURL), slog.String("err", err.Error()))
			w.Metrics.FetchErrorCnt(1)
			out.State = StateFetchError
			out.Err = err
			return out
		}
		out.Pages++
		w.Metrics.PagesFetchedCnt(1)

		pr := parse.Parse(res.Body, res.FinalURL)
		if len(pr.Candidates) == 0 {
			slog.Debug("no parse strategy matched.", slog.String("source", src.Name),
				slog.String("url", currentURL))
			if w.Archive != nil {
				w.Archive.ArchiveSnapshot(currentURL, res.Body)
			}
			// An empty first page usually means an inactive source. Stop
			// before wasting requests on pagination.
			if out.Pages == 1 {
				out.State = StateEmptyFirstPage
				return out
			}
		}
		for _, c := range pr.Candidates {
			out.Records = append(out.Records, w.buildRecord(src, c))
		}

		currentURL = pr.NextPageURL
		if currentURL == "" {
			out.State = StateExhausted
			return out
		}
		if out.Pages >= w.MaxPages {
			out.State = StateMaxPagesReached
			return out
		}

		select {
		case <-time.After(w.Delay):
		case <-ctx.Done():
			out.State = StateCancelled
			return out
		}
	}

	out.State = StateExhausted
	return out
}

func (w *Walker) buildRecord(src *model.Source, c parse.Candidate) *model.CatalogRecord {
	// Truncate on rune boundaries: byte slicing would cut a multibyte title
	// mid-character and produce invalid UTF-8.
	title := c.Title
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}

	rec := &model.CatalogRecord{
		ID:         internal.RecordID(src.ID, c.DetailURL),
		SourceID:   src.ID,
		SourceName: src.Name,
		Title:      title,
		DetailURL:  c.DetailURL,
		ImageURL:   c.ImageURL,
		CapturedAt: time.Now().Unix(),
	}
	if price, ok := w.Deriver.Price(title); ok {
		rec.Price = &price
		rec.Currency = "CNY"
	}
	if brand, ok := w.Deriver.Brand(title); ok {
		rec.Brand = brand
	}
	if category, ok := w.Deriver.Category(title); ok {
		rec.Category = category
	}

	return rec
}
