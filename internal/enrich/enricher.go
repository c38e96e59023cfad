// Package enrich revisits record detail pages to recover third-party
// marketplace purchase links.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"github.com/IliaW/catalog-crawler/internal/model"
	"github.com/IliaW/catalog-crawler/internal/render"
	"github.com/IliaW/catalog-crawler/internal/telemetry"
	jsoniter "github.com/json-iterator/go"
)

// Platform entries in fixed priority order. The first platform that produced
// any match becomes the record's canonical purchase platform.
var platformPatterns = []struct {
	platform string
	patterns []*regexp.Regexp
}{
	{"weidian", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://(?:www\.)?weidian\.com/item\.html\?itemID=\d+`),
		regexp.MustCompile(`(?i)https?://shop\d+\.v\.weidian\.com/item\.html\?itemID=\d+`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?weidian\.com/\?userid=\d+`),
	}},
	{"taobao", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://item\.taobao\.com/item\.htm\?[^"\s]+id=\d+`),
		regexp.MustCompile(`(?i)https?://(?:[\w]+\.)?taobao\.com/[^"\s]+`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?tmall\.com/[^"\s]+`),
	}},
	{"1688", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://detail\.1688\.com/offer/\d+\.html`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?1688\.com/[^"\s]+`),
	}},
	{"pandabuy", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://(?:www\.)?pandabuy\.com/product\?[^"\s]+`),
	}},
	{"superbuy", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://(?:www\.)?superbuy\.com/[^"\s]+`),
	}},
	{"wegobuy", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://(?:www\.)?wegobuy\.com/[^"\s]+`),
	}},
	{"cssbuy", []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://(?:www\.)?cssbuy\.com/[^"\s]+`),
	}},
}

// RecordError is an isolated per-record enrichment failure. The record keeps
// whatever it had; sibling records are unaffected.
type RecordError struct {
	RecordID string
	Err      error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
}

// VisitedCache marks detail pages already enriched recently so repeated runs
// skip the rendered visit.
type VisitedCache interface {
	SeenRecently(url string) bool
	MarkVisited(url string)
}

type Enricher struct {
	Fetcher      render.Fetcher
	Cache        VisitedCache // optional
	MaxPerSource int
	Delay        time.Duration
	Metrics      *telemetry.CrawlMetrics
}

// Enrich visits detail pages of records lacking purchase links, up to the
// per-source cap. Failures are recorded and skipped, never propagated.
func (e *Enricher) Enrich(ctx context.Context, records []*model.CatalogRecord) (int, []RecordError) {
	enriched := 0
	var errs []RecordError

	for _, rec := range records {
		if enriched >= e.MaxPerSource {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if len(rec.PurchaseLinks) > 0 {
			continue
		}
		if e.Cache != nil && e.Cache.SeenRecently(rec.DetailURL) {
			slog.Debug("detail page enriched recently. skipping.", slog.String("url", rec.DetailURL))
			continue
		}

		res, err := e.Fetcher.Fetch(ctx, rec.DetailURL, model.Rendered)
		if err != nil {
			errs = append(errs, RecordError{RecordID: rec.ID, Err: err})
		} else {
			links := ExtractPurchaseLinks(res.Body)
			if len(links) > 0 {
				rec.PurchaseLinks = links
				rec.PurchasePlatform = canonicalPlatform(links)
				if rec.Price == nil {
					e.backfillWeidianPrice(ctx, rec)
				}
				enriched++
				e.Metrics.RecordsEnrichedCnt(1)
			}
			if e.Cache != nil {
				e.Cache.MarkVisited(rec.DetailURL)
			}
		}

		// Failed visits are paced the same as successful ones.
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
		}
	}

	return enriched, errs
}

// ExtractPurchaseLinks scans a page body against the ordered per-platform URL
// patterns and records the first match per platform.
func ExtractPurchaseLinks(body string) map[string]string {
	links := make(map[string]string)
	for _, pp := range platformPatterns {
		for _, pattern := range pp.patterns {
			if match := pattern.FindString(body); match != "" {
				links[pp.platform] = match
				break
			}
		}
	}
	if len(links) == 0 {
		return nil
	}
	return links
}

func canonicalPlatform(links map[string]string) string {
	for _, pp := range platformPatterns {
		if _, ok := links[pp.platform]; ok {
			return pp.platform
		}
	}
	return ""
}

// backfillWeidianPrice asks the Weidian item API for the listed price when the
// title carried none. Best effort.
func (e *Enricher) backfillWeidianPrice(ctx context.Context, rec *model.CatalogRecord) {
	link, ok := rec.PurchaseLinks["weidian"]
	if !ok {
		return
	}
	itemID := weidianItemID(link)
	if itemID == "" {
		return
	}

	apiURL := fmt.Sprintf("https://weidian.com/api/item/get?itemId=%s", itemID)
	res, err := e.Fetcher.Fetch(ctx, apiURL, model.Raw)
	if err != nil {
		slog.Debug("weidian price lookup failed.", slog.String("item", itemID),
			slog.String("err", err.Error()))
		return
	}

	price := jsoniter.Get([]byte(res.Body), "result", "item", "price").ToFloat64()
	if price == 0 {
		price = jsoniter.Get([]byte(res.Body), "result", "item", "minPrice").ToFloat64()
	}
	if price >= 1 && price <= 50000 {
		rec.Price = &price
		rec.Currency = "CNY"
	}
}

func weidianItemID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	q := u.Query()
	if id := q.Get("itemID"); id != "" {
		return id
	}
	return q.Get("itemId")
}
