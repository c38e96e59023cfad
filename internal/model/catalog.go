package model

import "time"

type RenderMode int

const (
	Raw RenderMode = iota // plain HTTP GET, no script execution
	Rendered              // headless browser, post-execution document
)

func (m RenderMode) String() string {
	return [...]string{"raw", "rendered"}[m]
}

func RenderModeFromString(s string) RenderMode {
	if s == "rendered" {
		return Rendered
	}
	return Raw
}

// Source is an external catalog owner being crawled. Owned by the registry,
// read-only for the duration of a run.
type Source struct {
	ID         int64
	Name       string
	ListingURL string
	RenderMode RenderMode
	WeidianID  string
	TaobaoShop string
}

type CatalogRecord struct {
	ID               string            `json:"id"`
	SourceID         int64             `json:"source_id"`
	SourceName       string            `json:"source_name"`
	Title            string            `json:"title"`
	DetailURL        string            `json:"detail_url"`
	ImageURL         string            `json:"image_url,omitempty"`
	Price            *float64          `json:"price,omitempty"`
	Currency         string            `json:"currency,omitempty"`
	Brand            string            `json:"brand,omitempty"`
	Category         string            `json:"category,omitempty"`
	PurchaseLinks    map[string]string `json:"purchase_links,omitempty"`
	PurchasePlatform string            `json:"purchase_platform,omitempty"`
	CapturedAt       int64             `json:"captured_at"`
}

// CrawlSession statuses. A session is created when a source pipeline starts
// and closed exactly once by that pipeline.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionNoRecords = "no_records"
	SessionFailed    = "failed"
)

type CrawlSession struct {
	ID           int64
	SourceID     int64
	StartedAt    time.Time
	CompletedAt  time.Time
	PagesWalked  int
	RecordsFound int
	Status       string
	Error        string
}
