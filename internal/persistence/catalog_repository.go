package persistence

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IliaW/catalog-crawler/internal/model"
)

type CatalogStorage interface {
	Upsert(*model.CatalogRecord) bool
}

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Upsert is idempotent by record id: re-crawling the same listing collides on
// the deterministic id and updates in place.
func (cr *CatalogRepository) Upsert(rec *model.CatalogRecord) bool {
	links, err := json.Marshal(rec.PurchaseLinks)
	if err != nil {
		slog.Error("failed to marshal purchase links.", slog.String("err", err.Error()))
		links = []byte("{}")
	}
	_, err = cr.db.Exec(`INSERT INTO web_catalog.catalog_records
    (id, source_id, title, detail_url, image_url, price, currency, brand, category,
     purchase_links, purchase_platform, captured_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title,
	    detail_url = EXCLUDED.detail_url,
	    image_url = EXCLUDED.image_url,
		price = EXCLUDED.price,
		currency = EXCLUDED.currency,
		brand = EXCLUDED.brand,
		category = EXCLUDED.category,
		purchase_links = EXCLUDED.purchase_links,
		purchase_platform = EXCLUDED.purchase_platform,
		captured_at = EXCLUDED.captured_at,
		updated_at = EXCLUDED.updated_at;`,
		rec.ID,
		rec.SourceID,
		rec.Title,
		rec.DetailURL,
		nullString(rec.ImageURL),
		rec.Price,
		nullString(rec.Currency),
		nullString(rec.Brand),
		nullString(rec.Category),
		links,
		nullString(rec.PurchasePlatform),
		rec.CapturedAt,
		time.Now().UTC())
	if err != nil {
		slog.Error("failed to upsert catalog record.", slog.String("record", rec.ID),
			slog.String("err", err.Error()))
		return false
	}
	slog.Debug("catalog record upserted.", slog.String("record", rec.ID))

	return true
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
