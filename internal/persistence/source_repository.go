package persistence

import (
	"database/sql"

	"github.com/IliaW/catalog-crawler/internal/model"
)

type SourceStorage interface {
	ListActive() ([]*model.Source, error)
}

// SourceRepository reads the externally managed source registry. The crawler
// never writes to it.
type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (sr *SourceRepository) ListActive() ([]*model.Source, error) {
	rows, err := sr.db.Query(`SELECT id, name, listing_url, render_mode,
		COALESCE(weidian_id, ''), COALESCE(taobao_shop, '')
		FROM web_catalog.sources WHERE status = 'active' ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		var src model.Source
		var renderMode string
		if err := rows.Scan(&src.ID, &src.Name, &src.ListingURL, &renderMode,
			&src.WeidianID, &src.TaobaoShop); err != nil {
			return nil, err
		}
		src.RenderMode = model.RenderModeFromString(renderMode)
		sources = append(sources, &src)
	}

	return sources, rows.Err()
}
