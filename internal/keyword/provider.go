// Package keyword resolves brand and category values from free-text titles
// using ordered keyword tables. Iteration order is the documented tie-break:
// an ambiguous title matching several entries resolves to the first declared
// entry, never to longest-match or specificity.
package keyword

import (
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

type Provider interface {
	LookupBrand(text string) (string, bool)
	LookupCategory(text string) (string, bool)
}

// Entry maps any of its keywords (case-insensitive substring match) to Value.
type Entry struct {
	Value    string
	Keywords []string
}

func matchTable(entries []Entry, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, e := range entries {
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				return e.Value, true
			}
		}
	}
	return "", false
}

// StaticProvider serves fixed in-memory tables. Used in tests and as a
// fallback when the database tables are empty.
type StaticProvider struct {
	Brands     []Entry
	Categories []Entry
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{Brands: DefaultBrandTable(), Categories: DefaultCategoryTable()}
}

func (p *StaticProvider) LookupBrand(text string) (string, bool) {
	return matchTable(p.Brands, text)
}

func (p *StaticProvider) LookupCategory(text string) (string, bool) {
	return matchTable(p.Categories, text)
}

// DbProvider reads keyword tables from Postgres, cached with a TTL so table
// edits are picked up without restarting the crawler. Row order (ORDER BY id)
// is the precedence order.
type DbProvider struct {
	db         *sql.DB
	localCache *cache.Cache
	fallback   *StaticProvider
}

const (
	brandsCacheKey     = "brand-keywords"
	categoriesCacheKey = "category-keywords"
)

func NewDbProvider(db *sql.DB, reloadInterval time.Duration) *DbProvider {
	return &DbProvider{
		db:         db,
		localCache: cache.New(reloadInterval, reloadInterval),
		fallback:   NewStaticProvider(),
	}
}

func (p *DbProvider) LookupBrand(text string) (string, bool) {
	return matchTable(p.brands(), text)
}

func (p *DbProvider) LookupCategory(text string) (string, bool) {
	return matchTable(p.categories(), text)
}

func (p *DbProvider) brands() []Entry {
	if e, ok := p.localCache.Get(brandsCacheKey); ok {
		return e.([]Entry)
	}
	entries := p.loadTable(`SELECT keyword, brand FROM web_catalog.brand_keywords ORDER BY id`)
	if entries == nil {
		return p.fallback.Brands
	}
	p.localCache.Set(brandsCacheKey, entries, cache.DefaultExpiration)

	return entries
}

func (p *DbProvider) categories() []Entry {
	if e, ok := p.localCache.Get(categoriesCacheKey); ok {
		return e.([]Entry)
	}
	entries := p.loadTable(`SELECT keyword, category FROM web_catalog.category_keywords ORDER BY id`)
	if entries == nil {
		return p.fallback.Categories
	}
	p.localCache.Set(categoriesCacheKey, entries, cache.DefaultExpiration)

	return entries
}

func (p *DbProvider) loadTable(query string) []Entry {
	rows, err := p.db.Query(query)
	if err != nil {
		slog.Error("failed to load keyword table.", slog.String("err", err.Error()))
		return nil
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var kw, value string
		if err := rows.Scan(&kw, &value); err != nil {
			slog.Error("failed to scan keyword row.", slog.String("err", err.Error()))
			continue
		}
		kw = strings.ToLower(strings.TrimSpace(kw))
		// Collapse consecutive rows for the same value into one entry so the
		// declared alias order survives.
		if n := len(entries); n > 0 && entries[n-1].Value == value {
			entries[n-1].Keywords = append(entries[n-1].Keywords, kw)
			continue
		}
		entries = append(entries, Entry{Value: value, Keywords: []string{kw}})
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read keyword table.", slog.String("err", err.Error()))
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	return entries
}
