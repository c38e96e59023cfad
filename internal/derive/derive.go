// Package derive recovers structured fields (price, brand, category) from the
// free text of listing titles.
package derive

import (
	"regexp"
	"strconv"

	"github.com/IliaW/catalog-crawler/internal/keyword"
)

// Sanity bound for derived prices. Values outside the bound mean "no price",
// not an error.
const (
	priceLowerBound = 1
	priceUpperBound = 50000
)

// Ordered locale-specific price patterns. The first pattern whose captured
// group parses as an in-bound number wins.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[¥￥]\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{1,2})?)\s*[¥￥]`),
	regexp.MustCompile(`(?i)CNY\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{1,2})?)\s*CNY`),
	regexp.MustCompile(`(?i)RMB\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{1,2})?)\s*RMB`),
	regexp.MustCompile(`(?i)Yuan\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{1,2})?)\s*Yuan`),
	regexp.MustCompile(`(?i)\$\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{1,2})?)\s*\$`),
	regexp.MustCompile(`(?i)(?:price|价格)[:\s]*(\d+(?:\.\d{1,2})?)`),
}

type FieldDeriver struct {
	keywords keyword.Provider
}

func NewFieldDeriver(keywords keyword.Provider) *FieldDeriver {
	return &FieldDeriver{keywords: keywords}
}

func (d *FieldDeriver) Price(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	for _, pattern := range pricePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		price, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if price >= priceLowerBound && price <= priceUpperBound {
			return price, true
		}
	}

	return 0, false
}

func (d *FieldDeriver) Brand(text string) (string, bool) {
	return d.keywords.LookupBrand(text)
}

func (d *FieldDeriver) Category(text string) (string, bool) {
	return d.keywords.LookupCategory(text)
}
