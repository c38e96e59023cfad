// Package parse turns listing page markup into candidate records. The markup
// carries no schema contract and shifts between snapshots, so extraction runs
// an ordered chain of structural strategies and keeps the first one that
// yields a non-empty candidate set.
package parse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TitlePlaceholder is used when every title source fails. The record is kept.
const TitlePlaceholder = "Unknown"

type Candidate struct {
	DetailURL string
	Title     string
	ImageURL  string
}

type Result struct {
	Candidates  []Candidate
	NextPageURL string
	Strategy    string // name of the strategy that matched, empty if none
}

type strategy struct {
	name   string
	filter func(doc *goquery.Document) *goquery.Selection
}

// Ordered fallback chain. First strategy returning at least one usable
// candidate wins.
var strategies = []strategy{
	{"primary-container-albums", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("div.showindex__children a.album__main")
	}},
	{"primary-container-anchors", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("div.showindex__children a[href]")
	}},
	{"secondary-container-anchors", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("div.categories__children a[href]")
	}},
	{"album-class-anywhere", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("a.album__main")
	}},
	{"album-href-shape", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("a[href]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			return albumHrefRe.MatchString(href)
		})
	}},
}

var (
	albumHrefRe    = regexp.MustCompile(`/albums/\d+`)
	leadingCountRe = regexp.MustCompile(`^\d+\s+`)
	bgImageRe      = regexp.MustCompile(`url\(["']?([^"')\s]+)["']?\)`)
	thumbSizeRe    = regexp.MustCompile(`_\d+x\d+`)
	pageNumberRe   = regexp.MustCompile(`page=(\d+)`)
)

// Image attribute sources in priority order: the lazy-loaded origin image is
// the highest resolution.
var imageAttrs = []string{"data-origin-src", "data-src", "src"}

func Parse(body, baseURL string) *Result {
	res := &Result{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return res
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return res
	}

	for _, st := range strategies {
		candidates := collectCandidates(st.filter(doc), base)
		if len(candidates) > 0 {
			res.Candidates = candidates
			res.Strategy = st.name
			break
		}
	}
	res.NextPageURL = nextPageURL(doc, base)

	return res
}

func collectCandidates(sel *goquery.Selection, base *url.URL) []Candidate {
	var candidates []Candidate
	sel.Each(func(_ int, a *goquery.Selection) {
		if c, ok := extractCandidate(a, base); ok {
			candidates = append(candidates, c)
		}
	})
	return candidates
}

func extractCandidate(a *goquery.Selection, base *url.URL) (Candidate, bool) {
	href, ok := a.Attr("href")
	if !ok || !strings.Contains(href, "/albums/") {
		return Candidate{}, false
	}
	detailURL, err := resolveURL(base, href)
	if err != nil {
		return Candidate{}, false
	}

	return Candidate{
		DetailURL: detailURL,
		Title:     extractTitle(a),
		ImageURL:  extractImage(a, base),
	}, true
}

// Title sources in order: the dedicated title element, then the anchor text
// with the leading image-count prefix stripped, then a sentinel. A record is
// never dropped for a missing title.
func extractTitle(a *goquery.Selection) string {
	title := strings.TrimSpace(a.Find(".album__title").Text())
	if title == "" {
		title = leadingCountRe.ReplaceAllString(strings.TrimSpace(a.Text()), "")
	}
	if title == "" {
		title = TitlePlaceholder
	}
	return title
}

func extractImage(a *goquery.Selection, base *url.URL) string {
	var imageURL string
	img := a.Find("img").First()
	for _, attr := range imageAttrs {
		if val, ok := img.Attr(attr); ok && val != "" && !strings.HasPrefix(val, "data:") {
			imageURL = val
			break
		}
	}
	if imageURL == "" {
		if style, ok := a.Find("div.album__cover").Attr("style"); ok {
			if m := bgImageRe.FindStringSubmatch(style); m != nil {
				imageURL = m[1]
			}
		}
	}
	if imageURL == "" {
		return ""
	}

	if strings.HasPrefix(imageURL, "//") {
		imageURL = "https:" + imageURL
	} else if !strings.HasPrefix(imageURL, "http") {
		resolved, err := resolveURL(base, imageURL)
		if err != nil {
			return ""
		}
		imageURL = resolved
	}
	// Swap the thumbnail size token for a larger rendition.
	return thumbSizeRe.ReplaceAllString(imageURL, "_800x0x1")
}

// nextPageURL prefers the explicit next control. Without one it scans the
// numbered pagination links for current+1.
func nextPageURL(doc *goquery.Document, base *url.URL) string {
	if href, ok := doc.Find("a.pager__next").Attr("href"); ok && href != "" {
		if next, err := resolveURL(base, href); err == nil {
			return next
		}
	}

	currentPage := 1
	if m := pageNumberRe.FindStringSubmatch(base.String()); m != nil {
		currentPage, _ = strconv.Atoi(m[1])
	}

	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := pageNumberRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n == currentPage+1 {
			if resolved, err := resolveURL(base, href); err == nil {
				next = resolved
				return false
			}
		}
		return true
	})

	return next
}

func resolveURL(base *url.URL, href string) (string, error) {
	u, err := base.Parse(href)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
