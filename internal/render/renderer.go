package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IliaW/catalog-crawler/config"
	"github.com/IliaW/catalog-crawler/internal/model"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly"
)

type Result struct {
	Body       string
	FinalURL   string
	StatusCode int
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, mode model.RenderMode) (*Result, error)
}

// SiteRenderer fetches listing and detail pages in one of two modes: raw
// (single HTTP GET) or rendered (headless browser, waits for networkIdle).
// The browser is shared by the whole run: it is started lazily on the first
// rendered fetch and released exactly once by Close.
type SiteRenderer struct {
	cfg       *config.Config
	transport *http.Transport

	browserOnce   sync.Once
	closeOnce     sync.Once
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	browserErr    error
}

func NewSiteRenderer(cfg *config.Config, transport *http.Transport) *SiteRenderer {
	return &SiteRenderer{cfg: cfg, transport: transport}
}

func (s *SiteRenderer) Fetch(ctx context.Context, url string, mode model.RenderMode) (*Result, error) {
	res, err := s.fetch(ctx, url, mode)
	// Retries with exponential backoff for 429 status code
	for retry, delay := s.cfg.CrawlerSettings.RetryAttempts, s.cfg.CrawlerSettings.RetryDelay; statusOf(err) ==
		http.StatusTooManyRequests && retry > 0; retry, delay = retry-1, delay*2 {
		slog.Warn("too many requests status code. retrying...", slog.Int("attempts left", retry),
			slog.String("url", url))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, newTransient(url, ctx.Err())
		}
		res, err = s.fetch(ctx, url, mode)
	}

	return res, err
}

func (s *SiteRenderer) fetch(ctx context.Context, url string, mode model.RenderMode) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, newTransient(url, err)
	}
	switch mode {
	case model.Raw:
		return s.fetchRaw(url)
	case model.Rendered:
		return s.fetchRendered(ctx, url)
	default:
		return nil, newPermanent(url, 0, errors.New("unsupported render mode"))
	}
}

func (s *SiteRenderer) fetchRaw(url string) (*Result, error) {
	c := colly.NewCollector()
	c.WithTransport(s.transport)
	c.SetRequestTimeout(s.cfg.HttpClientSettings.RequestTimeout)
	c.UserAgent = s.cfg.CrawlerSettings.UserAgent

	res := &Result{FinalURL: url}
	c.OnResponse(func(resp *colly.Response) {
		res.Body = string(resp.Body)
		res.StatusCode = resp.StatusCode
		res.FinalURL = resp.Request.URL.String()
	})
	c.OnError(func(resp *colly.Response, err error) {
		res.StatusCode = resp.StatusCode
	})

	err := c.Visit(url)
	if err != nil {
		if res.StatusCode >= http.StatusBadRequest {
			return nil, newPermanent(url, res.StatusCode, err)
		}
		return nil, newTransient(url, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, newPermanent(url, res.StatusCode, errors.New("error status code"))
	}

	return res, nil
}

func (s *SiteRenderer) fetchRendered(ctx context.Context, url string) (*Result, error) {
	if err := s.browser(); err != nil {
		return nil, newTransient(url, err)
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	tCtx, cancelTCtx := context.WithTimeout(tabCtx, s.cfg.CrawlerSettings.RenderTimeout)
	defer cancelTCtx()

	res := &Result{FinalURL: url}
	chromedp.ListenTarget(tCtx, func(event interface{}) {
		switch ev := event.(type) {
		case *network.EventResponseReceived:
			response := ev.Response
			if response.URL == res.FinalURL || response.URL == res.FinalURL+"/" {
				res.StatusCode = int(response.Status)
			}
		case *network.EventRequestWillBeSent:
			if ev.RedirectResponse != nil {
				res.FinalURL = ev.Request.URL
				slog.Debug("redirected.", slog.String("url", ev.RedirectResponse.URL))
			}
		}
	})
	err := chromedp.Run(tCtx,
		chromedp.Tasks{
			network.Enable(),
			network.SetExtraHTTPHeaders(map[string]interface{}{
				"User-Agent": s.cfg.CrawlerSettings.UserAgent,
			}),
			enableLifeCycleEvents(),
			navigateAndWaitFor(url, "networkIdle"),
		},
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			res.Body, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		if res.StatusCode >= http.StatusBadRequest {
			return nil, newPermanent(url, res.StatusCode, err)
		}
		return nil, newTransient(url, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, newPermanent(url, res.StatusCode, errors.New("error status code"))
	}
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}

	return res, nil
}

// browser starts the shared headless browser on first use.
func (s *SiteRenderer) browser() error {
	s.browserOnce.Do(func() {
		slog.Info("starting headless browser...")
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		s.allocCancel = allocCancel
		s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx)
		if err := chromedp.Run(s.browserCtx); err != nil {
			s.browserErr = fmt.Errorf("failed to start headless browser: %w", err)
			slog.Error("failed to start headless browser.", slog.String("err", err.Error()))
		}
	})

	return s.browserErr
}

// Close releases the shared browser. Safe to call when no rendered fetch ever
// happened, and safe to call more than once.
func (s *SiteRenderer) Close() {
	s.closeOnce.Do(func() {
		if s.browserCancel != nil {
			slog.Info("closing headless browser.")
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, eventName)
	}
}

func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
