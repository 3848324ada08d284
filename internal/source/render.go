package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultRenderTimeout bounds one headless browser session.
const DefaultRenderTimeout = 60 * time.Second

// RenderOptions configures ChromedpRenderer.
type RenderOptions struct {
	// Timeout bounds the whole browser session.
	Timeout time.Duration

	// WaitSelector, when set, is waited for before the DOM is captured.
	// Otherwise the renderer sleeps for CaptureDelay.
	WaitSelector string

	// CaptureDelay is how long scripts may run before the DOM is captured.
	CaptureDelay time.Duration

	// UserAgent overrides the browser's User-Agent.
	UserAgent string
}

// ChromedpRenderer loads a page in headless Chrome and returns the DOM after
// scripts have run, for pages that build their links with JavaScript.
type ChromedpRenderer struct {
	opts   RenderOptions
	logger *slog.Logger
}

// NewChromedpRenderer creates a renderer.
func NewChromedpRenderer(opts RenderOptions, logger *slog.Logger) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRenderTimeout
	}
	if opts.CaptureDelay <= 0 {
		opts.CaptureDelay = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromedpRenderer{opts: opts, logger: logger}
}

// Fetch implements Fetcher.
func (r *ChromedpRenderer) Fetch(parentCtx context.Context, url string) (*Document, error) {
	ctx, cancel := context.WithTimeout(parentCtx, r.opts.Timeout)
	defer cancel()

	execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	execOpts = append(execOpts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if sel := strings.TrimSpace(r.opts.WaitSelector); sel != "" {
		actions = append(actions, chromedp.WaitReady(sel, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Sleep(r.opts.CaptureDelay))
	}

	var html, finalURL string
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)

	start := time.Now()
	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("%w: render: %w", ErrFetch, err)
	}
	r.logger.Debug("rendered source",
		"url", url,
		"finalURL", finalURL,
		"bytes", len(html),
		"latency", time.Since(start).Round(time.Millisecond),
	)

	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: empty rendered document", ErrFetch)
	}
	if finalURL == "" {
		finalURL = url
	}

	return &Document{
		URL:        url,
		FinalURL:   finalURL,
		Body:       []byte(html),
		StatusCode: 200,
		Rendered:   true,
	}, nil
}

// FallbackFetcher tries a primary fetcher and falls back to a secondary one
// when the primary fails, for example when Chrome is not installed.
type FallbackFetcher struct {
	primary   Fetcher
	secondary Fetcher
	logger    *slog.Logger
}

// NewFallbackFetcher creates a FallbackFetcher.
func NewFallbackFetcher(primary, secondary Fetcher, logger *slog.Logger) *FallbackFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackFetcher{primary: primary, secondary: secondary, logger: logger}
}

// Fetch implements Fetcher.
func (f *FallbackFetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	doc, err := f.primary.Fetch(ctx, url)
	if err == nil {
		return doc, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("renderer failed, falling back to HTTP fetch", "url", url, "error", err)
	return f.secondary.Fetch(ctx, url)
}
