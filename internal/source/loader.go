package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/nao1215/linkscan/internal/model"
)

// Loader extracts raw link strings from a source.
//
// For a remote source it fetches the page and returns anchor hrefs. For a
// file source it reads the file and returns the absolute http(s) URLs found
// in its text. Any failure is a *SourceError.
type Loader struct {
	fetcher Fetcher
	scope   string
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFetcher sets the fetcher used for remote sources.
func WithFetcher(f Fetcher) LoaderOption {
	return func(l *Loader) {
		l.fetcher = f
	}
}

// WithScope restricts anchor extraction to elements matching a CSS selector.
func WithScope(selector string) LoaderOption {
	return func(l *Loader) {
		l.scope = selector
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader. Without WithFetcher, remote sources are
// downloaded with an HTTPFetcher over http.DefaultClient.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = NewHTTPFetcher(nil, DefaultMaxBodyBytes)
	}
	return l
}

// Load returns the raw link strings of src in discovery order.
func (l *Loader) Load(ctx context.Context, src model.Source) ([]string, error) {
	var (
		links []string
		err   error
	)
	if src.IsRemote() {
		links, err = l.loadRemote(ctx, src.Location)
	} else {
		links, err = l.loadFile(src.Location)
	}
	if err != nil {
		return nil, &SourceError{Source: src.Location, Err: err}
	}

	l.logger.Debug("source loaded", "source", src.Location, "kind", src.Kind.String(), "links", len(links))
	return links, nil
}

func (l *Loader) loadRemote(ctx context.Context, location string) ([]string, error) {
	doc, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	if doc.StatusCode >= http.StatusBadRequest {
		l.logger.Warn("source answered with an error status, collecting its links anyway",
			"source", location, "status", doc.StatusCode)
	}
	links, err := ExtractAnchors(bytes.NewReader(doc.Body), l.scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return links, nil
}

func (l *Loader) loadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided source path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	return ExtractURLs(string(data)), nil
}

// BaseDomainOf returns the scheme and host of a remote location, without
// path, query or trailing slash: "https://example.com/docs/x" gives
// "https://example.com".
func BaseDomainOf(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no http(s) host", ErrInvalidSource, location)
	}
	return u.Scheme + "://" + u.Host, nil
}
