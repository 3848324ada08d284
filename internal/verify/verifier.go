package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/linkscan/internal/model"
)

const (
	// DefaultTimeout bounds one verification request.
	DefaultTimeout = 10 * time.Second

	// drainLimit is how much of a response body is read before closing,
	// so the connection can be reused.
	drainLimit = 4 * 1024
)

// Verifier checks the reachability of a classified link.
//
// Verify returns an updated copy of the link. Links that are not
// testable (fragments and unresolved links) are returned unchanged and
// cause no I/O. A failed check is reported through the returned link,
// never through a separate error.
type Verifier interface {
	Verify(ctx context.Context, link model.Link) model.Link
}

// HTTPVerifier verifies links with a single GET request per link.
// A link is reachable when the final status, after redirects, is below 400.
// There are no retries.
type HTTPVerifier struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an HTTPVerifier.
type Option func(*HTTPVerifier)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *HTTPVerifier) {
		v.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *HTTPVerifier) {
		v.logger = logger
	}
}

// NewHTTPVerifier creates an HTTPVerifier using client for requests.
// A nil client falls back to http.DefaultClient.
func NewHTTPVerifier(client *http.Client, opts ...Option) *HTTPVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	v := &HTTPVerifier{
		client:  client,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, link model.Link) model.Link {
	if !link.Scheme.Testable() {
		return link
	}

	status, err := v.check(ctx, link.ResolvedURL)
	if err != nil {
		v.logger.Debug("link check failed", "url", link.ResolvedURL, "status", status, "error", err)
		return link.WithReachability(model.ReachFalse, status, err)
	}

	v.logger.Debug("link check passed", "url", link.ResolvedURL, "status", status)
	return link.WithReachability(model.ReachTrue, status, nil)
}

// check performs the GET request and returns the final status code.
// Any failure, including a status of 400 or above, is a *NetworkCheckError.
func (v *HTTPVerifier) check(ctx context.Context, url string) (int, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &NetworkCheckError{URL: url, Err: fmt.Errorf("%w: %w", ErrInvalidURL, err)}
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, &NetworkCheckError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit)) //nolint:errcheck // best effort drain

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, &NetworkCheckError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        ErrHTTPStatus,
		}
	}
	return resp.StatusCode, nil
}
