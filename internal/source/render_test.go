package source

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewChromedpRendererDefaults(t *testing.T) {
	t.Parallel()

	r := NewChromedpRenderer(RenderOptions{}, nil)
	if r.opts.Timeout != DefaultRenderTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultRenderTimeout, r.opts.Timeout)
	}
	if r.opts.CaptureDelay != 1500*time.Millisecond {
		t.Errorf("expected capture delay 1.5s, got %v", r.opts.CaptureDelay)
	}
	if r.logger == nil {
		t.Error("expected default logger")
	}
}

func TestFallbackFetcher(t *testing.T) {
	t.Parallel()

	t.Run("uses primary when it succeeds", func(t *testing.T) {
		t.Parallel()

		primary := &stubFetcher{doc: &Document{Body: []byte("<a href=/p>p</a>"), Rendered: true}}
		secondary := &stubFetcher{doc: &Document{Body: []byte("<a href=/s>s</a>")}}
		f := NewFallbackFetcher(primary, secondary, discardLogger())

		doc, err := f.Fetch(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !doc.Rendered {
			t.Error("expected rendered document")
		}
		if secondary.calls != 0 {
			t.Errorf("expected secondary unused, got %d calls", secondary.calls)
		}
	})

	t.Run("falls back when primary fails", func(t *testing.T) {
		t.Parallel()

		primary := &stubFetcher{err: errors.New("chrome not found")}
		secondary := &stubFetcher{doc: &Document{Body: []byte("<a href=/s>s</a>")}}
		f := NewFallbackFetcher(primary, secondary, discardLogger())

		doc, err := f.Fetch(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Rendered {
			t.Error("expected plain document from fallback")
		}
		if secondary.calls != 1 {
			t.Errorf("expected one fallback call, got %d", secondary.calls)
		}
	})

	t.Run("does not fall back after cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		primary := &stubFetcher{err: context.Canceled}
		secondary := &stubFetcher{doc: &Document{Body: []byte("x")}}
		f := NewFallbackFetcher(primary, secondary, discardLogger())

		if _, err := f.Fetch(ctx, "https://example.com"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if secondary.calls != 0 {
			t.Errorf("expected no fallback after cancellation, got %d calls", secondary.calls)
		}
	})
}
