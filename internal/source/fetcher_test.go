package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

const samplePage = `<html><body><a href="/one">1</a><a href="https://example.com/two">2</a></body></html>`

func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(samplePage))
		_ = gz.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/brotli", func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		br := brotli.NewWriter(&buf)
		_, _ = br.Write([]byte(samplePage))
		_ = br.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in ISO-8859-1
		_, _ = w.Write([]byte("<html><body><a href=\"/caf\xe9\">x</a></body></html>"))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/plain", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	testCases := []struct {
		name     string
		path     string
		contains string
	}{
		{"plain", "/plain", `href="/one"`},
		{"gzip", "/gzip", `href="/one"`},
		{"brotli", "/brotli", `href="/one"`},
		{"latin1 converted to utf-8", "/latin1", "/café"},
		{"redirect followed", "/redirect", `href="/one"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := NewHTTPFetcher(server.Client(), 0)
			doc, err := f.Fetch(context.Background(), server.URL+tc.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(string(doc.Body), tc.contains) {
				t.Errorf("expected body to contain %q, got %q", tc.contains, doc.Body)
			}
			if doc.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", doc.StatusCode)
			}
		})
	}

	t.Run("final url after redirect", func(t *testing.T) {
		t.Parallel()

		doc, err := NewHTTPFetcher(server.Client(), 0).Fetch(context.Background(), server.URL+"/redirect")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.FinalURL != server.URL+"/plain" {
			t.Errorf("expected final URL %q, got %q", server.URL+"/plain", doc.FinalURL)
		}
	})
}

func TestHTTPFetcherErrors(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	testCases := []struct {
		name    string
		path    string
		limit   int64
		wantErr error
	}{
		{"empty body", "/empty", 0, ErrFetch},
		{"body too large", "/big", 1024, ErrBodyTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewHTTPFetcher(server.Client(), tc.limit).Fetch(context.Background(), server.URL+tc.path)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("error status with a body is returned", func(t *testing.T) {
		t.Parallel()

		doc, err := NewHTTPFetcher(server.Client(), 0).Fetch(context.Background(), server.URL+"/missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", doc.StatusCode)
		}
		if !strings.Contains(string(doc.Body), "not found") {
			t.Errorf("expected the error page body, got %q", doc.Body)
		}
	})

	t.Run("connection failure", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		_, err := NewHTTPFetcher(nil, 0).Fetch(context.Background(), url)
		if !errors.Is(err, ErrFetch) {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})
}
