package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>ETH ETF Flow</title>
  <style>td { color: red; }</style>
  <script>var blackrock = "not a fund";</script>
</head>
<body>
  <noscript>Enable JavaScript</noscript>
  <table>
    <tr><th>Blackrock</th><th>Fidelity</th></tr>
    <tr><td>ETHA</td><td>FETH</td></tr>
    <tr><td>14 May 2024</td><td>(1,234.5)</td><td>  -  </td></tr>
  </table>
  <p>
     Line one
     Line two
  </p>
</body>
</html>`

func TestExtractLines(t *testing.T) {
	lines, err := ExtractLines(samplePage)
	if err != nil {
		t.Fatalf("ExtractLines: %v", err)
	}
	want := []string{
		"ETH ETF Flow",
		"Blackrock", "Fidelity",
		"ETHA", "FETH",
		"14 May 2024", "(1,234.5)", "-",
		"Line one", "Line two",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines:\n got %q\nwant %q", lines, want)
	}
}

type fakeFetcher struct {
	name  string
	html  string
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls.Add(1)
	return f.html, f.err
}

func TestFetchPageText_FallsBack(t *testing.T) {
	first := &fakeFetcher{name: "tls", err: errors.New("challenge")}
	second := &fakeFetcher{name: "plain", html: "<p>Blackrock</p>"}
	s := New(Options{Fetchers: []Fetcher{first, second}})

	lines, err := s.FetchPageText(context.Background(), "https://example.test/flows")
	if err != nil {
		t.Fatalf("FetchPageText: %v", err)
	}
	if len(lines) != 1 || lines[0] != "Blackrock" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if first.calls.Load() != 1 || second.calls.Load() != 1 {
		t.Fatalf("expected one call each, got %d/%d", first.calls.Load(), second.calls.Load())
	}
}

func TestFetchPageText_AllFail(t *testing.T) {
	s := New(Options{Fetchers: []Fetcher{
		&fakeFetcher{name: "tls", err: errors.New("challenge")},
		&fakeFetcher{name: "plain", err: errors.New("connection refused")},
	}})

	_, err := s.FetchPageText(context.Background(), "https://example.test/flows")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.URL != "https://example.test/flows" {
		t.Fatalf("url: got %q", fe.URL)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected last error in message, got %v", err)
	}
}

func TestFetchPageText_NoFetchers(t *testing.T) {
	_, err := New(Options{}).FetchPageText(context.Background(), "https://example.test")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestFetchPageText_Cache(t *testing.T) {
	f := &fakeFetcher{name: "plain", html: "<p>cached</p>"}
	s := New(Options{Fetchers: []Fetcher{f}, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := s.FetchPageText(context.Background(), "https://example.test"); err != nil {
			t.Fatalf("FetchPageText: %v", err)
		}
	}
	if f.calls.Load() != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", f.calls.Load())
	}
}

func TestPlainFetcher(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	body, err := NewPlainFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if body != "<p>ok</p>" {
		t.Fatalf("body: got %q", body)
	}
	if ua != "Mozilla/5.0" || accept != "text/html" {
		t.Fatalf("headers: ua=%q accept=%q", ua, accept)
	}
}

func TestPlainFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewPlainFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}
