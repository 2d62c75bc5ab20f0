package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjannette/ethflow-bot/internal/external"
	"github.com/kjannette/ethflow-bot/internal/models"
	"github.com/kjannette/ethflow-bot/internal/scraper"
)

type stubPrices struct {
	snap *models.PriceSnapshot
	err  error
}

func (s stubPrices) GetPriceAndVolume(ctx context.Context) (*models.PriceSnapshot, error) {
	return s.snap, s.err
}

type stubPages struct {
	lines []string
	err   error
	url   string
}

func (s *stubPages) FetchPageText(ctx context.Context, url string) ([]string, error) {
	s.url = url
	return s.lines, s.err
}

type recordingArchive struct {
	mu      sync.Mutex
	ids     []string
	reports []*models.FlowReport
	err     error
}

func (a *recordingArchive) RecordFlows(ctx context.Context, id string, r *models.FlowReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, id)
	a.reports = append(a.reports, r)
	return a.err
}

var goodSnapshot = &models.PriceSnapshot{
	Price:             3000.00,
	Volume24h:         2.5e9,
	PriceChangePct24h: 5.25,
	VolumeChangePct:   "+4.17%",
}

func flowPage() []string {
	lines := []string{"Blackrock", "Fidelity", "Bitwise", "21Shares", "VanEck", "Invesco", "Franklin", "Grayscale", "Grayscale", "Total"}
	lines = append(lines, "ETHA", "FETH", "ETHW", "CETH", "ETHV", "QETH", "EZET", "ETHE", "ETH", "Fee")
	lines = append(lines, "13 May 2024", "10.0", "-", "-", "-", "-", "-", "-", "(5.0)", "-", "5.0")
	lines = append(lines, "14 May 2024", "12.5", "-", "-", "-", "-", "-", "-", "(5.0)", "-", "7.5")
	return lines
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 15, 6, 0, 0, 0, time.UTC) }

func TestBuild_AllSections(t *testing.T) {
	pages := &stubPages{lines: flowPage()}
	archive := &recordingArchive{}
	b := NewBuilder(Options{
		Prices:   stubPrices{snap: goodSnapshot},
		Pages:    pages,
		FlowsURL: "https://farside.test/eth",
		Archive:  archive,
		Now:      fixedNow,
	})

	text := b.Build(context.Background())
	lines := strings.Split(text, "\n")

	if lines[0] != "ETH звіт — 2024-05-15 09:00 (Kyiv)" {
		t.Fatalf("header: got %q", lines[0])
	}
	if lines[1] != "1) Ціна: $3,000.00 (+5.25%)" {
		t.Fatalf("line 1: got %q", lines[1])
	}
	if lines[2] != "2) Об'єм (24h): $2.50B (+4.17%)" {
		t.Fatalf("line 2: got %q", lines[2])
	}
	if lines[3] != "3) Великі фонди (spot ETH ETF — 14 May 2024 vs 13 May 2024):" {
		t.Fatalf("line 3: got %q", lines[3])
	}
	if lines[4] != "• Blackrock (ETHA): приплив 12.5 (+2.5)" {
		t.Fatalf("first fund: got %q", lines[4])
	}
	if lines[13] != "• Total: приплив 7.5 (+2.5)" {
		t.Fatalf("total: got %q", lines[13])
	}
	if lines[len(lines)-1] != Footer {
		t.Fatalf("footer: got %q", lines[len(lines)-1])
	}
	if len(lines) != 15 {
		t.Fatalf("expected 15 lines, got %d:\n%s", len(lines), text)
	}
	if pages.url != "https://farside.test/eth" {
		t.Fatalf("flows url: got %q", pages.url)
	}
	if len(archive.reports) != 1 || archive.ids[0] == "" {
		t.Fatalf("expected one archived report with an id, got %d", len(archive.reports))
	}
}

func TestBuild_FetchErrorDoesNotCascade(t *testing.T) {
	fetchErr := &scraper.FetchError{URL: "https://farside.test/eth", Err: errors.New("status 503")}
	archive := &recordingArchive{}
	b := NewBuilder(Options{
		Prices:   stubPrices{snap: goodSnapshot},
		Pages:    &stubPages{err: fetchErr},
		FlowsURL: "https://farside.test/eth",
		Archive:  archive,
		Now:      fixedNow,
	})

	lines := strings.Split(b.Build(context.Background()), "\n")
	if lines[1] != "1) Ціна: $3,000.00 (+5.25%)" {
		t.Fatalf("line 1: got %q", lines[1])
	}
	if lines[2] != "2) Об'єм (24h): $2.50B (+4.17%)" {
		t.Fatalf("line 2: got %q", lines[2])
	}
	want := "3) Великі фонди (spot ETH ETF): N/A — " + fetchErr.Error()
	if lines[3] != want {
		t.Fatalf("line 3:\n got %q\nwant %q", lines[3], want)
	}
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if len(archive.reports) != 0 {
		t.Fatal("nothing should be archived on failure")
	}
}

func TestBuild_PriceErrorDoesNotCascade(t *testing.T) {
	upstream := &external.UpstreamError{Op: "coin", Err: errors.New("status 429")}
	b := NewBuilder(Options{
		Prices: stubPrices{err: upstream},
		Pages:  &stubPages{lines: flowPage()},
		Now:    fixedNow,
	})

	lines := strings.Split(b.Build(context.Background()), "\n")
	if lines[1] != "1) Ціна: N/A — coingecko coin: status 429" {
		t.Fatalf("line 1: got %q", lines[1])
	}
	if lines[2] != "2) Об'єм (24h): N/A — coingecko coin: status 429" {
		t.Fatalf("line 2: got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "3) Великі фонди (spot ETH ETF — 14 May 2024") {
		t.Fatalf("line 3 should be populated: %q", lines[3])
	}
}

func TestBuild_ParseError(t *testing.T) {
	b := NewBuilder(Options{
		Prices: stubPrices{snap: goodSnapshot},
		Pages:  &stubPages{lines: []string{"nothing", "here"}},
		Now:    fixedNow,
	})
	lines := strings.Split(b.Build(context.Background()), "\n")
	if lines[3] != "3) Великі фонди (spot ETH ETF): N/A — Не знайдено 'Blackrock' у таблиці" {
		t.Fatalf("line 3: got %q", lines[3])
	}
}

func TestBuild_ArchiveErrorIgnored(t *testing.T) {
	b := NewBuilder(Options{
		Prices:  stubPrices{snap: goodSnapshot},
		Pages:   &stubPages{lines: flowPage()},
		Archive: &recordingArchive{err: errors.New("db down")},
		Now:     fixedNow,
	})
	text := b.Build(context.Background())
	if !strings.Contains(text, "• Total: приплив 7.5 (+2.5)") {
		t.Fatalf("flows should render despite archive failure:\n%s", text)
	}
}

type blockingPages struct{}

func (blockingPages) FetchPageText(ctx context.Context, url string) ([]string, error) {
	<-ctx.Done()
	return nil, &scraper.FetchError{URL: url, Err: ctx.Err()}
}

func TestBuild_TimeoutBoundsSlowSection(t *testing.T) {
	b := NewBuilder(Options{
		Prices:   stubPrices{snap: goodSnapshot},
		Pages:    blockingPages{},
		FlowsURL: "https://farside.test/eth",
		Timeout:  50 * time.Millisecond,
		Now:      fixedNow,
	})

	start := time.Now()
	text := b.Build(context.Background())
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("Build should stop at its deadline, took %s", took)
	}

	lines := strings.Split(text, "\n")
	if lines[1] != "1) Ціна: $3,000.00 (+5.25%)" {
		t.Fatalf("price line: got %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "3) Великі фонди (spot ETH ETF): N/A") ||
		!strings.Contains(lines[3], "deadline exceeded") {
		t.Fatalf("flow line: got %q", lines[3])
	}
}

func TestNewBuilder_DefaultTimeout(t *testing.T) {
	b := NewBuilder(Options{})
	if b.timeout != DefaultTimeout {
		t.Fatalf("timeout: got %s, want %s", b.timeout, DefaultTimeout)
	}
}
