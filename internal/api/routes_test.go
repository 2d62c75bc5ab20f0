package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/kjannette/ethflow-bot/internal/models"
)

type stubReporter struct{ text string }

func (r stubReporter) Build(ctx context.Context) string { return r.text }

type recordingDispatcher struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	ctxs    []context.Context
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, u tgbotapi.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
	d.ctxs = append(d.ctxs, ctx)
}

type stubFlows struct {
	latest    *models.FlowRecord
	history   []models.FlowRecord
	err       error
	lastLimit int
}

func (f *stubFlows) GetLatest(ctx context.Context) (*models.FlowRecord, error) {
	return f.latest, f.err
}

func (f *stubFlows) GetHistory(ctx context.Context, limit int) ([]models.FlowRecord, error) {
	f.lastLimit = limit
	return f.history, f.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func do(t *testing.T, h http.Handler, method, path, body string, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoot(t *testing.T) {
	s := NewServer(Options{Reporter: stubReporter{}})
	rr := do(t, s.Handler(), http.MethodGet, "/", "", "")

	if rr.Code != http.StatusOK || rr.Body.String() != "Bot is running!" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}

	rr = do(t, s.Handler(), http.MethodGet, "/missing", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rr.Code)
	}
}

func TestWebhook_DispatchesUnderBaseContext(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "server")
	d := &recordingDispatcher{}
	s := NewServer(Options{Updates: d, BaseContext: base, APIKey: "secret123"})

	body := `{"update_id": 10, "message": {"message_id": 3, "chat": {"id": 42, "type": "private"}, "text": "/now",
		"entities": [{"type": "bot_command", "offset": 0, "length": 4}]}}`
	rr := do(t, s.Handler(), http.MethodPost, "/webhook", body, "")

	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
	if len(d.updates) != 1 {
		t.Fatalf("expected 1 dispatched update, got %d", len(d.updates))
	}
	u := d.updates[0]
	if u.UpdateID != 10 || u.Message == nil || u.Message.Command() != "now" {
		t.Fatalf("unexpected update: %+v", u)
	}
	if d.ctxs[0].Value(ctxKey{}) != "server" {
		t.Fatal("update should be handled under the server context, not the request context")
	}
}

func TestWebhook_MalformedJSON(t *testing.T) {
	d := &recordingDispatcher{}
	s := NewServer(Options{Updates: d})

	rr := do(t, s.Handler(), http.MethodPost, "/webhook", "{not json", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(d.updates) != 0 {
		t.Fatal("malformed update should not be dispatched")
	}
}

func TestWebhook_GetNotAllowed(t *testing.T) {
	s := NewServer(Options{Updates: &recordingDispatcher{}})
	rr := do(t, s.Handler(), http.MethodGet, "/webhook", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestReport(t *testing.T) {
	s := NewServer(Options{Reporter: stubReporter{text: "ETH звіт"}, APIKey: "secret123"})

	rr := do(t, s.Handler(), http.MethodGet, "/v1/report", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rr.Code)
	}

	rr = do(t, s.Handler(), http.MethodGet, "/v1/report", "", "secret123")
	if rr.Code != http.StatusOK || rr.Body.String() != "ETH звіт" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type: %q", ct)
	}
}

func TestFlowsLatest(t *testing.T) {
	rec := &models.FlowRecord{
		ID:       7,
		ReportID: "abc",
		Total:    decimal.RequireFromString("-162.7"),
		Funds:    []models.FundFlow{{Label: models.TotalLabel, Value: decimal.RequireFromString("-162.7"), Status: models.Outflow}},
	}

	s := NewServer(Options{Flows: &stubFlows{latest: rec}})
	rr := do(t, s.Handler(), http.MethodGet, "/v1/flows/latest", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got models.FlowRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 7 || !got.Total.Equal(rec.Total) || got.Funds[0].Status != models.Outflow {
		t.Fatalf("unexpected record: %+v", got)
	}

	empty := NewServer(Options{Flows: &stubFlows{}})
	if rr := do(t, empty.Handler(), http.MethodGet, "/v1/flows/latest", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty archive, got %d", rr.Code)
	}

	noArchive := NewServer(Options{})
	if rr := do(t, noArchive.Handler(), http.MethodGet, "/v1/flows/latest", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without archive, got %d", rr.Code)
	}

	failing := NewServer(Options{Flows: &stubFlows{err: errors.New("conn reset")}})
	if rr := do(t, failing.Handler(), http.MethodGet, "/v1/flows/latest", "", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestFlowsHistory(t *testing.T) {
	flows := &stubFlows{history: []models.FlowRecord{{ID: 2}, {ID: 1}}}
	s := NewServer(Options{Flows: flows})

	rr := do(t, s.Handler(), http.MethodGet, "/v1/flows/history?limit=5", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if flows.lastLimit != 5 {
		t.Fatalf("limit: got %d", flows.lastLimit)
	}
	var got []models.FlowRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil || len(got) != 2 {
		t.Fatalf("decode: %v (%d records)", err, len(got))
	}

	noArchive := NewServer(Options{})
	rr = do(t, noArchive.Handler(), http.MethodGet, "/v1/flows/history", "", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list without archive, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name string
		db   Pinger
		want string
	}{
		{"no archive", nil, "disabled"},
		{"reachable", stubPinger{}, "connected"},
		{"unreachable", stubPinger{err: errors.New("dial tcp: refused")}, "disconnected"},
	}

	for _, tc := range cases {
		s := NewServer(Options{DB: tc.db})
		s.now = func() time.Time { return time.Date(2024, 5, 15, 6, 0, 0, 0, time.UTC) }

		rr := do(t, s.Handler(), http.MethodGet, "/health", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.name, rr.Code)
		}
		var got healthResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if got.Services.Database != tc.want {
			t.Fatalf("%s: database status %q, want %q", tc.name, got.Services.Database, tc.want)
		}
		if got.Timestamp != "2024-05-15T06:00:00Z" {
			t.Fatalf("%s: timestamp %q", tc.name, got.Timestamp)
		}
	}
}
