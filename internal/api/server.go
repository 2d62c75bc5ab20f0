package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/ethflow-bot/internal/logging"
	"github.com/kjannette/ethflow-bot/internal/models"
	"github.com/kjannette/ethflow-bot/internal/report"
	"github.com/kjannette/ethflow-bot/internal/telegram"
)

const maxQueryLimit = 1000

// writeMargin is added to the report deadline so a report that used its whole
// budget still has time to be written.
const writeMargin = 15 * time.Second

type Reporter interface {
	Build(ctx context.Context) string
}

// UpdateDispatcher accepts Telegram updates for background handling.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, u tgbotapi.Update)
}

// FlowStore reads the flow archive.
type FlowStore interface {
	GetLatest(ctx context.Context) (*models.FlowRecord, error)
	GetHistory(ctx context.Context, limit int) ([]models.FlowRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
	Reporter   Reporter
	Updates    UpdateDispatcher
	Flows      FlowStore
	DB         Pinger
	// ReportTimeout must match the builder's deadline; it sizes WriteTimeout.
	ReportTimeout time.Duration
	// BaseContext outlives individual requests; webhook updates are handled
	// under it after the request has been answered.
	BaseContext context.Context
	Logger      logrus.FieldLogger
}

type Server struct {
	reporter   Reporter
	updates    UpdateDispatcher
	flows      FlowStore
	db         Pinger
	baseCtx    context.Context
	httpServer *http.Server
	apiKey     string
	log        *logrus.Entry
	now        func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = report.DefaultTimeout
	}
	s := &Server{
		reporter: opts.Reporter,
		updates:  opts.Updates,
		flows:    opts.Flows,
		db:       opts.DB,
		baseCtx:  opts.BaseContext,
		apiKey:   opts.APIKey,
		log:      logging.Component(opts.Logger, "api"),
		now:      time.Now,
	}

	mux := http.NewServeMux()

	// Liveness (no auth required)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Telegram updates
	mux.HandleFunc("POST "+telegram.WebhookPath, s.handleWebhook)

	// Report routes
	mux.HandleFunc("GET /v1/report", s.handleReport)
	mux.HandleFunc("GET /v1/flows/latest", s.handleFlowsLatest)
	mux.HandleFunc("GET /v1/flows/history", s.handleFlowsHistory)

	// CORS sits outside auth so preflights and 401s still carry its headers.
	handler := corsMiddleware(s.authMiddleware(mux), opts.CORSOrigin)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.ReportTimeout + writeMargin,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server started")
	if s.apiKey != "" {
		s.log.Info("authentication enabled for /v1 (Bearer token)")
	} else {
		s.log.Info("authentication disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

// authMiddleware guards /v1 routes. Liveness and the Telegram webhook stay
// open since their callers cannot send our key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
