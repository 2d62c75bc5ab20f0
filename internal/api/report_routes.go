package api

import (
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxUpdateBytes = 1 << 20

// handleWebhook acknowledges the update at once and hands it to the bot.
// Telegram redelivers anything not answered with 200, so slow reports must
// not hold the request open.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeError(w, http.StatusNotFound, "webhook not enabled")
		return
	}

	var u tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&u); err != nil {
		s.log.WithError(err).Warn("malformed webhook update")
		writeError(w, http.StatusBadRequest, "malformed update")
		return
	}

	s.updates.Dispatch(s.baseCtx, u)
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, s.reporter.Build(r.Context()))
}

func (s *Server) handleFlowsLatest(w http.ResponseWriter, r *http.Request) {
	if s.flows == nil {
		writeError(w, http.StatusNotFound, "flow archive not configured")
		return
	}

	rec, err := s.flows.GetLatest(r.Context())
	if err != nil {
		s.log.WithError(err).Error("fetch latest flows failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch flow data")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no flow data available")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFlowsHistory(w http.ResponseWriter, r *http.Request) {
	if s.flows == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	limit := parseLimit(r, 30)
	history, err := s.flows.GetHistory(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("fetch flow history failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch flow history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}
