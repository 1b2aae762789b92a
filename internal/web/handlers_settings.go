package web

import (
	"fmt"
	"net/http"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

func (s *Server) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Categories())
}

type categoriesRequest struct {
	Rules []domain.CategoryRule `json:"rules"`
}

// handlePutCategories replaces the whole rule table.
func (s *Server) handlePutCategories(w http.ResponseWriter, r *http.Request) {
	var req categoriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Rules == nil {
		s.writeError(w, r, fmt.Errorf("%w: rules is required", errBadRequest))
		return
	}
	rules, err := s.svc.ReplaceCategories(r.Context(), req.Rules)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleRecategorize(w http.ResponseWriter, r *http.Request) {
	rng, err := s.queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.Recategorize(r.Context(), rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    rng.From,
		"to":      rng.To,
		"changed": n,
	})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Schedule()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type scheduleRequest struct {
	ReportTime string `json:"report_time"`
}

func (s *Server) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.SetReportTime(req.ReportTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"saved":           true,
		"report_time":     view.ReportTime,
		"cron_expression": view.CronExpression,
		"next_fire_at":    view.NextFireAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
