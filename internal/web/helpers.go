package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// errBadRequest marks malformed query parameters and bodies.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrInvalidRule),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrScheduleMisconfigured):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func pathDate(r *http.Request) (domain.Date, error) {
	d, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		return domain.Date{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return d, nil
}

// queryRange reads from/to, each defaulting to today.
func (s *Server) queryRange(r *http.Request) (domain.DateRange, error) {
	today := s.svc.Today()
	rng := domain.DateRange{From: today, To: today}
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			return rng, fmt.Errorf("%w: from: %v", errBadRequest, err)
		}
		rng.From = d
		if q.Get("to") == "" && d.After(today) {
			rng.To = d
		}
	}
	if v := q.Get("to"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			return rng, fmt.Errorf("%w: to: %v", errBadRequest, err)
		}
		rng.To = d
	}
	return domain.NewDateRange(rng.From, rng.To)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadRequest, key)
	}
	return n, nil
}
