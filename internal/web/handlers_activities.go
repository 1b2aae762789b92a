package web

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	rng, err := s.queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := activityFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.svc.Activities(r.Context(), rng, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":       rng.From,
		"to":         rng.To,
		"count":      len(records),
		"activities": records,
	})
}

func activityFilter(r *http.Request) (domain.ActivityFilter, error) {
	filter := domain.ActivityFilter{Category: r.URL.Query().Get("category")}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k, err := domain.ParseSubjectKind(kind)
		if err != nil {
			return filter, err
		}
		filter.SubjectKind = k
	}
	return filter, nil
}

func (s *Server) handleAppendActivity(w http.ResponseWriter, r *http.Request) {
	var rec domain.ActivityRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	stored, err := s.svc.AppendActivity(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

type domainBatch struct {
	Visits []domain.DomainVisit `json:"visits"`
}

func (s *Server) handleReplaceDomains(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var batch domainBatch
	if err := decodeJSON(w, r, &batch); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.ReplaceDomainVisits(r.Context(), date, batch.Visits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var exportHeader = []string{"timestamp", "date", "subject", "subject_kind", "window_title", "duration_seconds", "category"}

func (s *Server) handleExportActivities(w http.ResponseWriter, r *http.Request) {
	rng, err := s.queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := activityFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.svc.Activities(r.Context(), rng, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := "activities-" + rng.From.String() + "_" + rng.To.String()
	loc := s.svc.Location()

	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+name+".csv")

		writer := csv.NewWriter(w)
		_ = writer.Write(exportHeader)
		for _, rec := range records {
			_ = writer.Write(exportRow(rec, loc))
		}
		writer.Flush()

	case "xlsx":
		f, err := activitiesWorkbook(records, loc)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer func() { _ = f.Close() }()

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+name+".xlsx")
		if _, err := f.WriteTo(w); err != nil {
			s.log.Error("xlsx export", "err", err)
		}

	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename="+name+".json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(records)

	default:
		s.writeError(w, r, fmt.Errorf("%w: unsupported export format %q (json, csv, xlsx)", errBadRequest, format))
	}
}

func exportRow(rec *domain.ActivityRecord, loc *time.Location) []string {
	title := ""
	if rec.WindowTitle != nil {
		title = *rec.WindowTitle
	}
	return []string{
		rec.Timestamp.In(loc).Format(time.RFC3339),
		domain.DateOf(rec.Timestamp, loc).String(),
		rec.Subject,
		string(rec.SubjectKind),
		title,
		strconv.FormatInt(rec.DurationSeconds, 10),
		rec.CategoryOr(domain.Uncategorized),
	}
}

// activitiesWorkbook builds a workbook with the raw records and a per-category summary.
func activitiesWorkbook(records []*domain.ActivityRecord, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Activities"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, err
	}

	totals := make(map[string]int64)
	var order []string
	for i, rec := range records {
		row := exportRow(rec, loc)
		values := []any{row[0], row[1], row[2], row[3], row[4], rec.DurationSeconds, row[6]}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			_ = f.Close()
			return nil, err
		}
		if _, ok := totals[row[6]]; !ok {
			order = append(order, row[6])
		}
		totals[row[6]] += rec.DurationSeconds
	}

	const summary = "Categories"
	if _, err := f.NewSheet(summary); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(summary, "A1", &[]any{"category", "duration_seconds", "hours"}); err != nil {
		_ = f.Close()
		return nil, err
	}
	for i, c := range order {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{c, totals[c], float64(totals[c]) / 3600}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}
