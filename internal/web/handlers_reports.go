package web

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/emiliopalmerini/mtrack/internal/ports"
	"github.com/emiliopalmerini/mtrack/internal/util"
	"github.com/emiliopalmerini/mtrack/internal/web/templates"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reports, err := s.svc.Reports(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.LatestReport(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.svc.Report(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.svc.GenerateReport(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	md, err := s.svc.Artifact(r.Context(), date, ports.FormatMarkdown)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write(md)
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var contentType, ext string
	format := ports.ArtifactFormat(chi.URLParam(r, "format"))
	switch format {
	case ports.FormatMarkdown:
		contentType, ext = "text/markdown; charset=utf-8", "md"
	case ports.FormatJSON:
		contentType, ext = "application/json", "json"
	default:
		s.writeError(w, r, fmt.Errorf("%w: unknown artifact format %q (markdown, json)", errBadRequest, format))
		return
	}

	data, err := s.svc.Artifact(r.Context(), date, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=activity-report-%s.%s", date, ext))
	_, _ = w.Write(data)
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, err := pathDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.svc.Report(ctx, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	md, err := s.svc.Artifact(ctx, date, ports.FormatMarkdown)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page := templates.ReportPage{
		Date:         date.String(),
		GeneratedAt:  util.FormatDateTime(rep.GeneratedAt, s.svc.Location()),
		TotalTracked: util.FormatDuration(rep.Summary().TotalSeconds),
		Body:         template.HTML(renderMarkdown(md)),
	}
	if prev, err := s.svc.Report(ctx, date.AddDays(-1)); err == nil {
		page.Prev = prev.Date.String()
	}
	if next, err := s.svc.Report(ctx, date.AddDays(1)); err == nil {
		page.Next = next.Date.String()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if IsHTMX(r) {
		_ = templates.ReportContent(page).Render(ctx, w)
		return
	}
	_ = templates.Report(page).Render(ctx, w)
}

func (s *Server) handleReportIndexHTML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reports, err := s.svc.Reports(ctx, 90)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]templates.ReportListItem, len(reports))
	for i, rep := range reports {
		items[i] = templates.ReportListItem{
			Date:         rep.Date.String(),
			GeneratedAt:  util.FormatDateTime(rep.GeneratedAt, s.svc.Location()),
			TotalTracked: util.FormatDuration(rep.TotalSeconds),
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = templates.ReportList(items).Render(ctx, w)
}

// renderMarkdown converts a report artifact to HTML. Raw HTML in the source is skipped.
func renderMarkdown(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return markdown.ToHTML(md, p, renderer)
}
