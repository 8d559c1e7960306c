package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/siddham-jain/msme-mitr-sub000/internal/analytics"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// listResponse wraps paginated listings.
type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"page_size"`
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := s.analytics.Summary(r.Context(), filter)
	if err != nil {
		s.logger.Error("summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) attributes(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := parsePage(r)
	items, total, err := s.analytics.Attributes(r.Context(), filter, page)
	if err != nil {
		s.logger.Error("attribute listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list attributes")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Size: page.Size})
}

func (s *Server) interests(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	items, total, err := s.analytics.Interests(r.Context(), page)
	if err != nil {
		s.logger.Error("interest listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list interests")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Size: page.Size})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := analytics.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = analytics.FormatCSV
	}
	if format != analytics.FormatCSV && format != analytics.FormatJSON {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}
	anonymize := r.URL.Query().Get("anonymize") == "true"

	if format == analytics.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="attributes.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := s.analytics.Export(r.Context(), w, filter, format, anonymize); err != nil {
		s.logger.Error("export failed", "error", err)
	}
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.logger.Error("queue stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) retryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := s.queue.RetryFailed(r.Context())
	if err != nil {
		s.logger.Error("bulk retry failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": n})
}

func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter
	if raw := q.Get("from"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return f, fmt.Errorf("invalid from: %v", err)
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return f, fmt.Errorf("invalid to: %v", err)
		}
		f.To = t
	}
	f.Location = q.Get("location")
	f.Industry = q.Get("industry")
	f.BusinessSize = store.BusinessSize(q.Get("business_size"))
	if raw := q.Get("languages"); raw != "" {
		f.Languages = strings.Split(raw, ",")
	}
	return f, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parsePage(r *http.Request) store.Page {
	q := r.URL.Query()
	page := store.Page{Number: 1, Size: 50}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page.Number = n
	}
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 && n <= 500 {
		page.Size = n
	}
	page.SortBy = q.Get("sort_by")
	page.SortDesc = q.Get("sort_desc") == "true"
	return page
}
