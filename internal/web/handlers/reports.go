package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/reid-eval/internal/database"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// ReportsHandler serves stored evaluation reports
type ReportsHandler struct {
	reports database.ReportReader
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(deps Dependencies) *ReportsHandler {
	h := &ReportsHandler{}
	if deps.Reports != nil {
		h.reports = deps.Reports
	}
	return h
}

// List returns the newest report summaries
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		respondError(w, http.StatusServiceUnavailable, "report storage not configured")
		return
	}

	limit := defaultReportLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxReportLimit)
	}

	summaries, err := h.reports.ListReports(r.Context(), limit)
	if err != nil {
		log.Printf("list reports: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if summaries == nil {
		summaries = []database.ReportSummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}

// Get returns one full report
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		respondError(w, http.StatusServiceUnavailable, "report storage not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := h.reports.GetReport(r.Context(), id)
	if err != nil {
		log.Printf("get report %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
