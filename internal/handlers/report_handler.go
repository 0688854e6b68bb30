package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/services/reports"
)

// GenerateReportRequest is the POST /api/reports/generate payload. An
// unknown template type is accepted and served with the standard template.
type GenerateReportRequest struct {
	UserID       string                 `json:"user_id" validate:"required"`
	CompanyName  string                 `json:"company_name" validate:"required"`
	TemplateType string                 `json:"template_type"`
	CompanyData  map[string]interface{} `json:"company_data" validate:"required"`
}

// ReportHandler handles HTTP requests for report generation
type ReportHandler struct {
	reportService *reports.Service
	validate      *validator.Validate
	logger        arbor.ILogger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *reports.Service, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		validate:      validator.New(),
		logger:        logger,
	}
}

// GenerateHandler handles POST /api/reports/generate. It creates the report
// document and enqueues the generation job, returning both IDs so the
// caller can poll status.
func (h *ReportHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	report, err := h.reportService.CreateReport(r.Context(), req.UserID, req.CompanyName, req.TemplateType, req.CompanyData)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create report")
		WriteError(w, http.StatusInternalServerError, "Failed to create report")
		return
	}

	jobID, err := h.reportService.EnqueueFullGeneration(r.Context(), report.ID, req.UserID, req.CompanyData, req.TemplateType)
	if err != nil {
		h.logger.Error().Err(err).Str("report_id", report.ID).Msg("Failed to enqueue report generation")
		WriteError(w, http.StatusInternalServerError, "Failed to enqueue report generation")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"report_id": report.ID,
		"job_id":    jobID,
		"status":    "queued",
	})
}

// ListHandler handles GET /api/reports?user_id=...&limit=...
func (h *ReportHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := h.reportService.ListReports(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list reports")
		WriteError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": list,
		"count":   len(list),
	})
}

// ReportRoutesHandler dispatches /api/reports/{id} (GET, DELETE) and
// /api/reports/{id}/status (GET).
func (h *ReportHandler) ReportRoutesHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		switch r.Method {
		case http.MethodGet:
			h.getReport(w, r, parts[0])
		case http.MethodDelete:
			h.deleteReport(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "status":
		if !RequireMethod(w, r, "GET") {
			return
		}
		h.getStatus(w, r, parts[0])
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ReportHandler) getReport(w http.ResponseWriter, r *http.Request, reportID string) {
	report, err := h.reportService.GetReport(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, interfaces.ErrReportNotFound) {
			WriteError(w, http.StatusNotFound, "Report not found")
			return
		}
		h.logger.Error().Err(err).Str("report_id", reportID).Msg("Failed to get report")
		WriteError(w, http.StatusInternalServerError, "Failed to get report")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) deleteReport(w http.ResponseWriter, r *http.Request, reportID string) {
	if err := h.reportService.DeleteReport(r.Context(), reportID); err != nil {
		if errors.Is(err, interfaces.ErrReportNotFound) {
			WriteError(w, http.StatusNotFound, "Report not found")
			return
		}
		h.logger.Error().Err(err).Str("report_id", reportID).Msg("Failed to delete report")
		WriteError(w, http.StatusInternalServerError, "Failed to delete report")
		return
	}
	WriteSuccess(w, "Report deleted")
}

func (h *ReportHandler) getStatus(w http.ResponseWriter, r *http.Request, reportID string) {
	status, err := h.reportService.GetGenerationStatus(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, interfaces.ErrReportNotFound) {
			WriteError(w, http.StatusNotFound, "Report not found")
			return
		}
		h.logger.Error().Err(err).Str("report_id", reportID).Msg("Failed to get generation status")
		WriteError(w, http.StatusInternalServerError, "Failed to get generation status")
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
