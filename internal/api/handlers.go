package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cleanearth/mailblast/internal/batch"
	"github.com/cleanearth/mailblast/internal/dispatch"
	"github.com/cleanearth/mailblast/internal/recipients"
	"github.com/cleanearth/mailblast/internal/sendgrid"
	"github.com/cleanearth/mailblast/internal/tabular"
)

const version = "0.1.0"

// In-memory threshold for multipart parsing; larger parts spool to
// temporary files within the request body limit.
const maxFormMemory = 10 << 20

// CampaignResponse is the response for POST /campaigns
type CampaignResponse struct {
	*batch.Summary
	Warning string `json:"warning,omitempty"`
}

// ListResponse is the response for GET /campaigns
type ListResponse struct {
	Campaigns []batch.Summary `json:"campaigns"`
	Count     int             `json:"count"`
}

// TemplatesResponse is the response for GET /templates
type TemplatesResponse struct {
	Templates []string `json:"templates"`
}

// DashboardResponse is the response for GET /dashboard
type DashboardResponse struct {
	Totals *sendgrid.GlobalStats `json:"totals"`
	Daily  []sendgrid.DayStat    `json:"daily"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleCreateCampaign handles POST /api/v1/campaigns. The request is
// multipart form data: subject, custom_message, template, an optional
// manual recipients field and an optional spreadsheet upload.
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		s.sendError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	subject := r.FormValue("subject")
	if subject == "" {
		s.sendError(w, http.StatusBadRequest, "subject is required")
		return
	}
	customMessage := r.FormValue("custom_message")
	templateName := r.FormValue("template")

	var manual, uploaded []recipients.Recipient

	if text := r.FormValue("recipients"); text != "" {
		var err error
		manual, err = recipients.ParseManual(text)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	source := batch.SourceManual
	fileName := ""

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		fileName = header.Filename
		source = batch.SourceFile

		table, err := tabular.Parse(header.Filename, file)
		if err != nil {
			if errors.Is(err, tabular.ErrUnsupportedFormat) {
				s.sendError(w, http.StatusBadRequest, "Unsupported file format, use CSV or Excel")
				return
			}
			s.logger.Warn("failed to parse recipient file", "file", header.Filename, "error", err)
			s.sendError(w, http.StatusUnprocessableEntity, "Could not process the uploaded file")
			return
		}

		uploaded, err = recipients.Extract(table)
		if err != nil {
			s.logger.Warn("failed to extract recipients", "file", header.Filename, "error", err)
			s.sendError(w, http.StatusUnprocessableEntity, "Could not extract recipients from the uploaded file")
			return
		}
	} else if err != http.ErrMissingFile {
		s.sendError(w, http.StatusBadRequest, "Invalid file upload")
		return
	}

	all := recipients.Merge(manual, uploaded)
	if len(all) == 0 {
		s.sendError(w, http.StatusBadRequest, "No valid recipients found")
		return
	}

	summary, err := s.runner.Run(r.Context(), &dispatch.Campaign{
		Subject:    subject,
		Template:   templateName,
		Source:     source,
		FileName:   fileName,
		HTML:       s.templates.Render(templateName, customMessage),
		Recipients: all,
	})
	if err != nil {
		var perr *batch.PersistenceError
		if errors.As(err, &perr) && summary != nil {
			// The campaign went out; only the record on disk is missing.
			s.sendJSON(w, http.StatusOK, CampaignResponse{
				Summary: summary,
				Warning: "campaign sent but the batch record could not be persisted",
			})
			return
		}
		s.logger.Error("campaign dispatch failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Campaign dispatch failed")
		return
	}

	s.sendJSON(w, http.StatusOK, CampaignResponse{Summary: summary})
}

// handleListCampaigns handles GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	summaries, err := s.store.List(limit)
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list campaigns")
		return
	}
	if summaries == nil {
		summaries = []batch.Summary{}
	}

	s.sendJSON(w, http.StatusOK, ListResponse{
		Campaigns: summaries,
		Count:     len(summaries),
	})
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("failed to get campaign", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get campaign")
		return
	}
	if summary == nil {
		s.sendError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	s.sendJSON(w, http.StatusOK, summary)
}

// handleCampaignLog handles GET /api/v1/campaigns/{id}/log
func (s *Server) handleCampaignLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	logText, err := s.store.ReadLog(id)
	if err != nil {
		s.logger.Error("failed to read campaign log", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to read campaign log")
		return
	}
	if logText == "" {
		s.sendError(w, http.StatusNotFound, "Campaign log not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(logText))
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := s.templates.List()
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	if names == nil {
		names = []string{}
	}

	s.sendJSON(w, http.StatusOK, TemplatesResponse{Templates: names})
}

// handleDashboard handles GET /api/v1/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			s.sendError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}

	totals, err := s.analytics.GlobalStats(r.Context())
	if err != nil {
		s.logger.Error("failed to fetch global stats", "error", err)
		s.sendError(w, http.StatusBadGateway, "Failed to fetch delivery statistics")
		return
	}

	daily, err := s.analytics.Stats(r.Context(), days)
	if err != nil {
		s.logger.Error("failed to fetch daily stats", "error", err)
		s.sendError(w, http.StatusBadGateway, "Failed to fetch delivery statistics")
		return
	}

	s.sendJSON(w, http.StatusOK, DashboardResponse{
		Totals: totals,
		Daily:  daily,
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
