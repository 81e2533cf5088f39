package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/plan"
	"github.com/optiview/optiview/internal/queries"
	"github.com/optiview/optiview/internal/service"
	"github.com/optiview/optiview/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes with a structured
// payload.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, plan.ErrItemNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrCrawlActive),
		errors.Is(err, index.ErrBuildInProgress),
		errors.Is(err, index.ErrScanActive):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, index.ErrNotReady),
		errors.Is(err, service.ErrNoPages),
		errors.Is(err, index.ErrNoChunks),
		errors.Is(err, queries.ErrEmptyQuerySet),
		errors.Is(err, plan.ErrScanNotCompleted):
		status, code = http.StatusUnprocessableEntity, "precondition"
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
}

type crawlRequest struct {
	SeedURL  string `json:"seed_url"`
	MaxPages int    `json:"max_pages,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
	DelayMs  int    `json:"delay_ms,omitempty"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	ScanID string `json:"scan_id,omitempty"`
}

func (s *Server) handleStartCrawl(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("projectId")

	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.SeedURL == "" {
		badRequest(w, "seed_url is required")
		return
	}

	job, err := s.svc.StartCrawl(r.Context(), project, service.CrawlRequest{
		SeedURL:  req.SeedURL,
		MaxPages: req.MaxPages,
		MaxDepth: req.MaxDepth,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(jobStatus(job))})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Status(r.Context(), r.PathValue("projectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBuildIndexes(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.BuildIndexes(r.Context(), r.PathValue("projectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(jobStatus(job))})
}

func (s *Server) handleExecuteScan(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("projectId")

	var cfg models.ScanConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	job, err := s.svc.ExecuteScan(r.Context(), project, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{
		JobID:  job.ID,
		Status: string(jobStatus(job)),
		ScanID: job.ScanID,
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	scans, err := s.svc.ListScans(r.Context(), r.PathValue("projectId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if scans == nil {
		scans = []models.Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.svc.GetScan(r.Context(), r.PathValue("projectId"), r.PathValue("scanId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Recommendations(r.Context(), r.PathValue("projectId"), r.PathValue("scanId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []plan.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GenerateActionPlan(r.Context(), r.PathValue("projectId"), r.PathValue("scanId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetActionPlan(r.Context(), r.PathValue("projectId"), r.PathValue("scanId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type toggleRequest struct {
	Completed bool `json:"completed"`
}

func (s *Server) handleToggleAction(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	p, err := s.svc.ToggleActionItem(r.Context(),
		r.PathValue("projectId"), r.PathValue("scanId"), r.PathValue("actionId"), req.Completed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jobStatus reads a job's status safely.
func jobStatus(j *service.Job) service.JobStatus {
	return j.Snapshot().Status
}
