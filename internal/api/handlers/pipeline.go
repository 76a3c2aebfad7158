package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-swing/internal/pipeline"
	"github.com/wonny/aegis-swing/internal/scheduler"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// ReportSource exposes the latest weekend run
type ReportSource interface {
	LastReport() *pipeline.RunReport
}

// JobControl is the scheduler surface used by the API
type JobControl interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
	RecentResults(jobName string, n int) ([]scheduler.JobResult, error)
}

const defaultHistoryLimit = 20

// PipelineHandler handles pipeline and scheduler endpoints
// ⭐ SSOT: 파이프라인 API 핸들러는 여기서만
type PipelineHandler struct {
	reports ReportSource
	jobs    JobControl
	logger  *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(reports ReportSource, jobs JobControl, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		reports: reports,
		jobs:    jobs,
		logger:  log,
	}
}

// GetLastRun returns the latest weekend pipeline report
// GET /api/pipeline/last
func (h *PipelineHandler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	report := h.reports.LastReport()
	if report == nil {
		respondError(w, http.StatusNotFound, "Pipeline has not run yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetJobs returns scheduler job statistics
// GET /api/scheduler/jobs
func (h *PipelineHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jobs.GetJobStats())
}

// RunJob triggers a job outside its schedule
// POST /api/scheduler/jobs/{name}/run
func (h *PipelineHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.jobs.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "started",
	})
}

// GetJobHistory returns the job's latest runs
// GET /api/scheduler/jobs/{name}/history?limit=N
func (h *PipelineHandler) GetJobHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.jobs.RecentResults(name, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, results)
}
