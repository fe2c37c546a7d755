package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
	"github.com/clearlens/governance-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type submitJobRequest struct {
	Name                     string         `json:"name"`
	JobType                  string         `json:"job_type" binding:"required"`
	Priority                 int            `json:"priority"`
	Parameters               map[string]any `json:"parameters"`
	Tags                     []string       `json:"tags"`
	MaxRetries               int            `json:"max_retries"`
	EstimatedDurationSeconds int            `json:"estimated_duration_seconds"`
}

// POST /api/v1/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req submitJobRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobs.Submit(dbctx.New(c.Request.Context()), services.SubmitJobInput{
		Name:          req.Name,
		JobType:       domain.JobType(req.JobType),
		Priority:      req.Priority,
		Parameters:    req.Parameters,
		Tags:          req.Tags,
		MaxRetries:    req.MaxRetries,
		EstimatedSecs: req.EstimatedDurationSeconds,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}

// GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	skip, limit := parsePagination(c)
	filter := repos.JobFilter{
		Status:  domain.JobStatus(c.Query("status")),
		JobType: domain.JobType(c.Query("job_type")),
		Skip:    skip,
		Limit:   limit,
	}
	jobs, total, err := h.jobs.ListJobs(dbctx.New(c.Request.Context()), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, jobs, total, skip, limit)
}

// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(dbctx.New(c.Request.Context()), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(dbctx.New(c.Request.Context()), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

type retryJobRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// POST /api/v1/jobs/:id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	jobID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req retryJobRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	job, err := h.jobs.Retry(dbctx.New(c.Request.Context()), jobID, req.Parameters)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

type progressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

// PATCH /api/v1/jobs/:id/progress
func (h *JobHandler) UpdateProgress(c *gin.Context) {
	jobID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req progressRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobs.UpdateProgress(dbctx.New(c.Request.Context()), jobID, *req.Progress)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/v1/jobs/:id/artifacts
func (h *JobHandler) ListArtifacts(c *gin.Context) {
	jobID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	artifacts, err := h.jobs.ListArtifacts(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"artifacts": artifacts})
}
