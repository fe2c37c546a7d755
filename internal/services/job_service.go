package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/events"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/blob"
	"github.com/clearlens/governance-backend/internal/platform/ctxutil"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

type SubmitJobInput struct {
	Name           string
	JobType        domain.JobType
	Priority       int
	Parameters     map[string]any
	Tags           []string
	MaxRetries     int
	EstimatedSecs  int
	OwnerUserID    uuid.UUID
	OrganizationID uuid.UUID
}

// Artifact is one output object of a completed job. Size/content type are
// re-derived from the blob store at read time, not trusted from the stored
// snapshot.
type Artifact struct {
	Name        string         `json:"name"`
	URL         string         `json:"url"`
	Size        int64          `json:"size"`
	ContentType string         `json:"content_type,omitempty"`
	Updated     time.Time      `json:"updated,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type JobService interface {
	Submit(dbc dbctx.Context, in SubmitJobInput) (*domain.Job, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	GetJob(dbc dbctx.Context, jobID uuid.UUID) (*domain.Job, error)
	ListJobs(dbc dbctx.Context, filter repos.JobFilter) ([]*domain.Job, int64, error)

	Start(dbc dbctx.Context, jobID uuid.UUID) (*domain.Job, error)
	Complete(dbc dbctx.Context, jobID uuid.UUID, artifactURLs []string, artifactMetadata map[string]any) (*domain.Job, error)
	Fail(dbc dbctx.Context, jobID uuid.UUID, errorMessage string) (*domain.Job, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*domain.Job, error)
	Retry(dbc dbctx.Context, jobID uuid.UUID, updatedParameters map[string]any) (*domain.Job, error)
	UpdateProgress(dbc dbctx.Context, jobID uuid.UUID, progress int) (*domain.Job, error)

	ListArtifacts(ctx context.Context, jobID uuid.UUID) ([]Artifact, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRepo
	runner TaskRunner
	store  blob.Store
	bus    events.Bus
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRepo,
	runner TaskRunner,
	store blob.Store,
	bus events.Bus,
) JobService {
	if bus == nil {
		bus = events.NopBus{}
	}
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		runner: runner,
		store:  store,
		bus:    bus,
	}
}

func (s *jobService) Submit(dbc dbctx.Context, in SubmitJobInput) (*domain.Job, error) {
	if !domain.KnownJobType(in.JobType) {
		return nil, apierr.Validation("unsupported_job_type", "unsupported job_type %q", string(in.JobType))
	}
	if in.Name == "" {
		in.Name = string(in.JobType)
	}
	owner := in.OwnerUserID
	org := in.OrganizationID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		if owner == uuid.Nil {
			owner = rd.UserID
		}
		if org == uuid.Nil {
			org = rd.OrganizationID
		}
	}
	if owner == uuid.Nil {
		return nil, apierr.Validation("missing_owner", "missing owner_user_id")
	}
	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:                       uuid.New(),
		Name:                     in.Name,
		JobType:                  in.JobType,
		Status:                   domain.JobStatusPending,
		Priority:                 in.Priority,
		Progress:                 0,
		RetryCount:               0,
		MaxRetries:               maxRetries,
		OwnerUserID:              owner,
		OrganizationID:           org,
		Parameters:               mustJSON(in.Parameters),
		Tags:                     mustJSON(in.Tags),
		EstimatedDurationSeconds: in.EstimatedSecs,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.repo.Create(dbc, job); err != nil {
		return nil, apierr.Internal("create_job", err)
	}
	s.publish(dbc.Context(), events.EventJobCreated, job, "")

	// Inside a real transaction dispatch must wait for the commit; the caller
	// invokes Dispatch afterwards.
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job created inside transaction; dispatch deferred", "job_id", job.ID, "job_type", job.JobType)
		return job, nil
	}
	handle, err := s.dispatch(dbc, job.ID)
	if err != nil {
		return job, err
	}
	job.TaskHandle = handle
	return job, nil
}

func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	_, err := s.dispatch(dbc, jobID)
	return err
}

// dispatch hands the job to the task runner and persists the handle it
// returns; the handle is opaque and not assumed to equal the job id.
func (s *jobService) dispatch(dbc dbctx.Context, jobID uuid.UUID) (string, error) {
	if s.runner == nil {
		return "", apierr.Unavailable("runner_not_configured", nil)
	}
	if jobID == uuid.Nil {
		return "", apierr.Validation("missing_job_id", "missing job id")
	}
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return "", apierr.Internal("load_job", err)
	}
	if job == nil {
		return "", apierr.NotFound("job_not_found", "job %s not found", jobID)
	}

	handle, dispatchErr := s.runner.Dispatch(dbc.Context(), jobID, string(job.JobType))
	if dispatchErr == nil {
		if err := s.repo.UpdateFields(dbc, jobID, map[string]interface{}{
			"task_handle": handle,
		}); err != nil {
			return "", apierr.Internal("store_task_handle", err)
		}
		return handle, nil
	}

	// The failure write reuses the caller's unit of work, and must never mask
	// the original dispatch error.
	now := time.Now().UTC()
	if err := s.repo.UpdateFields(dbc, jobID, map[string]interface{}{
		"status":        domain.JobStatusFailed,
		"error_message": dispatchErr.Error(),
		"completed_at":  now,
	}); err != nil {
		s.log.Error("Mark job failed after dispatch error", "job_id", jobID, "error", err)
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = dispatchErr.Error()
	s.publish(dbc.Context(), events.EventJobFailed, job, dispatchErr.Error())
	return "", apierr.Unavailable("dispatch_failed", dispatchErr)
}

func (s *jobService) GetJob(dbc dbctx.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, apierr.Internal("load_job", err)
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s not found", jobID)
	}
	if err := authorizeJob(dbc.Ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *jobService) ListJobs(dbc dbctx.Context, filter repos.JobFilter) ([]*domain.Job, int64, error) {
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		if filter.OrganizationID == uuid.Nil && rd.OrganizationID != uuid.Nil {
			filter.OrganizationID = rd.OrganizationID
		} else if filter.OwnerUserID == uuid.Nil && rd.OrganizationID == uuid.Nil {
			filter.OwnerUserID = rd.UserID
		}
	}
	jobs, total, err := s.repo.List(dbc, filter)
	if err != nil {
		return nil, 0, apierr.Internal("list_jobs", err)
	}
	return jobs, total, nil
}

// transition runs fn against a row-locked job inside one transaction so that
// concurrent retries or cancels on the same job cannot both observe the old
// status.
func (s *jobService) transition(dbc dbctx.Context, jobID uuid.UUID, fn func(inner dbctx.Context, job *domain.Job) error) (*domain.Job, error) {
	if jobID == uuid.Nil {
		return nil, apierr.Validation("missing_job_id", "missing job id")
	}
	handle := dbc.Tx
	if handle == nil {
		handle = s.db
	}
	var out *domain.Job
	err := handle.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.repo.GetByIDForUpdate(inner, jobID)
		if err != nil {
			return apierr.Internal("load_job", err)
		}
		if job == nil {
			return apierr.NotFound("job_not_found", "job %s not found", jobID)
		}
		if err := authorizeJob(dbc.Ctx, job); err != nil {
			return err
		}
		if err := fn(inner, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *jobService) Start(dbc dbctx.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.transition(dbc, jobID, func(inner dbctx.Context, job *domain.Job) error {
		if err := domain.JobLifecycle.Transition(job.Status, domain.JobStatusRunning); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, job.ID, map[string]interface{}{
			"status":     domain.JobStatusRunning,
			"started_at": now,
		}); err != nil {
			return apierr.Internal("start_job", err)
		}
		job.Status = domain.JobStatusRunning
		job.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Context(), events.EventJobStarted, job, "")
	return job, nil
}

func (s *jobService) Complete(dbc dbctx.Context, jobID uuid.UUID, artifactURLs []string, artifactMetadata map[string]any) (*domain.Job, error) {
	job, err := s.transition(dbc, jobID, func(inner dbctx.Context, job *domain.Job) error {
		if err := domain.JobLifecycle.Transition(job.Status, domain.JobStatusCompleted); err != nil {
			return err
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       domain.JobStatusCompleted,
			"progress":     100,
			"completed_at": now,
		}
		if job.StartedAt != nil {
			updates["actual_duration_seconds"] = int(now.Sub(*job.StartedAt).Seconds())
		}
		if len(artifactURLs) > 0 {
			updates["artifact_urls"] = mustJSON(artifactURLs)
		}
		if len(artifactMetadata) > 0 {
			updates["artifact_metadata"] = mustJSON(artifactMetadata)
		}
		if err := s.repo.UpdateFields(inner, job.ID, updates); err != nil {
			return apierr.Internal("complete_job", err)
		}
		job.Status = domain.JobStatusCompleted
		job.Progress = 100
		job.CompletedAt = &now
		if len(artifactURLs) > 0 {
			job.ArtifactURLs = mustJSON(artifactURLs)
		}
		if len(artifactMetadata) > 0 {
			job.ArtifactMetadata = mustJSON(artifactMetadata)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Context(), events.EventJobCompleted, job, "")
	return job, nil
}

func (s *jobService) Fail(dbc dbctx.Context, jobID uuid.UUID, errorMessage string) (*domain.Job, error) {
	job, err := s.transition(dbc, jobID, func(inner dbctx.Context, job *domain.Job) error {
		if err := domain.JobLifecycle.Transition(job.Status, domain.JobStatusFailed); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, job.ID, map[string]interface{}{
			"status":        domain.JobStatusFailed,
			"error_message": errorMessage,
			"completed_at":  now,
		}); err != nil {
			return apierr.Internal("fail_job", err)
		}
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = errorMessage
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Context(), events.EventJobFailed, job, errorMessage)
	return job, nil
}

func (s *jobService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.transition(dbc, jobID, func(inner dbctx.Context, job *domain.Job) error {
		if job.Terminal() {
			return apierr.Validation("job_not_cancellable", "job %s is already %s", job.ID, job.Status)
		}
		if err := domain.JobLifecycle.Transition(job.Status, domain.JobStatusCancelled); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, job.ID, map[string]interface{}{
			"status":       domain.JobStatusCancelled,
			"completed_at": now,
		}); err != nil {
			return apierr.Internal("cancel_job", err)
		}
		job.Status = domain.JobStatusCancelled
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cancellation of the runner side is cooperative; the workflow may
	// observe the status change before the signal lands.
	if s.runner != nil && job.TaskHandle != "" {
		if err := s.runner.Cancel(dbc.Context(), job.TaskHandle); err != nil {
			s.log.Warn("Cancel task runner handle", "job_id", job.ID, "error", err)
		}
	}
	s.publish(dbc.Context(), events.EventJobCancelled, job, "")
	return job, nil
}

func (s *jobService) Retry(dbc dbctx.Context, jobID uuid.UUID, updatedParameters map[string]any) (*domain.Job, error) {
	job, err := s.transition(dbc, jobID, func(inner dbctx.Context, job *domain.Job) error {
		if job.Status != domain.JobStatusFailed {
			return apierr.Validation("job_not_retryable", "job %s is %s, only failed jobs can be retried", job.ID, job.Status)
		}
		if job.RetryCount >= job.MaxRetries {
			return apierr.Validation("retry_budget_exhausted", "job %s already used %d of %d retries", job.ID, job.RetryCount, job.MaxRetries)
		}
		params := mergeParameters(job.Parameters, updatedParameters)
		if err := s.repo.UpdateFields(inner, job.ID, map[string]interface{}{
			"status":        domain.JobStatusRetrying,
			"retry_count":   job.RetryCount + 1,
			"parameters":    params,
			"error_message": "",
			"progress":      0,
			"completed_at":  nil,
		}); err != nil {
			return apierr.Internal("retry_job", err)
		}
		job.Status = domain.JobStatusRetrying
		job.RetryCount++
		job.Parameters = params
		job.ErrorMessage = ""
		job.Progress = 0
		job.CompletedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Context(), events.EventJobRetrying, job, "")

	handle, err := s.dispatch(dbc, job.ID)
	if err != nil {
		return job, err
	}
	job.TaskHandle = handle
	return job, nil
}

func (s *jobService) UpdateProgress(dbc dbctx.Context, jobID uuid.UUID, progress int) (*domain.Job, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	job, err := s.transition(dbc, jobID, func(inner dbctx.Context, job *domain.Job) error {
		if job.Status != domain.JobStatusRunning {
			return apierr.Validation("job_not_running", "progress updates require a running job, job %s is %s", job.ID, job.Status)
		}
		if err := s.repo.UpdateFields(inner, job.ID, map[string]interface{}{
			"progress": progress,
		}); err != nil {
			return apierr.Internal("update_progress", err)
		}
		job.Progress = progress
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Context(), events.EventJobProgress, job, "")
	return job, nil
}

func (s *jobService) ListArtifacts(ctx context.Context, jobID uuid.UUID) ([]Artifact, error) {
	dbc := dbctx.New(ctx)
	job, err := s.GetJob(dbc, jobID)
	if err != nil {
		return nil, err
	}

	var urls []string
	if len(job.ArtifactURLs) > 0 {
		if err := json.Unmarshal(job.ArtifactURLs, &urls); err != nil {
			return nil, apierr.Internal("decode_artifact_urls", err)
		}
	}
	var meta map[string]any
	if len(job.ArtifactMetadata) > 0 {
		_ = json.Unmarshal(job.ArtifactMetadata, &meta)
	}

	out := make([]Artifact, 0, len(urls))
	for _, rawURL := range urls {
		name := blob.BaseName(rawURL)
		artifact := Artifact{Name: name, URL: rawURL}
		if m, ok := meta[name].(map[string]any); ok {
			artifact.Metadata = m
		}
		if s.store != nil {
			key := blob.KeyFromURL(rawURL)
			attrs, err := s.store.Attrs(ctx, key)
			if err != nil {
				// Best-effort listing: one unreachable object must not fail
				// the whole response.
				s.log.Warn("Skipping artifact with unreadable attrs", "job_id", jobID, "url", rawURL, "error", err)
				continue
			}
			artifact.Size = attrs.Size
			artifact.ContentType = attrs.ContentType
			artifact.Updated = attrs.Updated
		}
		out = append(out, artifact)
	}
	return out, nil
}

func (s *jobService) publish(ctx context.Context, eventType string, job *domain.Job, message string) {
	if s.bus == nil || job == nil {
		return
	}
	ev := events.JobEvent{
		Type:        eventType,
		JobID:       job.ID,
		OwnerUserID: job.OwnerUserID,
		JobType:     string(job.JobType),
		Status:      string(job.Status),
		Progress:    job.Progress,
		Message:     message,
	}
	if err := s.bus.PublishJobEvent(ctx, ev); err != nil {
		s.log.Warn("Publish job event", "job_id", job.ID, "event", eventType, "error", err)
	}
}

func authorizeJob(ctx context.Context, job *domain.Job) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil
	}
	if rd.UserID != uuid.Nil && job.OwnerUserID == rd.UserID {
		return nil
	}
	if rd.OrganizationID != uuid.Nil && job.OrganizationID == rd.OrganizationID {
		return nil
	}
	return apierr.AccessDenied("job_access_denied", "job %s does not belong to the requesting principal", job.ID)
}

func mergeParameters(current datatypes.JSON, updates map[string]any) datatypes.JSON {
	if len(updates) == 0 {
		return current
	}
	merged := map[string]any{}
	if len(current) > 0 {
		_ = json.Unmarshal(current, &merged)
	}
	for k, v := range updates {
		merged[k] = v
	}
	return mustJSON(merged)
}

func mustJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte(`{}`))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

// gorm.DB pointers are cloned freely (WithContext/Session), so pointer
// identity cannot detect a transaction; the ConnPool type can.
func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}
