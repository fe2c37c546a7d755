package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/clearlens/governance-backend/internal/lifecycle"
)

type JobType string

const (
	JobTypeNotebookExecution JobType = "notebook_execution"
	JobTypeModelTraining     JobType = "model_training"
	JobTypeDataProcessing    JobType = "data_processing"
	JobTypeAssessment        JobType = "assessment"
	JobTypeReportGeneration  JobType = "report_generation"
	JobTypeCleanup           JobType = "cleanup"
)

func KnownJobType(t JobType) bool {
	switch t {
	case JobTypeNotebookExecution, JobTypeModelTraining, JobTypeDataProcessing,
		JobTypeAssessment, JobTypeReportGeneration, JobTypeCleanup:
		return true
	default:
		return false
	}
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusRetrying  JobStatus = "retrying"
)

// JobLifecycle is the single source of truth for legal job status moves.
// Terminal states are only re-enterable through retry (failed -> retrying).
var JobLifecycle = lifecycle.New(map[JobStatus][]JobStatus{
	JobStatusPending:  {JobStatusRunning, JobStatusFailed, JobStatusCancelled},
	JobStatusRunning:  {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
	JobStatusFailed:   {JobStatusRetrying},
	JobStatusRetrying: {JobStatusRunning, JobStatusFailed, JobStatusCancelled},
}, []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled})

// Job is one unit of asynchronous work handed to the external task runner and
// tracked by status, progress and artifacts.
type Job struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string     `gorm:"column:name;not null" json:"name"`
	JobType        JobType    `gorm:"column:job_type;not null;index" json:"job_type"`
	Status         JobStatus  `gorm:"column:status;not null;index;check:status IN ('pending','running','completed','failed','cancelled','retrying')" json:"status"`
	Priority       int        `gorm:"column:priority;not null;default:0" json:"priority"`
	Progress       int        `gorm:"column:progress;not null;default:0" json:"progress"`
	ErrorMessage   string     `gorm:"column:error_message" json:"error_message,omitempty"`
	RetryCount     int        `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	MaxRetries     int        `gorm:"column:max_retries;not null;default:3" json:"max_retries"`
	OwnerUserID    uuid.UUID  `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;column:organization_id;index" json:"organization_id"`
	TaskHandle     string     `gorm:"column:task_handle;index" json:"task_handle,omitempty"`

	Parameters       datatypes.JSON `gorm:"column:parameters;type:jsonb" json:"parameters"`
	Tags             datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
	ArtifactURLs     datatypes.JSON `gorm:"column:artifact_urls;type:jsonb" json:"artifact_urls,omitempty"`
	ArtifactMetadata datatypes.JSON `gorm:"column:artifact_metadata;type:jsonb" json:"artifact_metadata,omitempty"`

	EstimatedDurationSeconds int `gorm:"column:estimated_duration_seconds" json:"estimated_duration_seconds,omitempty"`
	ActualDurationSeconds    int `gorm:"column:actual_duration_seconds" json:"actual_duration_seconds,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Job) TableName() string { return "jobs" }

func (j *Job) Terminal() bool {
	return JobLifecycle.IsTerminal(j.Status)
}

// Retryable reports whether a retry is currently permitted: only failed jobs
// with remaining retry budget.
func (j *Job) Retryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}
