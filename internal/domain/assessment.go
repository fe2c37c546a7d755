package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/clearlens/governance-backend/internal/lifecycle"
)

type AssessmentStatus string

const (
	AssessmentStatusPending     AssessmentStatus = "pending"
	AssessmentStatusConfiguring AssessmentStatus = "configuring"
	AssessmentStatusRunning     AssessmentStatus = "running"
	AssessmentStatusCompleted   AssessmentStatus = "completed"
	AssessmentStatusFailed      AssessmentStatus = "failed"
	AssessmentStatusCancelled   AssessmentStatus = "cancelled"
)

// AssessmentLifecycle mirrors the job machine for the assessment entities.
var AssessmentLifecycle = lifecycle.New(map[AssessmentStatus][]AssessmentStatus{
	AssessmentStatusPending:     {AssessmentStatusConfiguring, AssessmentStatusRunning, AssessmentStatusCancelled},
	AssessmentStatusConfiguring: {AssessmentStatusPending, AssessmentStatusRunning, AssessmentStatusCancelled},
	AssessmentStatusRunning:     {AssessmentStatusCompleted, AssessmentStatusFailed, AssessmentStatusCancelled},
}, []AssessmentStatus{AssessmentStatusCompleted, AssessmentStatusFailed, AssessmentStatusCancelled})

// FairnessAssessment is a configured, job-backed fairness evaluation. Metric
// child rows exist only once Status is completed; OverallScore stays nil until
// then.
type FairnessAssessment struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string           `gorm:"column:name;not null" json:"name"`
	ModelCardID    uuid.UUID        `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	Status         AssessmentStatus `gorm:"column:status;not null;index;check:status IN ('pending','configuring','running','completed','failed','cancelled')" json:"status"`
	JobID          *uuid.UUID       `gorm:"type:uuid;column:job_id;index" json:"job_id,omitempty"`
	OwnerUserID    uuid.UUID        `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	OrganizationID uuid.UUID        `gorm:"type:uuid;column:organization_id;index" json:"organization_id"`

	ProtectedAttributes datatypes.JSON `gorm:"column:protected_attributes;type:jsonb" json:"protected_attributes,omitempty"`
	MetricConfig        datatypes.JSON `gorm:"column:metric_config;type:jsonb" json:"metric_config,omitempty"`
	WizardState         datatypes.JSON `gorm:"column:wizard_state;type:jsonb" json:"wizard_state,omitempty"`

	OverallScore *float64 `gorm:"column:overall_score" json:"overall_score,omitempty"`
	ErrorMessage string   `gorm:"column:error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Metrics    []FairnessAssessmentMetric `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"metrics,omitempty"`
	Thresholds []FairnessThreshold        `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"thresholds,omitempty"`
}

func (FairnessAssessment) TableName() string { return "fairness_assessments" }

type FairnessAssessmentMetric struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID       uuid.UUID      `gorm:"type:uuid;column:assessment_id;not null;index" json:"assessment_id"`
	MetricName         string         `gorm:"column:metric_name;not null" json:"metric_name"`
	ProtectedAttribute string         `gorm:"column:protected_attribute;not null" json:"protected_attribute"`
	GroupValues        datatypes.JSON `gorm:"column:group_values;type:jsonb" json:"group_values,omitempty"`
	Value              float64        `gorm:"column:value;not null" json:"value"`
	Passed             bool           `gorm:"column:passed;not null;default:false" json:"passed"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (FairnessAssessmentMetric) TableName() string { return "fairness_assessment_metrics" }

type FairnessThreshold struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;index" json:"assessment_id"`
	MetricName   string    `gorm:"column:metric_name;not null" json:"metric_name"`
	LowerBound   float64   `gorm:"column:lower_bound" json:"lower_bound"`
	UpperBound   float64   `gorm:"column:upper_bound" json:"upper_bound"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (FairnessThreshold) TableName() string { return "fairness_thresholds" }

// DiagnosisAssessment aggregates drift and explainability findings for a
// model, executed the same way as a fairness assessment.
type DiagnosisAssessment struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string           `gorm:"column:name;not null" json:"name"`
	ModelCardID    uuid.UUID        `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	Status         AssessmentStatus `gorm:"column:status;not null;index;check:status IN ('pending','configuring','running','completed','failed','cancelled')" json:"status"`
	JobID          *uuid.UUID       `gorm:"type:uuid;column:job_id;index" json:"job_id,omitempty"`
	OwnerUserID    uuid.UUID        `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	OrganizationID uuid.UUID        `gorm:"type:uuid;column:organization_id;index" json:"organization_id"`

	Config datatypes.JSON `gorm:"column:config;type:jsonb" json:"config,omitempty"`

	OverallHealthScore *float64 `gorm:"column:overall_health_score" json:"overall_health_score,omitempty"`
	DriftDetected      bool     `gorm:"column:drift_detected;not null;default:false" json:"drift_detected"`
	ErrorMessage       string   `gorm:"column:error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Metrics        []DiagnosisMetric      `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"metrics,omitempty"`
	Drift          []DriftDetection       `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"drift,omitempty"`
	Explainability []ExplainabilityResult `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"explainability,omitempty"`
}

func (DiagnosisAssessment) TableName() string { return "diagnosis_assessments" }

type DiagnosisMetric struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;index" json:"assessment_id"`
	MetricName   string    `gorm:"column:metric_name;not null" json:"metric_name"`
	Value        float64   `gorm:"column:value;not null" json:"value"`
	Unit         string    `gorm:"column:unit" json:"unit,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (DiagnosisMetric) TableName() string { return "diagnosis_metrics" }

type DriftDetection struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID  uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;index" json:"assessment_id"`
	FeatureName   string    `gorm:"column:feature_name;not null" json:"feature_name"`
	DriftScore    float64   `gorm:"column:drift_score;not null" json:"drift_score"`
	Threshold     float64   `gorm:"column:threshold;not null" json:"threshold"`
	Detected      bool      `gorm:"column:detected;not null;default:false" json:"detected"`
	TestName      string    `gorm:"column:test_name" json:"test_name,omitempty"`
	ObservedAt    time.Time `gorm:"column:observed_at;not null" json:"observed_at"`
	CreatedAt     time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (DriftDetection) TableName() string { return "drift_detections" }

type ExplainabilityResult struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID      `gorm:"type:uuid;column:assessment_id;not null;index" json:"assessment_id"`
	Method       string         `gorm:"column:method;not null" json:"method"`
	FeatureName  string         `gorm:"column:feature_name;not null" json:"feature_name"`
	Importance   float64        `gorm:"column:importance;not null" json:"importance"`
	Detail       datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (ExplainabilityResult) TableName() string { return "explainability_results" }
