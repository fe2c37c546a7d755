package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ModelCard is the top-level governance record for a deployed model.
type ModelCard struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"column:name;not null;index" json:"name"`
	Description    string    `gorm:"column:description" json:"description,omitempty"`
	ModelType      string    `gorm:"column:model_type" json:"model_type,omitempty"`
	RiskLevel      string    `gorm:"column:risk_level;check:risk_level IN ('','low','medium','high','critical')" json:"risk_level,omitempty"`
	Status         string    `gorm:"column:status;not null;default:'draft';check:status IN ('draft','published','archived')" json:"status"`
	OwnerUserID    uuid.UUID `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;column:organization_id;index" json:"organization_id"`

	IntendedUse  string         `gorm:"column:intended_use" json:"intended_use,omitempty"`
	Limitations  string         `gorm:"column:limitations" json:"limitations,omitempty"`
	TrainingData datatypes.JSON `gorm:"column:training_data;type:jsonb" json:"training_data,omitempty"`
	Tags         datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`

	Versions           []ModelVersion      `gorm:"foreignKey:ModelCardID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
	FairnessMetrics    []FairnessMetric    `gorm:"foreignKey:ModelCardID;constraint:OnDelete:CASCADE" json:"fairness_metrics,omitempty"`
	PerformanceMetrics []PerformanceMetric `gorm:"foreignKey:ModelCardID;constraint:OnDelete:CASCADE" json:"performance_metrics,omitempty"`
	Compliance         []ModelCompliance   `gorm:"foreignKey:ModelCardID;constraint:OnDelete:CASCADE" json:"compliance,omitempty"`
	ImpactAssessments  []ImpactAssessment  `gorm:"foreignKey:ModelCardID;constraint:OnDelete:CASCADE" json:"impact_assessments,omitempty"`
}

func (ModelCard) TableName() string { return "model_cards" }

// ModelVersion carries the "at most one current version per model card"
// invariant; writes must unset prior current rows in the same transaction.
type ModelVersion struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModelCardID uuid.UUID      `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	Version     string         `gorm:"column:version;not null" json:"version"`
	IsCurrent   bool           `gorm:"column:is_current;not null;default:false;index" json:"is_current"`
	ArtifactURI string         `gorm:"column:artifact_uri" json:"artifact_uri,omitempty"`
	Notes       string         `gorm:"column:notes" json:"notes,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ModelVersion) TableName() string { return "model_versions" }

type FairnessMetric struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ModelCardID        uuid.UUID `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	MetricName         string    `gorm:"column:metric_name;not null" json:"metric_name"`
	ProtectedAttribute string    `gorm:"column:protected_attribute;not null" json:"protected_attribute"`
	Value              float64   `gorm:"column:value;not null" json:"value"`
	Threshold          float64   `gorm:"column:threshold" json:"threshold,omitempty"`
	Passed             bool      `gorm:"column:passed;not null;default:false" json:"passed"`
	MeasuredAt         time.Time `gorm:"column:measured_at;not null" json:"measured_at"`
	CreatedAt          time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (FairnessMetric) TableName() string { return "fairness_metrics" }

type PerformanceMetric struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ModelCardID uuid.UUID `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	MetricName  string    `gorm:"column:metric_name;not null" json:"metric_name"`
	Value       float64   `gorm:"column:value;not null" json:"value"`
	Dataset     string    `gorm:"column:dataset" json:"dataset,omitempty"`
	MeasuredAt  time.Time `gorm:"column:measured_at;not null" json:"measured_at"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (PerformanceMetric) TableName() string { return "performance_metrics" }

type ImpactAssessment struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModelCardID  uuid.UUID      `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	Category     string         `gorm:"column:category;not null" json:"category"`
	Severity     string         `gorm:"column:severity;check:severity IN ('','low','medium','high')" json:"severity,omitempty"`
	Description  string         `gorm:"column:description" json:"description,omitempty"`
	Mitigations  datatypes.JSON `gorm:"column:mitigations;type:jsonb" json:"mitigations,omitempty"`
	AssessedByID uuid.UUID      `gorm:"type:uuid;column:assessed_by_id" json:"assessed_by_id,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ImpactAssessment) TableName() string { return "impact_assessments" }

// ModelAuditLog is append-only: every mutating model-card operation records
// one entry inside the mutating transaction.
type ModelAuditLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModelCardID   uuid.UUID      `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	Action        string         `gorm:"column:action;not null" json:"action"`
	ActorUserID   uuid.UUID      `gorm:"type:uuid;column:actor_user_id" json:"actor_user_id"`
	PreviousValue datatypes.JSON `gorm:"column:previous_value;type:jsonb" json:"previous_value,omitempty"`
	NewValue      datatypes.JSON `gorm:"column:new_value;type:jsonb" json:"new_value,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (ModelAuditLog) TableName() string { return "model_audit_logs" }
