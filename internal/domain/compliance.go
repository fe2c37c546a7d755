package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ComplianceFramework is a catalog entry (e.g. a regulation or internal
// policy) that model cards are evaluated against.
type ComplianceFramework struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"column:name;not null;uniqueIndex:idx_framework_name_version" json:"name"`
	Version     string         `gorm:"column:version;not null;uniqueIndex:idx_framework_name_version" json:"version"`
	Description string         `gorm:"column:description" json:"description,omitempty"`
	Requirements datatypes.JSON `gorm:"column:requirements;type:jsonb" json:"requirements,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ComplianceFramework) TableName() string { return "compliance_frameworks" }

type ModelCompliance struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModelCardID uuid.UUID      `gorm:"type:uuid;column:model_card_id;not null;index" json:"model_card_id"`
	FrameworkID uuid.UUID      `gorm:"type:uuid;column:framework_id;not null;index" json:"framework_id"`
	Status      string         `gorm:"column:status;not null;default:'pending';check:status IN ('pending','compliant','non_compliant','waived')" json:"status"`
	Evidence    datatypes.JSON `gorm:"column:evidence;type:jsonb" json:"evidence,omitempty"`
	ReviewedBy  uuid.UUID      `gorm:"type:uuid;column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time     `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ModelCompliance) TableName() string { return "model_compliance" }
