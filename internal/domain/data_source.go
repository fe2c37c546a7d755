package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DataSource is a registered external dataset location. Connector plumbing
// (S3/Azure/SharePoint clients) lives outside this service; only the
// registration and its derived schema/validation records are persisted here.
type DataSource struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"column:name;not null;index" json:"name"`
	SourceType     string    `gorm:"column:source_type;not null;check:source_type IN ('s3','azure_blob','sharepoint','api','upload')" json:"source_type"`
	Status         string    `gorm:"column:status;not null;default:'registered';check:status IN ('registered','validated','error')" json:"status"`
	OwnerUserID    uuid.UUID `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;column:organization_id;index" json:"organization_id"`

	ConnectionConfig datatypes.JSON `gorm:"column:connection_config;type:jsonb" json:"connection_config,omitempty"`
	Description      string         `gorm:"column:description" json:"description,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`

	SchemaMappings      []SchemaMapping            `gorm:"foreignKey:DataSourceID;constraint:OnDelete:CASCADE" json:"schema_mappings,omitempty"`
	Validations         []DataValidation           `gorm:"foreignKey:DataSourceID;constraint:OnDelete:CASCADE" json:"validations,omitempty"`
	ProtectedAttributes []ProtectedAttributeConfig `gorm:"foreignKey:DataSourceID;constraint:OnDelete:CASCADE" json:"protected_attributes,omitempty"`
}

func (DataSource) TableName() string { return "data_sources" }

type SchemaMapping struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DataSourceID uuid.UUID `gorm:"type:uuid;column:data_source_id;not null;index" json:"data_source_id"`
	SourceColumn string    `gorm:"column:source_column;not null" json:"source_column"`
	TargetField  string    `gorm:"column:target_field;not null" json:"target_field"`
	DataType     string    `gorm:"column:data_type" json:"data_type,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (SchemaMapping) TableName() string { return "schema_mappings" }

type DataValidation struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DataSourceID uuid.UUID      `gorm:"type:uuid;column:data_source_id;not null;index" json:"data_source_id"`
	RuleName     string         `gorm:"column:rule_name;not null" json:"rule_name"`
	Passed       bool           `gorm:"column:passed;not null;default:false" json:"passed"`
	Detail       datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	ValidatedAt  time.Time      `gorm:"column:validated_at;not null" json:"validated_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (DataValidation) TableName() string { return "data_validations" }

type ProtectedAttributeConfig struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DataSourceID   uuid.UUID      `gorm:"type:uuid;column:data_source_id;not null;index" json:"data_source_id"`
	AttributeName  string         `gorm:"column:attribute_name;not null" json:"attribute_name"`
	PrivilegedVals datatypes.JSON `gorm:"column:privileged_values;type:jsonb" json:"privileged_values,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ProtectedAttributeConfig) TableName() string { return "protected_attribute_configs" }
