package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

type DataSourceFilter struct {
	OwnerUserID    uuid.UUID
	OrganizationID uuid.UUID
	SourceType     string
	Skip           int
	Limit          int
}

type DataSourceRepo interface {
	Create(dbc dbctx.Context, ds *domain.DataSource) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DataSource, error)
	List(dbc dbctx.Context, filter DataSourceFilter) ([]*domain.DataSource, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error

	AddSchemaMapping(dbc dbctx.Context, m *domain.SchemaMapping) error
	ListSchemaMappings(dbc dbctx.Context, dataSourceID uuid.UUID) ([]*domain.SchemaMapping, error)
	AddValidation(dbc dbctx.Context, v *domain.DataValidation) error
	ListValidations(dbc dbctx.Context, dataSourceID uuid.UUID) ([]*domain.DataValidation, error)
	AddProtectedAttribute(dbc dbctx.Context, p *domain.ProtectedAttributeConfig) error
	ListProtectedAttributes(dbc dbctx.Context, dataSourceID uuid.UUID) ([]*domain.ProtectedAttributeConfig, error)
}

type dataSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataSourceRepo(db *gorm.DB, baseLog *logger.Logger) DataSourceRepo {
	return &dataSourceRepo{db: db, log: baseLog.With("repo", "DataSourceRepo")}
}

func (r *dataSourceRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *dataSourceRepo) Create(dbc dbctx.Context, ds *domain.DataSource) error {
	if ds == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(ds).Error
}

func (r *dataSourceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DataSource, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var ds domain.DataSource
	err := r.handle(dbc).WithContext(dbc.Context()).First(&ds, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *dataSourceRepo) List(dbc dbctx.Context, filter DataSourceFilter) ([]*domain.DataSource, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).Model(&domain.DataSource{})
	if filter.OwnerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.OrganizationID != uuid.Nil {
		q = q.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.SourceType != "" {
		q = q.Where("source_type = ?", filter.SourceType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.DataSource
	if err := q.Order("created_at DESC").Offset(filter.Skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *dataSourceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.DataSource{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *dataSourceRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Select("SchemaMappings", "Validations", "ProtectedAttributes").
		Delete(&domain.DataSource{ID: id}).Error
}

func (r *dataSourceRepo) AddSchemaMapping(dbc dbctx.Context, m *domain.SchemaMapping) error {
	return r.handle(dbc).WithContext(dbc.Context()).Create(m).Error
}

func (r *dataSourceRepo) ListSchemaMappings(dbc dbctx.Context, dataSourceID uuid.UUID) ([]*domain.SchemaMapping, error) {
	var out []*domain.SchemaMapping
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("data_source_id = ?", dataSourceID).
		Order("source_column ASC").
		Find(&out).Error
	return out, err
}

func (r *dataSourceRepo) AddValidation(dbc dbctx.Context, v *domain.DataValidation) error {
	return r.handle(dbc).WithContext(dbc.Context()).Create(v).Error
}

func (r *dataSourceRepo) ListValidations(dbc dbctx.Context, dataSourceID uuid.UUID) ([]*domain.DataValidation, error) {
	var out []*domain.DataValidation
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("data_source_id = ?", dataSourceID).
		Order("validated_at DESC").
		Find(&out).Error
	return out, err
}

func (r *dataSourceRepo) AddProtectedAttribute(dbc dbctx.Context, p *domain.ProtectedAttributeConfig) error {
	return r.handle(dbc).WithContext(dbc.Context()).Create(p).Error
}

func (r *dataSourceRepo) ListProtectedAttributes(dbc dbctx.Context, dataSourceID uuid.UUID) ([]*domain.ProtectedAttributeConfig, error) {
	var out []*domain.ProtectedAttributeConfig
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("data_source_id = ?", dataSourceID).
		Order("attribute_name ASC").
		Find(&out).Error
	return out, err
}
