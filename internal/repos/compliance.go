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

type ComplianceRepo interface {
	CreateFramework(dbc dbctx.Context, f *domain.ComplianceFramework) error
	GetFramework(dbc dbctx.Context, id uuid.UUID) (*domain.ComplianceFramework, error)
	ListFrameworks(dbc dbctx.Context, skip, limit int) ([]*domain.ComplianceFramework, int64, error)
	UpdateFramework(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteFramework(dbc dbctx.Context, id uuid.UUID) error

	CreateModelCompliance(dbc dbctx.Context, mc *domain.ModelCompliance) error
	GetModelCompliance(dbc dbctx.Context, id uuid.UUID) (*domain.ModelCompliance, error)
	ListModelCompliance(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.ModelCompliance, error)
	UpdateModelCompliance(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type complianceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComplianceRepo(db *gorm.DB, baseLog *logger.Logger) ComplianceRepo {
	return &complianceRepo{db: db, log: baseLog.With("repo", "ComplianceRepo")}
}

func (r *complianceRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *complianceRepo) CreateFramework(dbc dbctx.Context, f *domain.ComplianceFramework) error {
	if f == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(f).Error
}

func (r *complianceRepo) GetFramework(dbc dbctx.Context, id uuid.UUID) (*domain.ComplianceFramework, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var f domain.ComplianceFramework
	err := r.handle(dbc).WithContext(dbc.Context()).First(&f, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *complianceRepo) ListFrameworks(dbc dbctx.Context, skip, limit int) ([]*domain.ComplianceFramework, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).Model(&domain.ComplianceFramework{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.ComplianceFramework
	if err := q.Order("name ASC, version DESC").Offset(skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *complianceRepo) UpdateFramework(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.ComplianceFramework{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *complianceRepo) DeleteFramework(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Delete(&domain.ComplianceFramework{}, "id = ?", id).Error
}

func (r *complianceRepo) CreateModelCompliance(dbc dbctx.Context, mc *domain.ModelCompliance) error {
	if mc == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(mc).Error
}

func (r *complianceRepo) GetModelCompliance(dbc dbctx.Context, id uuid.UUID) (*domain.ModelCompliance, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var mc domain.ModelCompliance
	err := r.handle(dbc).WithContext(dbc.Context()).First(&mc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func (r *complianceRepo) ListModelCompliance(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.ModelCompliance, error) {
	var out []*domain.ModelCompliance
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("model_card_id = ?", modelCardID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *complianceRepo) UpdateModelCompliance(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.ModelCompliance{}).
		Where("id = ?", id).
		Updates(updates).Error
}
