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

type ModelCardFilter struct {
	OwnerUserID    uuid.UUID
	OrganizationID uuid.UUID
	Status         string
	RiskLevel      string
	Skip           int
	Limit          int
}

type ModelCardRepo interface {
	Create(dbc dbctx.Context, card *domain.ModelCard) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ModelCard, error)
	List(dbc dbctx.Context, filter ModelCardFilter) ([]*domain.ModelCard, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error

	CreateVersion(dbc dbctx.Context, version *domain.ModelVersion) error
	GetVersion(dbc dbctx.Context, id uuid.UUID) (*domain.ModelVersion, error)
	ListVersions(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.ModelVersion, error)
	// UnsetCurrentVersions clears is_current on every version of the card;
	// callers set the new current row in the same transaction.
	UnsetCurrentVersions(dbc dbctx.Context, modelCardID uuid.UUID) error
	MarkVersionCurrent(dbc dbctx.Context, versionID uuid.UUID) error

	AddFairnessMetric(dbc dbctx.Context, metric *domain.FairnessMetric) error
	ListFairnessMetrics(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.FairnessMetric, error)
	AddPerformanceMetric(dbc dbctx.Context, metric *domain.PerformanceMetric) error
	ListPerformanceMetrics(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.PerformanceMetric, error)
	AddImpactAssessment(dbc dbctx.Context, ia *domain.ImpactAssessment) error
	ListImpactAssessments(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.ImpactAssessment, error)
}

type modelCardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelCardRepo(db *gorm.DB, baseLog *logger.Logger) ModelCardRepo {
	return &modelCardRepo{db: db, log: baseLog.With("repo", "ModelCardRepo")}
}

func (r *modelCardRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *modelCardRepo) Create(dbc dbctx.Context, card *domain.ModelCard) error {
	if card == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(card).Error
}

func (r *modelCardRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ModelCard, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var card domain.ModelCard
	err := r.handle(dbc).WithContext(dbc.Context()).First(&card, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *modelCardRepo) List(dbc dbctx.Context, filter ModelCardFilter) ([]*domain.ModelCard, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).Model(&domain.ModelCard{})
	if filter.OwnerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.OrganizationID != uuid.Nil {
		q = q.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RiskLevel != "" {
		q = q.Where("risk_level = ?", filter.RiskLevel)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.ModelCard
	if err := q.Order("created_at DESC").Offset(filter.Skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *modelCardRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.ModelCard{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *modelCardRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Select("Versions", "FairnessMetrics", "PerformanceMetrics", "Compliance", "ImpactAssessments").
		Delete(&domain.ModelCard{ID: id}).Error
}

func (r *modelCardRepo) CreateVersion(dbc dbctx.Context, version *domain.ModelVersion) error {
	if version == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(version).Error
}

func (r *modelCardRepo) GetVersion(dbc dbctx.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var v domain.ModelVersion
	err := r.handle(dbc).WithContext(dbc.Context()).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *modelCardRepo) ListVersions(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.ModelVersion, error) {
	var out []*domain.ModelVersion
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("model_card_id = ?", modelCardID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *modelCardRepo) UnsetCurrentVersions(dbc dbctx.Context, modelCardID uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.ModelVersion{}).
		Where("model_card_id = ? AND is_current", modelCardID).
		Updates(map[string]interface{}{"is_current": false, "updated_at": time.Now().UTC()}).Error
}

func (r *modelCardRepo) MarkVersionCurrent(dbc dbctx.Context, versionID uuid.UUID) error {
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.ModelVersion{}).
		Where("id = ?", versionID).
		Updates(map[string]interface{}{"is_current": true, "updated_at": time.Now().UTC()}).Error
}

func (r *modelCardRepo) AddFairnessMetric(dbc dbctx.Context, metric *domain.FairnessMetric) error {
	return r.handle(dbc).WithContext(dbc.Context()).Create(metric).Error
}

func (r *modelCardRepo) ListFairnessMetrics(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.FairnessMetric, error) {
	var out []*domain.FairnessMetric
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("model_card_id = ?", modelCardID).
		Order("measured_at DESC").
		Find(&out).Error
	return out, err
}

func (r *modelCardRepo) AddPerformanceMetric(dbc dbctx.Context, metric *domain.PerformanceMetric) error {
	return r.handle(dbc).WithContext(dbc.Context()).Create(metric).Error
}

func (r *modelCardRepo) ListPerformanceMetrics(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.PerformanceMetric, error) {
	var out []*domain.PerformanceMetric
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("model_card_id = ?", modelCardID).
		Order("measured_at DESC").
		Find(&out).Error
	return out, err
}

func (r *modelCardRepo) AddImpactAssessment(dbc dbctx.Context, ia *domain.ImpactAssessment) error {
	return r.handle(dbc).WithContext(dbc.Context()).Create(ia).Error
}

func (r *modelCardRepo) ListImpactAssessments(dbc dbctx.Context, modelCardID uuid.UUID) ([]*domain.ImpactAssessment, error) {
	var out []*domain.ImpactAssessment
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("model_card_id = ?", modelCardID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
