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

type AssessmentFilter struct {
	ModelCardID    uuid.UUID
	OwnerUserID    uuid.UUID
	OrganizationID uuid.UUID
	Status         domain.AssessmentStatus
	Skip           int
	Limit          int
}

type FairnessAssessmentRepo interface {
	Create(dbc dbctx.Context, a *domain.FairnessAssessment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.FairnessAssessment, error)
	List(dbc dbctx.Context, filter AssessmentFilter) ([]*domain.FairnessAssessment, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AddMetrics(dbc dbctx.Context, metrics []*domain.FairnessAssessmentMetric) error
	AddThresholds(dbc dbctx.Context, thresholds []*domain.FairnessThreshold) error
	ListMetrics(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.FairnessAssessmentMetric, error)
	ListThresholds(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.FairnessThreshold, error)
}

type fairnessAssessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFairnessAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) FairnessAssessmentRepo {
	return &fairnessAssessmentRepo{db: db, log: baseLog.With("repo", "FairnessAssessmentRepo")}
}

func (r *fairnessAssessmentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *fairnessAssessmentRepo) Create(dbc dbctx.Context, a *domain.FairnessAssessment) error {
	if a == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(a).Error
}

func (r *fairnessAssessmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.FairnessAssessment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var a domain.FairnessAssessment
	err := r.handle(dbc).WithContext(dbc.Context()).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *fairnessAssessmentRepo) List(dbc dbctx.Context, filter AssessmentFilter) ([]*domain.FairnessAssessment, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).Model(&domain.FairnessAssessment{})
	q = applyAssessmentFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.FairnessAssessment
	if err := q.Order("created_at DESC").Offset(filter.Skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *fairnessAssessmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.FairnessAssessment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *fairnessAssessmentRepo) AddMetrics(dbc dbctx.Context, metrics []*domain.FairnessAssessmentMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(&metrics).Error
}

func (r *fairnessAssessmentRepo) AddThresholds(dbc dbctx.Context, thresholds []*domain.FairnessThreshold) error {
	if len(thresholds) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(&thresholds).Error
}

func (r *fairnessAssessmentRepo) ListMetrics(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.FairnessAssessmentMetric, error) {
	var out []*domain.FairnessAssessmentMetric
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("assessment_id = ?", assessmentID).
		Order("metric_name ASC").
		Find(&out).Error
	return out, err
}

func (r *fairnessAssessmentRepo) ListThresholds(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.FairnessThreshold, error) {
	var out []*domain.FairnessThreshold
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("assessment_id = ?", assessmentID).
		Order("metric_name ASC").
		Find(&out).Error
	return out, err
}

func applyAssessmentFilter(q *gorm.DB, filter AssessmentFilter) *gorm.DB {
	if filter.ModelCardID != uuid.Nil {
		q = q.Where("model_card_id = ?", filter.ModelCardID)
	}
	if filter.OwnerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.OrganizationID != uuid.Nil {
		q = q.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

type DiagnosisAssessmentRepo interface {
	Create(dbc dbctx.Context, a *domain.DiagnosisAssessment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DiagnosisAssessment, error)
	List(dbc dbctx.Context, filter AssessmentFilter) ([]*domain.DiagnosisAssessment, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AddMetrics(dbc dbctx.Context, metrics []*domain.DiagnosisMetric) error
	AddDrift(dbc dbctx.Context, drift []*domain.DriftDetection) error
	AddExplainability(dbc dbctx.Context, results []*domain.ExplainabilityResult) error
	ListMetrics(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.DiagnosisMetric, error)
	ListDrift(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.DriftDetection, error)
	ListExplainability(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.ExplainabilityResult, error)
}

type diagnosisAssessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiagnosisAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) DiagnosisAssessmentRepo {
	return &diagnosisAssessmentRepo{db: db, log: baseLog.With("repo", "DiagnosisAssessmentRepo")}
}

func (r *diagnosisAssessmentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *diagnosisAssessmentRepo) Create(dbc dbctx.Context, a *domain.DiagnosisAssessment) error {
	if a == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(a).Error
}

func (r *diagnosisAssessmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DiagnosisAssessment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var a domain.DiagnosisAssessment
	err := r.handle(dbc).WithContext(dbc.Context()).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *diagnosisAssessmentRepo) List(dbc dbctx.Context, filter AssessmentFilter) ([]*domain.DiagnosisAssessment, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).Model(&domain.DiagnosisAssessment{})
	q = applyAssessmentFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.DiagnosisAssessment
	if err := q.Order("created_at DESC").Offset(filter.Skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *diagnosisAssessmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.DiagnosisAssessment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *diagnosisAssessmentRepo) AddMetrics(dbc dbctx.Context, metrics []*domain.DiagnosisMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(&metrics).Error
}

func (r *diagnosisAssessmentRepo) AddDrift(dbc dbctx.Context, drift []*domain.DriftDetection) error {
	if len(drift) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(&drift).Error
}

func (r *diagnosisAssessmentRepo) AddExplainability(dbc dbctx.Context, results []*domain.ExplainabilityResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(&results).Error
}

func (r *diagnosisAssessmentRepo) ListMetrics(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.DiagnosisMetric, error) {
	var out []*domain.DiagnosisMetric
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("assessment_id = ?", assessmentID).
		Order("metric_name ASC").
		Find(&out).Error
	return out, err
}

func (r *diagnosisAssessmentRepo) ListDrift(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.DriftDetection, error) {
	var out []*domain.DriftDetection
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("assessment_id = ?", assessmentID).
		Order("feature_name ASC").
		Find(&out).Error
	return out, err
}

func (r *diagnosisAssessmentRepo) ListExplainability(dbc dbctx.Context, assessmentID uuid.UUID) ([]*domain.ExplainabilityResult, error) {
	var out []*domain.ExplainabilityResult
	err := r.handle(dbc).WithContext(dbc.Context()).
		Where("assessment_id = ?", assessmentID).
		Order("importance DESC").
		Find(&out).Error
	return out, err
}
