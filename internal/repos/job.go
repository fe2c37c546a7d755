package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

type JobFilter struct {
	Status         domain.JobStatus
	JobType        domain.JobType
	OwnerUserID    uuid.UUID
	OrganizationID uuid.UUID
	Skip           int
	Limit          int
}

type JobRepo interface {
	Create(dbc dbctx.Context, job *domain.Job) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error)
	// GetByIDForUpdate takes a row lock; callers must be inside a transaction.
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error)
	List(dbc dbctx.Context, filter JobFilter) ([]*domain.Job, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRepo) Create(dbc dbctx.Context, job *domain.Job) error {
	if job == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(job).Error
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job domain.Job
	err := r.handle(dbc).WithContext(dbc.Context()).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	h := r.handle(dbc).WithContext(dbc.Context())
	// SQLite has no row locks; its single-writer transaction covers the same
	// guarantee there.
	if h.Dialector.Name() != "sqlite" {
		h = h.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var job domain.Job
	err := h.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) List(dbc dbctx.Context, filter JobFilter) ([]*domain.Job, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).Model(&domain.Job{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.JobType != "" {
		q = q.Where("job_type = ?", filter.JobType)
	}
	if filter.OwnerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.OrganizationID != uuid.Nil {
		q = q.Where("organization_id = ?", filter.OrganizationID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.Job
	if err := q.Order("created_at DESC").Offset(filter.Skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}
