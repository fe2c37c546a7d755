package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

// AuditLogRepo is append-only; there is deliberately no update or delete.
type AuditLogRepo interface {
	Append(dbc dbctx.Context, entry *domain.ModelAuditLog) error
	ListByModelCard(dbc dbctx.Context, modelCardID uuid.UUID, skip, limit int) ([]*domain.ModelAuditLog, int64, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *auditLogRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *auditLogRepo) Append(dbc dbctx.Context, entry *domain.ModelAuditLog) error {
	if entry == nil {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Context()).Create(entry).Error
}

func (r *auditLogRepo) ListByModelCard(dbc dbctx.Context, modelCardID uuid.UUID, skip, limit int) ([]*domain.ModelAuditLog, int64, error) {
	q := r.handle(dbc).WithContext(dbc.Context()).
		Model(&domain.ModelAuditLog{}).
		Where("model_card_id = ?", modelCardID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*domain.ModelAuditLog
	if err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
