package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/ctxutil"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

type CreateFrameworkInput struct {
	Name         string
	Version      string
	Description  string
	Requirements map[string]any
}

type AttachComplianceInput struct {
	FrameworkID uuid.UUID
	Status      string
	Evidence    map[string]any
}

type ComplianceService interface {
	CreateFramework(dbc dbctx.Context, in CreateFrameworkInput) (*domain.ComplianceFramework, error)
	GetFramework(dbc dbctx.Context, id uuid.UUID) (*domain.ComplianceFramework, error)
	ListFrameworks(dbc dbctx.Context, skip, limit int) ([]*domain.ComplianceFramework, int64, error)
	UpdateFramework(dbc dbctx.Context, id uuid.UUID, updates map[string]any) (*domain.ComplianceFramework, error)
	DeleteFramework(dbc dbctx.Context, id uuid.UUID) error

	AttachToModelCard(dbc dbctx.Context, cardID uuid.UUID, in AttachComplianceInput) (*domain.ModelCompliance, error)
	ListForModelCard(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.ModelCompliance, error)
	Review(dbc dbctx.Context, complianceID uuid.UUID, status string, evidence map[string]any) (*domain.ModelCompliance, error)
}

type complianceService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.ComplianceRepo
	cards repos.ModelCardRepo
	audit repos.AuditLogRepo
}

func NewComplianceService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.ComplianceRepo,
	cards repos.ModelCardRepo,
	audit repos.AuditLogRepo,
) ComplianceService {
	return &complianceService{
		db:    db,
		log:   baseLog.With("service", "ComplianceService"),
		repo:  repo,
		cards: cards,
		audit: audit,
	}
}

func knownComplianceStatus(s string) bool {
	switch s {
	case "pending", "compliant", "non_compliant", "waived":
		return true
	default:
		return false
	}
}

func (s *complianceService) CreateFramework(dbc dbctx.Context, in CreateFrameworkInput) (*domain.ComplianceFramework, error) {
	if in.Name == "" || in.Version == "" {
		return nil, apierr.Validation("missing_framework_fields", "name and version are required")
	}
	now := time.Now().UTC()
	f := &domain.ComplianceFramework{
		ID:           uuid.New(),
		Name:         in.Name,
		Version:      in.Version,
		Description:  in.Description,
		Requirements: mustJSON(in.Requirements),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateFramework(dbc, f); err != nil {
		// name+version is unique; a second insert surfaces as a conflict.
		return nil, apierr.Conflict("framework_exists", "framework %s %s already exists", in.Name, in.Version)
	}
	return f, nil
}

func (s *complianceService) GetFramework(dbc dbctx.Context, id uuid.UUID) (*domain.ComplianceFramework, error) {
	f, err := s.repo.GetFramework(dbc, id)
	if err != nil {
		return nil, apierr.Internal("load_framework", err)
	}
	if f == nil {
		return nil, apierr.NotFound("framework_not_found", "compliance framework %s not found", id)
	}
	return f, nil
}

func (s *complianceService) ListFrameworks(dbc dbctx.Context, skip, limit int) ([]*domain.ComplianceFramework, int64, error) {
	out, total, err := s.repo.ListFrameworks(dbc, skip, limit)
	if err != nil {
		return nil, 0, apierr.Internal("list_frameworks", err)
	}
	return out, total, nil
}

func (s *complianceService) UpdateFramework(dbc dbctx.Context, id uuid.UUID, updates map[string]any) (*domain.ComplianceFramework, error) {
	if len(updates) == 0 {
		return nil, apierr.Validation("empty_update", "no fields to update")
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		switch k {
		case "description":
			fields[k] = v
		case "requirements":
			fields[k] = mustJSON(v)
		default:
			return nil, apierr.Validation("unknown_field", "field %q is not updatable", k)
		}
	}
	if _, err := s.GetFramework(dbc, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFramework(dbc, id, fields); err != nil {
		return nil, apierr.Internal("update_framework", err)
	}
	return s.GetFramework(dbc, id)
}

func (s *complianceService) DeleteFramework(dbc dbctx.Context, id uuid.UUID) error {
	if _, err := s.GetFramework(dbc, id); err != nil {
		return err
	}
	if err := s.repo.DeleteFramework(dbc, id); err != nil {
		return apierr.Internal("delete_framework", err)
	}
	return nil
}

func (s *complianceService) AttachToModelCard(dbc dbctx.Context, cardID uuid.UUID, in AttachComplianceInput) (*domain.ModelCompliance, error) {
	status := in.Status
	if status == "" {
		status = "pending"
	}
	if !knownComplianceStatus(status) {
		return nil, apierr.Validation("unknown_compliance_status", "unknown compliance status %q", status)
	}

	card, err := s.cards.GetByID(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("load_model_card", err)
	}
	if card == nil {
		return nil, apierr.NotFound("model_card_not_found", "model card %s not found", cardID)
	}
	if err := authorizeOwned(dbc.Ctx, card.OwnerUserID, card.OrganizationID, "model card"); err != nil {
		return nil, err
	}
	if _, err := s.GetFramework(dbc, in.FrameworkID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	mc := &domain.ModelCompliance{
		ID:          uuid.New(),
		ModelCardID: cardID,
		FrameworkID: in.FrameworkID,
		Status:      status,
		Evidence:    mustJSON(in.Evidence),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.inTx(dbc, func(inner dbctx.Context) error {
		if err := s.repo.CreateModelCompliance(inner, mc); err != nil {
			return apierr.Internal("attach_compliance", err)
		}
		return s.appendAudit(inner, cardID, "compliance.attached", mc)
	})
	if err != nil {
		return nil, err
	}
	return mc, nil
}

func (s *complianceService) ListForModelCard(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.ModelCompliance, error) {
	card, err := s.cards.GetByID(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("load_model_card", err)
	}
	if card == nil {
		return nil, apierr.NotFound("model_card_not_found", "model card %s not found", cardID)
	}
	if err := authorizeOwned(dbc.Ctx, card.OwnerUserID, card.OrganizationID, "model card"); err != nil {
		return nil, err
	}
	out, err := s.repo.ListModelCompliance(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("list_model_compliance", err)
	}
	return out, nil
}

func (s *complianceService) Review(dbc dbctx.Context, complianceID uuid.UUID, status string, evidence map[string]any) (*domain.ModelCompliance, error) {
	if !knownComplianceStatus(status) {
		return nil, apierr.Validation("unknown_compliance_status", "unknown compliance status %q", status)
	}
	mc, err := s.repo.GetModelCompliance(dbc, complianceID)
	if err != nil {
		return nil, apierr.Internal("load_model_compliance", err)
	}
	if mc == nil {
		return nil, apierr.NotFound("model_compliance_not_found", "model compliance %s not found", complianceID)
	}

	var reviewer uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		reviewer = rd.UserID
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"reviewed_by": reviewer,
		"reviewed_at": now,
	}
	if evidence != nil {
		updates["evidence"] = mustJSON(evidence)
	}
	err = s.inTx(dbc, func(inner dbctx.Context) error {
		if err := s.repo.UpdateModelCompliance(inner, complianceID, updates); err != nil {
			return apierr.Internal("review_compliance", err)
		}
		return s.appendAudit(inner, mc.ModelCardID, "compliance.reviewed", map[string]any{
			"compliance_id": complianceID,
			"status":        status,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetModelCompliance(dbc, complianceID)
}

func (s *complianceService) appendAudit(dbc dbctx.Context, cardID uuid.UUID, action string, next any) error {
	var actor uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		actor = rd.UserID
	}
	entry := &domain.ModelAuditLog{
		ID:          uuid.New(),
		ModelCardID: cardID,
		Action:      action,
		ActorUserID: actor,
		NewValue:    mustJSON(next),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.audit.Append(dbc, entry); err != nil {
		return apierr.Internal("append_audit_log", err)
	}
	return nil
}

func (s *complianceService) inTx(dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	handle := dbc.Tx
	if handle == nil {
		handle = s.db
	}
	return handle.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	})
}
