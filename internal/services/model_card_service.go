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

type CreateModelCardInput struct {
	Name         string
	Description  string
	ModelType    string
	RiskLevel    string
	IntendedUse  string
	Limitations  string
	TrainingData map[string]any
	Tags         []string
}

type CreateModelVersionInput struct {
	Version     string
	ArtifactURI string
	Notes       string
	Metadata    map[string]any
	MakeCurrent bool
}

type AddFairnessMetricInput struct {
	MetricName         string
	ProtectedAttribute string
	Value              float64
	Threshold          float64
	Passed             bool
}

type AddPerformanceMetricInput struct {
	MetricName string
	Value      float64
	Dataset    string
}

type AddImpactAssessmentInput struct {
	Category    string
	Severity    string
	Description string
	Mitigations []string
}

type ModelCardService interface {
	Create(dbc dbctx.Context, in CreateModelCardInput) (*domain.ModelCard, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*domain.ModelCard, error)
	List(dbc dbctx.Context, filter repos.ModelCardFilter) ([]*domain.ModelCard, int64, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) (*domain.ModelCard, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error

	CreateVersion(dbc dbctx.Context, cardID uuid.UUID, in CreateModelVersionInput) (*domain.ModelVersion, error)
	ListVersions(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.ModelVersion, error)
	SetCurrentVersion(dbc dbctx.Context, cardID, versionID uuid.UUID) (*domain.ModelVersion, error)

	AddFairnessMetric(dbc dbctx.Context, cardID uuid.UUID, in AddFairnessMetricInput) (*domain.FairnessMetric, error)
	ListFairnessMetrics(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.FairnessMetric, error)
	AddPerformanceMetric(dbc dbctx.Context, cardID uuid.UUID, in AddPerformanceMetricInput) (*domain.PerformanceMetric, error)
	ListPerformanceMetrics(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.PerformanceMetric, error)
	AddImpactAssessment(dbc dbctx.Context, cardID uuid.UUID, in AddImpactAssessmentInput) (*domain.ImpactAssessment, error)
	ListImpactAssessments(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.ImpactAssessment, error)

	AuditLog(dbc dbctx.Context, cardID uuid.UUID, skip, limit int) ([]*domain.ModelAuditLog, int64, error)
}

type modelCardService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.ModelCardRepo
	audit repos.AuditLogRepo
}

func NewModelCardService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.ModelCardRepo,
	audit repos.AuditLogRepo,
) ModelCardService {
	return &modelCardService{
		db:    db,
		log:   baseLog.With("service", "ModelCardService"),
		repo:  repo,
		audit: audit,
	}
}

// Update-able card columns; anything else in an update payload is rejected.
var modelCardUpdatableFields = map[string]bool{
	"name":          true,
	"description":   true,
	"model_type":    true,
	"risk_level":    true,
	"status":        true,
	"intended_use":  true,
	"limitations":   true,
	"training_data": true,
	"tags":          true,
}

func (s *modelCardService) Create(dbc dbctx.Context, in CreateModelCardInput) (*domain.ModelCard, error) {
	if in.Name == "" {
		return nil, apierr.Validation("missing_name", "missing model card name")
	}
	var owner, org uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		owner = rd.UserID
		org = rd.OrganizationID
	}
	if owner == uuid.Nil {
		return nil, apierr.Validation("missing_owner", "missing owner_user_id")
	}

	now := time.Now().UTC()
	card := &domain.ModelCard{
		ID:             uuid.New(),
		Name:           in.Name,
		Description:    in.Description,
		ModelType:      in.ModelType,
		RiskLevel:      in.RiskLevel,
		Status:         "draft",
		OwnerUserID:    owner,
		OrganizationID: org,
		IntendedUse:    in.IntendedUse,
		Limitations:    in.Limitations,
		TrainingData:   mustJSON(in.TrainingData),
		Tags:           mustJSON(in.Tags),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		if err := s.repo.Create(inner, card); err != nil {
			return apierr.Internal("create_model_card", err)
		}
		return s.appendAudit(inner, card.ID, "model_card.created", nil, card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *modelCardService) Get(dbc dbctx.Context, id uuid.UUID) (*domain.ModelCard, error) {
	card, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal("load_model_card", err)
	}
	if card == nil {
		return nil, apierr.NotFound("model_card_not_found", "model card %s not found", id)
	}
	if err := authorizeOwned(dbc.Ctx, card.OwnerUserID, card.OrganizationID, "model card"); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *modelCardService) List(dbc dbctx.Context, filter repos.ModelCardFilter) ([]*domain.ModelCard, int64, error) {
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		if filter.OrganizationID == uuid.Nil && rd.OrganizationID != uuid.Nil {
			filter.OrganizationID = rd.OrganizationID
		} else if filter.OwnerUserID == uuid.Nil && rd.OrganizationID == uuid.Nil {
			filter.OwnerUserID = rd.UserID
		}
	}
	cards, total, err := s.repo.List(dbc, filter)
	if err != nil {
		return nil, 0, apierr.Internal("list_model_cards", err)
	}
	return cards, total, nil
}

func (s *modelCardService) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) (*domain.ModelCard, error) {
	if len(updates) == 0 {
		return nil, apierr.Validation("empty_update", "no fields to update")
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		if !modelCardUpdatableFields[k] {
			return nil, apierr.Validation("unknown_field", "field %q is not updatable", k)
		}
		switch k {
		case "training_data", "tags":
			fields[k] = mustJSON(v)
		default:
			fields[k] = v
		}
	}

	var out *domain.ModelCard
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		before, err := s.Get(inner, id)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateFields(inner, id, fields); err != nil {
			return apierr.Internal("update_model_card", err)
		}
		out, err = s.repo.GetByID(inner, id)
		if err != nil {
			return apierr.Internal("reload_model_card", err)
		}
		return s.appendAudit(inner, id, "model_card.updated", before, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *modelCardService) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return s.inTx(dbc, func(inner dbctx.Context) error {
		card, err := s.Get(inner, id)
		if err != nil {
			return err
		}
		// The audit trail outlives the card: entries are appended before the
		// cascading delete and never removed.
		if err := s.appendAudit(inner, id, "model_card.deleted", card, nil); err != nil {
			return err
		}
		if err := s.repo.Delete(inner, id); err != nil {
			return apierr.Internal("delete_model_card", err)
		}
		return nil
	})
}

func (s *modelCardService) CreateVersion(dbc dbctx.Context, cardID uuid.UUID, in CreateModelVersionInput) (*domain.ModelVersion, error) {
	if in.Version == "" {
		return nil, apierr.Validation("missing_version", "missing version string")
	}
	now := time.Now().UTC()
	v := &domain.ModelVersion{
		ID:          uuid.New(),
		ModelCardID: cardID,
		Version:     in.Version,
		IsCurrent:   in.MakeCurrent,
		ArtifactURI: in.ArtifactURI,
		Notes:       in.Notes,
		Metadata:    mustJSON(in.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		if _, err := s.Get(inner, cardID); err != nil {
			return err
		}
		if in.MakeCurrent {
			if err := s.repo.UnsetCurrentVersions(inner, cardID); err != nil {
				return apierr.Internal("unset_current_versions", err)
			}
		}
		if err := s.repo.CreateVersion(inner, v); err != nil {
			return apierr.Internal("create_model_version", err)
		}
		return s.appendAudit(inner, cardID, "model_version.created", nil, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *modelCardService) ListVersions(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.ModelVersion, error) {
	if _, err := s.Get(dbc, cardID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListVersions(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("list_model_versions", err)
	}
	return out, nil
}

func (s *modelCardService) SetCurrentVersion(dbc dbctx.Context, cardID, versionID uuid.UUID) (*domain.ModelVersion, error) {
	var out *domain.ModelVersion
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		if _, err := s.Get(inner, cardID); err != nil {
			return err
		}
		v, err := s.repo.GetVersion(inner, versionID)
		if err != nil {
			return apierr.Internal("load_model_version", err)
		}
		if v == nil || v.ModelCardID != cardID {
			return apierr.NotFound("model_version_not_found", "version %s not found on model card %s", versionID, cardID)
		}
		if err := s.repo.UnsetCurrentVersions(inner, cardID); err != nil {
			return apierr.Internal("unset_current_versions", err)
		}
		if err := s.repo.MarkVersionCurrent(inner, versionID); err != nil {
			return apierr.Internal("mark_version_current", err)
		}
		out, err = s.repo.GetVersion(inner, versionID)
		if err != nil {
			return apierr.Internal("reload_model_version", err)
		}
		return s.appendAudit(inner, cardID, "model_version.current_changed", v, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *modelCardService) AddFairnessMetric(dbc dbctx.Context, cardID uuid.UUID, in AddFairnessMetricInput) (*domain.FairnessMetric, error) {
	if in.MetricName == "" || in.ProtectedAttribute == "" {
		return nil, apierr.Validation("missing_metric_fields", "metric_name and protected_attribute are required")
	}
	now := time.Now().UTC()
	m := &domain.FairnessMetric{
		ID:                 uuid.New(),
		ModelCardID:        cardID,
		MetricName:         in.MetricName,
		ProtectedAttribute: in.ProtectedAttribute,
		Value:              in.Value,
		Threshold:          in.Threshold,
		Passed:             in.Passed,
		MeasuredAt:         now,
		CreatedAt:          now,
	}
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		if _, err := s.Get(inner, cardID); err != nil {
			return err
		}
		if err := s.repo.AddFairnessMetric(inner, m); err != nil {
			return apierr.Internal("add_fairness_metric", err)
		}
		return s.appendAudit(inner, cardID, "fairness_metric.added", nil, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *modelCardService) ListFairnessMetrics(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.FairnessMetric, error) {
	if _, err := s.Get(dbc, cardID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListFairnessMetrics(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("list_fairness_metrics", err)
	}
	return out, nil
}

func (s *modelCardService) AddPerformanceMetric(dbc dbctx.Context, cardID uuid.UUID, in AddPerformanceMetricInput) (*domain.PerformanceMetric, error) {
	if in.MetricName == "" {
		return nil, apierr.Validation("missing_metric_fields", "metric_name is required")
	}
	now := time.Now().UTC()
	m := &domain.PerformanceMetric{
		ID:          uuid.New(),
		ModelCardID: cardID,
		MetricName:  in.MetricName,
		Value:       in.Value,
		Dataset:     in.Dataset,
		MeasuredAt:  now,
		CreatedAt:   now,
	}
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		if _, err := s.Get(inner, cardID); err != nil {
			return err
		}
		if err := s.repo.AddPerformanceMetric(inner, m); err != nil {
			return apierr.Internal("add_performance_metric", err)
		}
		return s.appendAudit(inner, cardID, "performance_metric.added", nil, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *modelCardService) ListPerformanceMetrics(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.PerformanceMetric, error) {
	if _, err := s.Get(dbc, cardID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPerformanceMetrics(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("list_performance_metrics", err)
	}
	return out, nil
}

func (s *modelCardService) AddImpactAssessment(dbc dbctx.Context, cardID uuid.UUID, in AddImpactAssessmentInput) (*domain.ImpactAssessment, error) {
	if in.Category == "" {
		return nil, apierr.Validation("missing_category", "category is required")
	}
	var actor uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		actor = rd.UserID
	}
	now := time.Now().UTC()
	ia := &domain.ImpactAssessment{
		ID:           uuid.New(),
		ModelCardID:  cardID,
		Category:     in.Category,
		Severity:     in.Severity,
		Description:  in.Description,
		Mitigations:  mustJSON(in.Mitigations),
		AssessedByID: actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		if _, err := s.Get(inner, cardID); err != nil {
			return err
		}
		if err := s.repo.AddImpactAssessment(inner, ia); err != nil {
			return apierr.Internal("add_impact_assessment", err)
		}
		return s.appendAudit(inner, cardID, "impact_assessment.added", nil, ia)
	})
	if err != nil {
		return nil, err
	}
	return ia, nil
}

func (s *modelCardService) ListImpactAssessments(dbc dbctx.Context, cardID uuid.UUID) ([]*domain.ImpactAssessment, error) {
	if _, err := s.Get(dbc, cardID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListImpactAssessments(dbc, cardID)
	if err != nil {
		return nil, apierr.Internal("list_impact_assessments", err)
	}
	return out, nil
}

func (s *modelCardService) AuditLog(dbc dbctx.Context, cardID uuid.UUID, skip, limit int) ([]*domain.ModelAuditLog, int64, error) {
	if _, err := s.Get(dbc, cardID); err != nil {
		return nil, 0, err
	}
	entries, total, err := s.audit.ListByModelCard(dbc, cardID, skip, limit)
	if err != nil {
		return nil, 0, apierr.Internal("list_audit_log", err)
	}
	return entries, total, nil
}

func (s *modelCardService) appendAudit(dbc dbctx.Context, cardID uuid.UUID, action string, previous, next any) error {
	var actor uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		actor = rd.UserID
	}
	entry := &domain.ModelAuditLog{
		ID:          uuid.New(),
		ModelCardID: cardID,
		Action:      action,
		ActorUserID: actor,
		CreatedAt:   time.Now().UTC(),
	}
	if previous != nil {
		entry.PreviousValue = mustJSON(previous)
	}
	if next != nil {
		entry.NewValue = mustJSON(next)
	}
	if err := s.audit.Append(dbc, entry); err != nil {
		return apierr.Internal("append_audit_log", err)
	}
	return nil
}

func (s *modelCardService) inTx(dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	handle := dbc.Tx
	if handle == nil {
		handle = s.db
	}
	return handle.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	})
}
