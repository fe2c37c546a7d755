package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/ctxutil"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
	"github.com/clearlens/governance-backend/internal/wizard"
)

type CreateFairnessAssessmentInput struct {
	Name        string
	ModelCardID uuid.UUID
	DataRef     string
}

type FairnessResults struct {
	Assessment *domain.FairnessAssessment          `json:"assessment"`
	Metrics    []*domain.FairnessAssessmentMetric  `json:"metrics"`
	Thresholds []*domain.FairnessThreshold         `json:"thresholds"`
}

type FairnessService interface {
	Create(dbc dbctx.Context, in CreateFairnessAssessmentInput) (*domain.FairnessAssessment, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*domain.FairnessAssessment, error)
	List(dbc dbctx.Context, filter repos.AssessmentFilter) ([]*domain.FairnessAssessment, int64, error)

	AdvanceWizard(dbc dbctx.Context, id uuid.UUID, in wizard.Input) (wizard.State, *domain.FairnessAssessment, error)
	RewindWizard(dbc dbctx.Context, id uuid.UUID) (wizard.State, *domain.FairnessAssessment, error)

	Execute(dbc dbctx.Context, id uuid.UUID) (*domain.FairnessAssessment, *domain.Job, error)
	CompleteFromResults(dbc dbctx.Context, id uuid.UUID, results []MetricResult) (*domain.FairnessAssessment, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errorMessage string) error
	Results(dbc dbctx.Context, id uuid.UUID) (*FairnessResults, error)
}

type fairnessService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.FairnessAssessmentRepo
	cards  repos.ModelCardRepo
	jobs   JobService
}

func NewFairnessService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.FairnessAssessmentRepo,
	cards repos.ModelCardRepo,
	jobs JobService,
) FairnessService {
	return &fairnessService{
		db:    db,
		log:   baseLog.With("service", "FairnessService"),
		repo:  repo,
		cards: cards,
		jobs:  jobs,
	}
}

func (s *fairnessService) Create(dbc dbctx.Context, in CreateFairnessAssessmentInput) (*domain.FairnessAssessment, error) {
	if in.Name == "" {
		return nil, apierr.Validation("missing_name", "missing assessment name")
	}
	card, err := s.cards.GetByID(dbc, in.ModelCardID)
	if err != nil {
		return nil, apierr.Internal("load_model_card", err)
	}
	if card == nil {
		return nil, apierr.NotFound("model_card_not_found", "model card %s not found", in.ModelCardID)
	}

	var owner, org uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		owner = rd.UserID
		org = rd.OrganizationID
	}
	if owner == uuid.Nil {
		owner = card.OwnerUserID
		org = card.OrganizationID
	}

	state, err := wizard.Marshal(wizard.Start())
	if err != nil {
		return nil, apierr.Internal("init_wizard", err)
	}
	now := time.Now().UTC()
	a := &domain.FairnessAssessment{
		ID:             uuid.New(),
		Name:           in.Name,
		ModelCardID:    in.ModelCardID,
		Status:         domain.AssessmentStatusPending,
		OwnerUserID:    owner,
		OrganizationID: org,
		WizardState:    state,
		MetricConfig:   mustJSON(map[string]any{"data_ref": in.DataRef}),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(dbc, a); err != nil {
		return nil, apierr.Internal("create_fairness_assessment", err)
	}
	return a, nil
}

func (s *fairnessService) Get(dbc dbctx.Context, id uuid.UUID) (*domain.FairnessAssessment, error) {
	a, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal("load_fairness_assessment", err)
	}
	if a == nil {
		return nil, apierr.NotFound("fairness_assessment_not_found", "fairness assessment %s not found", id)
	}
	if err := authorizeOwned(dbc.Ctx, a.OwnerUserID, a.OrganizationID, "fairness assessment"); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *fairnessService) List(dbc dbctx.Context, filter repos.AssessmentFilter) ([]*domain.FairnessAssessment, int64, error) {
	scopeAssessmentFilter(dbc.Ctx, &filter)
	out, total, err := s.repo.List(dbc, filter)
	if err != nil {
		return nil, 0, apierr.Internal("list_fairness_assessments", err)
	}
	return out, total, nil
}

func (s *fairnessService) AdvanceWizard(dbc dbctx.Context, id uuid.UUID, in wizard.Input) (wizard.State, *domain.FairnessAssessment, error) {
	return s.stepWizard(dbc, id, func(state wizard.State) (wizard.State, error) {
		return wizard.Advance(state, in)
	})
}

func (s *fairnessService) RewindWizard(dbc dbctx.Context, id uuid.UUID) (wizard.State, *domain.FairnessAssessment, error) {
	return s.stepWizard(dbc, id, wizard.Back)
}

func (s *fairnessService) stepWizard(dbc dbctx.Context, id uuid.UUID, move func(wizard.State) (wizard.State, error)) (wizard.State, *domain.FairnessAssessment, error) {
	var (
		next wizard.State
		out  *domain.FairnessAssessment
	)
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		a, err := s.Get(inner, id)
		if err != nil {
			return err
		}
		if a.Status != domain.AssessmentStatusPending && a.Status != domain.AssessmentStatusConfiguring {
			return apierr.Validation("assessment_not_editable", "assessment %s is %s, wizard is locked", a.ID, a.Status)
		}
		state, err := wizard.Unmarshal(a.WizardState)
		if err != nil {
			return apierr.Internal("decode_wizard_state", err)
		}
		next, err = move(state)
		if err != nil {
			return err
		}
		raw, err := wizard.Marshal(next)
		if err != nil {
			return apierr.Internal("encode_wizard_state", err)
		}

		updates := map[string]interface{}{"wizard_state": raw}
		switch done := next.(type) {
		case wizard.Completed:
			// Frozen config becomes the assessment's configuration and the
			// wizard hands the assessment back as ready to execute.
			cfg := done.Config
			updates["protected_attributes"] = mustJSON(cfg.ProtectedAttributes)
			updates["metric_config"] = mergeParameters(a.MetricConfig, map[string]any{
				"target_column":        cfg.TargetColumn,
				"positive_label":       cfg.PositiveLabel,
				"protected_attributes": cfg.ProtectedAttributes,
				"metrics":              cfg.Metrics,
				"thresholds":           cfg.Thresholds,
			})
			if a.Status == domain.AssessmentStatusConfiguring {
				if err := domain.AssessmentLifecycle.Transition(a.Status, domain.AssessmentStatusPending); err != nil {
					return err
				}
				updates["status"] = domain.AssessmentStatusPending
			}
			thresholds := make([]*domain.FairnessThreshold, 0, len(cfg.Thresholds))
			now := time.Now().UTC()
			for name, t := range cfg.Thresholds {
				thresholds = append(thresholds, &domain.FairnessThreshold{
					ID:           uuid.New(),
					AssessmentID: a.ID,
					MetricName:   name,
					LowerBound:   t.Lower,
					UpperBound:   t.Upper,
					CreatedAt:    now,
				})
			}
			if err := s.repo.AddThresholds(inner, thresholds); err != nil {
				return apierr.Internal("store_thresholds", err)
			}
		default:
			if a.Status == domain.AssessmentStatusPending {
				if err := domain.AssessmentLifecycle.Transition(a.Status, domain.AssessmentStatusConfiguring); err != nil {
					return err
				}
				updates["status"] = domain.AssessmentStatusConfiguring
			}
		}
		if err := s.repo.UpdateFields(inner, a.ID, updates); err != nil {
			return apierr.Internal("store_wizard_state", err)
		}
		out, err = s.repo.GetByID(inner, a.ID)
		if err != nil {
			return apierr.Internal("reload_fairness_assessment", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return next, out, nil
}

func (s *fairnessService) Execute(dbc dbctx.Context, id uuid.UUID) (*domain.FairnessAssessment, *domain.Job, error) {
	var (
		a   *domain.FairnessAssessment
		job *domain.Job
	)
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		var err error
		a, err = s.Get(inner, id)
		if err != nil {
			return err
		}
		if err := domain.AssessmentLifecycle.Transition(a.Status, domain.AssessmentStatusRunning); err != nil {
			return err
		}
		cfg := decodeConfig(a.MetricConfig)
		if len(cfg.Metrics) == 0 {
			return apierr.Validation("assessment_not_configured", "assessment %s has no metric configuration, finish the wizard first", a.ID)
		}

		job, err = s.jobs.Submit(inner, SubmitJobInput{
			Name:    "fairness: " + a.Name,
			JobType: domain.JobTypeAssessment,
			Parameters: map[string]any{
				"assessment_kind": "fairness",
				"assessment_id":   a.ID.String(),
				"model_card_id":   a.ModelCardID.String(),
				"data_ref":        configuredDataRef(a.MetricConfig),
			},
			OwnerUserID:    a.OwnerUserID,
			OrganizationID: a.OrganizationID,
		})
		if err != nil {
			return err
		}
		return s.repo.UpdateFields(inner, a.ID, map[string]interface{}{
			"status": domain.AssessmentStatusRunning,
			"job_id": job.ID,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	// The job row is committed; dispatch happens outside the transaction so a
	// runner outage cannot roll back the submission record.
	if err := s.jobs.Dispatch(dbc, job.ID); err != nil {
		if ferr := s.MarkFailed(dbc, a.ID, "dispatch failed: "+err.Error()); ferr != nil {
			s.log.Error("Mark assessment failed after dispatch error", "assessment_id", a.ID, "error", ferr)
		}
		return nil, nil, err
	}
	a.Status = domain.AssessmentStatusRunning
	a.JobID = &job.ID
	return a, job, nil
}

func (s *fairnessService) CompleteFromResults(dbc dbctx.Context, id uuid.UUID, results []MetricResult) (*domain.FairnessAssessment, error) {
	var out *domain.FairnessAssessment
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		a, err := s.repo.GetByID(inner, id)
		if err != nil {
			return apierr.Internal("load_fairness_assessment", err)
		}
		if a == nil {
			return apierr.NotFound("fairness_assessment_not_found", "fairness assessment %s not found", id)
		}
		if err := domain.AssessmentLifecycle.Transition(a.Status, domain.AssessmentStatusCompleted); err != nil {
			return err
		}

		cfg := decodeConfig(a.MetricConfig)
		now := time.Now().UTC()
		rows := make([]*domain.FairnessAssessmentMetric, 0, len(results))
		passed := 0
		for _, res := range results {
			ok := true
			if t, found := cfg.Thresholds[res.MetricName]; found {
				ok = res.Value >= t.Lower && res.Value <= t.Upper
			}
			if ok {
				passed++
			}
			rows = append(rows, &domain.FairnessAssessmentMetric{
				ID:                 uuid.New(),
				AssessmentID:       a.ID,
				MetricName:         res.MetricName,
				ProtectedAttribute: res.ProtectedAttribute,
				GroupValues:        mustJSON(res.GroupValues),
				Value:              res.Value,
				Passed:             ok,
				CreatedAt:          now,
			})
		}
		if err := s.repo.AddMetrics(inner, rows); err != nil {
			return apierr.Internal("store_fairness_metrics", err)
		}

		score := 1.0
		if len(rows) > 0 {
			score = float64(passed) / float64(len(rows))
		}
		if err := s.repo.UpdateFields(inner, a.ID, map[string]interface{}{
			"status":        domain.AssessmentStatusCompleted,
			"overall_score": score,
			"completed_at":  now,
		}); err != nil {
			return apierr.Internal("complete_fairness_assessment", err)
		}
		out, err = s.repo.GetByID(inner, a.ID)
		if err != nil {
			return apierr.Internal("reload_fairness_assessment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *fairnessService) MarkFailed(dbc dbctx.Context, id uuid.UUID, errorMessage string) error {
	a, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return apierr.Internal("load_fairness_assessment", err)
	}
	if a == nil {
		return apierr.NotFound("fairness_assessment_not_found", "fairness assessment %s not found", id)
	}
	if err := domain.AssessmentLifecycle.Transition(a.Status, domain.AssessmentStatusFailed); err != nil {
		return err
	}
	return s.repo.UpdateFields(dbc, id, map[string]interface{}{
		"status":        domain.AssessmentStatusFailed,
		"error_message": errorMessage,
		"completed_at":  time.Now().UTC(),
	})
}

func (s *fairnessService) Results(dbc dbctx.Context, id uuid.UUID) (*FairnessResults, error) {
	a, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	metrics, err := s.repo.ListMetrics(dbc, a.ID)
	if err != nil {
		return nil, apierr.Internal("list_fairness_metrics", err)
	}
	thresholds, err := s.repo.ListThresholds(dbc, a.ID)
	if err != nil {
		return nil, apierr.Internal("list_fairness_thresholds", err)
	}
	return &FairnessResults{Assessment: a, Metrics: metrics, Thresholds: thresholds}, nil
}

func (s *fairnessService) inTx(dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	handle := dbc.Tx
	if handle == nil {
		handle = s.db
	}
	return handle.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	})
}

// configuredDataRef pulls the dataset reference out of a stored config blob.
// The engine needs it verbatim; it is not part of the wizard output.
func configuredDataRef(raw []byte) string {
	var cfg struct {
		DataRef string `json:"data_ref"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &cfg)
	}
	return cfg.DataRef
}

// decodeConfig reads the wizard output stored on the assessment row.
func decodeConfig(raw []byte) wizard.Config {
	var cfg wizard.Config
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &cfg)
	}
	return cfg
}

func authorizeOwned(ctx context.Context, owner, org uuid.UUID, what string) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil
	}
	if rd.UserID != uuid.Nil && owner == rd.UserID {
		return nil
	}
	if rd.OrganizationID != uuid.Nil && org == rd.OrganizationID {
		return nil
	}
	return apierr.AccessDenied("access_denied", "%s does not belong to the requesting principal", what)
}

func scopeAssessmentFilter(ctx context.Context, filter *repos.AssessmentFilter) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return
	}
	if filter.OrganizationID == uuid.Nil && rd.OrganizationID != uuid.Nil {
		filter.OrganizationID = rd.OrganizationID
	} else if filter.OwnerUserID == uuid.Nil && rd.OrganizationID == uuid.Nil {
		filter.OwnerUserID = rd.UserID
	}
}
