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

type CreateDiagnosisAssessmentInput struct {
	Name        string
	ModelCardID uuid.UUID
	Config      map[string]any
}

type DiagnosisResults struct {
	Assessment     *domain.DiagnosisAssessment    `json:"assessment"`
	Metrics        []*domain.DiagnosisMetric      `json:"metrics"`
	Drift          []*domain.DriftDetection       `json:"drift"`
	Explainability []*domain.ExplainabilityResult `json:"explainability"`
}

type DiagnosisService interface {
	Create(dbc dbctx.Context, in CreateDiagnosisAssessmentInput) (*domain.DiagnosisAssessment, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*domain.DiagnosisAssessment, error)
	List(dbc dbctx.Context, filter repos.AssessmentFilter) ([]*domain.DiagnosisAssessment, int64, error)

	Execute(dbc dbctx.Context, id uuid.UUID) (*domain.DiagnosisAssessment, *domain.Job, error)
	CompleteFromResults(dbc dbctx.Context, id uuid.UUID, result *DiagnosisResult) (*domain.DiagnosisAssessment, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errorMessage string) error
	Results(dbc dbctx.Context, id uuid.UUID) (*DiagnosisResults, error)
}

type diagnosisService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.DiagnosisAssessmentRepo
	cards repos.ModelCardRepo
	jobs  JobService
}

func NewDiagnosisService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.DiagnosisAssessmentRepo,
	cards repos.ModelCardRepo,
	jobs JobService,
) DiagnosisService {
	return &diagnosisService{
		db:    db,
		log:   baseLog.With("service", "DiagnosisService"),
		repo:  repo,
		cards: cards,
		jobs:  jobs,
	}
}

func (s *diagnosisService) Create(dbc dbctx.Context, in CreateDiagnosisAssessmentInput) (*domain.DiagnosisAssessment, error) {
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

	now := time.Now().UTC()
	a := &domain.DiagnosisAssessment{
		ID:             uuid.New(),
		Name:           in.Name,
		ModelCardID:    in.ModelCardID,
		Status:         domain.AssessmentStatusPending,
		OwnerUserID:    owner,
		OrganizationID: org,
		Config:         mustJSON(in.Config),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(dbc, a); err != nil {
		return nil, apierr.Internal("create_diagnosis_assessment", err)
	}
	return a, nil
}

func (s *diagnosisService) Get(dbc dbctx.Context, id uuid.UUID) (*domain.DiagnosisAssessment, error) {
	a, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal("load_diagnosis_assessment", err)
	}
	if a == nil {
		return nil, apierr.NotFound("diagnosis_assessment_not_found", "diagnosis assessment %s not found", id)
	}
	if err := authorizeOwned(dbc.Ctx, a.OwnerUserID, a.OrganizationID, "diagnosis assessment"); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *diagnosisService) List(dbc dbctx.Context, filter repos.AssessmentFilter) ([]*domain.DiagnosisAssessment, int64, error) {
	scopeAssessmentFilter(dbc.Ctx, &filter)
	out, total, err := s.repo.List(dbc, filter)
	if err != nil {
		return nil, 0, apierr.Internal("list_diagnosis_assessments", err)
	}
	return out, total, nil
}

func (s *diagnosisService) Execute(dbc dbctx.Context, id uuid.UUID) (*domain.DiagnosisAssessment, *domain.Job, error) {
	var (
		a   *domain.DiagnosisAssessment
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
		job, err = s.jobs.Submit(inner, SubmitJobInput{
			Name:    "diagnosis: " + a.Name,
			JobType: domain.JobTypeAssessment,
			Parameters: map[string]any{
				"assessment_kind": "diagnosis",
				"assessment_id":   a.ID.String(),
				"model_card_id":   a.ModelCardID.String(),
				"data_ref":        configuredDataRef(a.Config),
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

func (s *diagnosisService) CompleteFromResults(dbc dbctx.Context, id uuid.UUID, result *DiagnosisResult) (*domain.DiagnosisAssessment, error) {
	if result == nil {
		return nil, apierr.Validation("missing_results", "missing diagnosis results")
	}
	var out *domain.DiagnosisAssessment
	err := s.inTx(dbc, func(inner dbctx.Context) error {
		a, err := s.repo.GetByID(inner, id)
		if err != nil {
			return apierr.Internal("load_diagnosis_assessment", err)
		}
		if a == nil {
			return apierr.NotFound("diagnosis_assessment_not_found", "diagnosis assessment %s not found", id)
		}
		if err := domain.AssessmentLifecycle.Transition(a.Status, domain.AssessmentStatusCompleted); err != nil {
			return err
		}

		now := time.Now().UTC()
		metrics := make([]*domain.DiagnosisMetric, 0, len(result.Metrics))
		for _, m := range result.Metrics {
			metrics = append(metrics, &domain.DiagnosisMetric{
				ID:           uuid.New(),
				AssessmentID: a.ID,
				MetricName:   m.MetricName,
				Value:        m.Value,
				Unit:         m.Unit,
				CreatedAt:    now,
			})
		}
		if err := s.repo.AddMetrics(inner, metrics); err != nil {
			return apierr.Internal("store_diagnosis_metrics", err)
		}

		driftDetected := false
		drift := make([]*domain.DriftDetection, 0, len(result.Drift))
		for _, d := range result.Drift {
			detected := d.DriftScore >= d.Threshold
			if detected {
				driftDetected = true
			}
			drift = append(drift, &domain.DriftDetection{
				ID:           uuid.New(),
				AssessmentID: a.ID,
				FeatureName:  d.FeatureName,
				DriftScore:   d.DriftScore,
				Threshold:    d.Threshold,
				Detected:     detected,
				TestName:     d.TestName,
				ObservedAt:   now,
				CreatedAt:    now,
			})
		}
		if err := s.repo.AddDrift(inner, drift); err != nil {
			return apierr.Internal("store_drift_detections", err)
		}

		explain := make([]*domain.ExplainabilityResult, 0, len(result.Explainability))
		for _, e := range result.Explainability {
			explain = append(explain, &domain.ExplainabilityResult{
				ID:           uuid.New(),
				AssessmentID: a.ID,
				Method:       e.Method,
				FeatureName:  e.FeatureName,
				Importance:   e.Importance,
				Detail:       mustJSON(e.Detail),
				CreatedAt:    now,
			})
		}
		if err := s.repo.AddExplainability(inner, explain); err != nil {
			return apierr.Internal("store_explainability_results", err)
		}

		if err := s.repo.UpdateFields(inner, a.ID, map[string]interface{}{
			"status":               domain.AssessmentStatusCompleted,
			"overall_health_score": result.HealthScore,
			"drift_detected":       driftDetected,
			"completed_at":         now,
		}); err != nil {
			return apierr.Internal("complete_diagnosis_assessment", err)
		}
		out, err = s.repo.GetByID(inner, a.ID)
		if err != nil {
			return apierr.Internal("reload_diagnosis_assessment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *diagnosisService) MarkFailed(dbc dbctx.Context, id uuid.UUID, errorMessage string) error {
	a, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return apierr.Internal("load_diagnosis_assessment", err)
	}
	if a == nil {
		return apierr.NotFound("diagnosis_assessment_not_found", "diagnosis assessment %s not found", id)
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

func (s *diagnosisService) Results(dbc dbctx.Context, id uuid.UUID) (*DiagnosisResults, error) {
	a, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	metrics, err := s.repo.ListMetrics(dbc, a.ID)
	if err != nil {
		return nil, apierr.Internal("list_diagnosis_metrics", err)
	}
	drift, err := s.repo.ListDrift(dbc, a.ID)
	if err != nil {
		return nil, apierr.Internal("list_drift_detections", err)
	}
	explain, err := s.repo.ListExplainability(dbc, a.ID)
	if err != nil {
		return nil, apierr.Internal("list_explainability_results", err)
	}
	return &DiagnosisResults{Assessment: a, Metrics: metrics, Drift: drift, Explainability: explain}, nil
}

func (s *diagnosisService) inTx(dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	handle := dbc.Tx
	if handle == nil {
		handle = s.db
	}
	return handle.WithContext(dbc.Context()).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	})
}
