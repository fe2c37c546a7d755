package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/services"
	"github.com/clearlens/governance-backend/internal/wizard"
)

// AssessmentHandler executes fairness and diagnosis assessment jobs: it runs
// the metrics engine against the stored configuration and ingests the results
// back into the assessment rows.
type AssessmentHandler struct {
	Log       *logger.Logger
	Fairness  services.FairnessService
	Diagnosis services.DiagnosisService
	Engine    services.MetricsEngine
}

func (h *AssessmentHandler) Type() string { return string(domain.JobTypeAssessment) }

func (h *AssessmentHandler) Run(jc *runtime.Context) error {
	id, ok := jc.ParamUUID("assessment_id")
	if !ok {
		return fmt.Errorf("missing assessment_id parameter")
	}
	kind := jc.ParamString("assessment_kind")
	dbc := dbctx.New(jc.Ctx)
	jc.SetProgress(10)

	switch kind {
	case "fairness":
		a, err := h.Fairness.Get(dbc, id)
		if err != nil {
			return err
		}
		var cfg wizard.Config
		if len(a.MetricConfig) > 0 {
			_ = json.Unmarshal(a.MetricConfig, &cfg)
		}
		results, err := h.Engine.ComputeFairnessMetrics(jc.Ctx, services.FairnessInput{
			AssessmentID: a.ID,
			ModelCardID:  a.ModelCardID,
			DataRef:      jc.ParamString("data_ref"),
			Config:       cfg,
		})
		if err != nil {
			h.markFairnessFailed(dbc, jc, id, err)
			return err
		}
		jc.SetProgress(80)
		if _, err := h.Fairness.CompleteFromResults(dbc, id, results); err != nil {
			h.markFairnessFailed(dbc, jc, id, err)
			return err
		}

	case "diagnosis":
		a, err := h.Diagnosis.Get(dbc, id)
		if err != nil {
			return err
		}
		var cfg map[string]any
		if len(a.Config) > 0 {
			_ = json.Unmarshal(a.Config, &cfg)
		}
		result, err := h.Engine.ComputeDiagnosis(jc.Ctx, services.DiagnosisInput{
			AssessmentID: a.ID,
			ModelCardID:  a.ModelCardID,
			DataRef:      jc.ParamString("data_ref"),
			Config:       cfg,
		})
		if err != nil {
			h.markDiagnosisFailed(dbc, jc, id, err)
			return err
		}
		jc.SetProgress(80)
		if _, err := h.Diagnosis.CompleteFromResults(dbc, id, result); err != nil {
			h.markDiagnosisFailed(dbc, jc, id, err)
			return err
		}

	default:
		return fmt.Errorf("unknown assessment_kind %q", kind)
	}

	jc.Succeed(nil, nil)
	return nil
}

func (h *AssessmentHandler) markFairnessFailed(dbc dbctx.Context, jc *runtime.Context, id uuid.UUID, cause error) {
	if err := h.Fairness.MarkFailed(dbc, id, cause.Error()); err != nil && h.Log != nil {
		h.Log.Warn("Mark fairness assessment failed", "assessment_id", id, "job_id", jc.Job.ID, "error", err)
	}
}

func (h *AssessmentHandler) markDiagnosisFailed(dbc dbctx.Context, jc *runtime.Context, id uuid.UUID, cause error) {
	if err := h.Diagnosis.MarkFailed(dbc, id, cause.Error()); err != nil && h.Log != nil {
		h.Log.Warn("Mark diagnosis assessment failed", "assessment_id", id, "job_id", jc.Job.ID, "error", err)
	}
}
