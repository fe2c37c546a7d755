package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/platform/blob"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

// ReportHandler assembles an evidence pack for a model card: a YAML manifest
// plus a JSON summary of versions, assessments and compliance posture,
// uploaded under evidence/{model_card_id}/{job_id}/.
type ReportHandler struct {
	Log        *logger.Logger
	Cards      repos.ModelCardRepo
	Fairness   repos.FairnessAssessmentRepo
	Diagnosis  repos.DiagnosisAssessmentRepo
	Compliance repos.ComplianceRepo
	Store      blob.Store
}

func (h *ReportHandler) Type() string { return string(domain.JobTypeReportGeneration) }

type evidenceManifest struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	JobID       string    `yaml:"job_id"`

	ModelCard struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		ModelType string `yaml:"model_type,omitempty"`
		RiskLevel string `yaml:"risk_level,omitempty"`
		Status    string `yaml:"status"`
	} `yaml:"model_card"`

	Versions []evidenceVersion `yaml:"versions"`

	Assessments struct {
		Fairness  []evidenceAssessment `yaml:"fairness"`
		Diagnosis []evidenceAssessment `yaml:"diagnosis"`
	} `yaml:"assessments"`

	Compliance []evidenceCompliance `yaml:"compliance"`
}

type evidenceVersion struct {
	Version     string `yaml:"version"`
	IsCurrent   bool   `yaml:"is_current"`
	ArtifactURI string `yaml:"artifact_uri,omitempty"`
}

type evidenceAssessment struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Status      string     `yaml:"status"`
	Score       *float64   `yaml:"score,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
}

type evidenceCompliance struct {
	FrameworkID string `yaml:"framework_id"`
	Status      string `yaml:"status"`
}

func (h *ReportHandler) Run(jc *runtime.Context) error {
	if h.Store == nil {
		return fmt.Errorf("artifact storage is not configured")
	}
	cardID, ok := jc.ParamUUID("model_card_id")
	if !ok {
		return fmt.Errorf("missing model_card_id parameter")
	}
	dbc := dbctx.New(jc.Ctx)

	card, err := h.Cards.GetByID(dbc, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("model card %s not found", cardID)
	}
	jc.SetProgress(10)

	manifest := evidenceManifest{GeneratedAt: time.Now().UTC(), JobID: jc.Job.ID.String()}
	manifest.ModelCard.ID = card.ID.String()
	manifest.ModelCard.Name = card.Name
	manifest.ModelCard.ModelType = card.ModelType
	manifest.ModelCard.RiskLevel = card.RiskLevel
	manifest.ModelCard.Status = card.Status

	versions, err := h.Cards.ListVersions(dbc, cardID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		manifest.Versions = append(manifest.Versions, evidenceVersion{
			Version:     v.Version,
			IsCurrent:   v.IsCurrent,
			ArtifactURI: v.ArtifactURI,
		})
	}
	jc.SetProgress(30)

	fairness, _, err := h.Fairness.List(dbc, repos.AssessmentFilter{ModelCardID: cardID, Limit: 200})
	if err != nil {
		return err
	}
	for _, a := range fairness {
		manifest.Assessments.Fairness = append(manifest.Assessments.Fairness, evidenceAssessment{
			ID:          a.ID.String(),
			Name:        a.Name,
			Status:      string(a.Status),
			Score:       a.OverallScore,
			CompletedAt: a.CompletedAt,
		})
	}
	diagnosis, _, err := h.Diagnosis.List(dbc, repos.AssessmentFilter{ModelCardID: cardID, Limit: 200})
	if err != nil {
		return err
	}
	for _, a := range diagnosis {
		manifest.Assessments.Diagnosis = append(manifest.Assessments.Diagnosis, evidenceAssessment{
			ID:          a.ID.String(),
			Name:        a.Name,
			Status:      string(a.Status),
			Score:       a.OverallHealthScore,
			CompletedAt: a.CompletedAt,
		})
	}
	jc.SetProgress(50)

	compliance, err := h.Compliance.ListModelCompliance(dbc, cardID)
	if err != nil {
		return err
	}
	for _, mc := range compliance {
		manifest.Compliance = append(manifest.Compliance, evidenceCompliance{
			FrameworkID: mc.FrameworkID.String(),
			Status:      mc.Status,
		})
	}
	jc.SetProgress(60)

	prefix := fmt.Sprintf("evidence/%s/%s/", cardID, jc.Job.ID)

	manifestYAML, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("render manifest: %w", err)
	}
	manifestURL, err := h.Store.Upload(jc.Ctx, prefix+"manifest.yaml", "application/yaml", bytes.NewReader(manifestYAML))
	if err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	jc.SetProgress(80)

	summaryJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	summaryURL, err := h.Store.Upload(jc.Ctx, prefix+"summary.json", "application/json", bytes.NewReader(summaryJSON))
	if err != nil {
		return fmt.Errorf("upload summary: %w", err)
	}
	jc.SetProgress(95)

	jc.Succeed([]string{manifestURL, summaryURL}, map[string]any{
		"manifest.yaml": map[string]any{"model_card_id": cardID.String(), "kind": "evidence_manifest"},
		"summary.json":  map[string]any{"model_card_id": cardID.String(), "kind": "evidence_summary"},
	})
	return nil
}
