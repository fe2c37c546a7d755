package services

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
	"github.com/clearlens/governance-backend/internal/wizard"
)

type fairnessFixture struct {
	svc    FairnessService
	diag   DiagnosisService
	cards  ModelCardService
	repo   repos.FairnessAssessmentRepo
	runner *fakeRunner
}

func newFairnessFixture(tb testing.TB) *fairnessFixture {
	tb.Helper()
	gdb := newTestDB(tb)
	log := testLogger()
	runner := &fakeRunner{}
	cardRepo := repos.NewModelCardRepo(gdb, log)
	repo := repos.NewFairnessAssessmentRepo(gdb, log)
	jobs := NewJobService(gdb, log, repos.NewJobRepo(gdb, log), runner, nil, nil)
	return &fairnessFixture{
		svc:    NewFairnessService(gdb, log, repo, cardRepo, jobs),
		diag:   NewDiagnosisService(gdb, log, repos.NewDiagnosisAssessmentRepo(gdb, log), cardRepo, jobs),
		cards:  NewModelCardService(gdb, log, cardRepo, repos.NewAuditLogRepo(gdb, log)),
		repo:   repo,
		runner: runner,
	}
}

func jobParams(tb testing.TB, job *domain.Job) map[string]any {
	tb.Helper()
	params := map[string]any{}
	if err := json.Unmarshal(job.Parameters, &params); err != nil {
		tb.Fatalf("decode job parameters: %v", err)
	}
	return params
}

func (f *fairnessFixture) createAssessment(tb testing.TB, dbc dbctx.Context) *domain.FairnessAssessment {
	tb.Helper()
	card, err := f.cards.Create(dbc, CreateModelCardInput{Name: "loan approver"})
	if err != nil {
		tb.Fatalf("create model card: %v", err)
	}
	a, err := f.svc.Create(dbc, CreateFairnessAssessmentInput{
		Name:        "quarterly fairness review",
		ModelCardID: card.ID,
		DataRef:     "s3://datasets/loans/2026-q3.parquet",
	})
	if err != nil {
		tb.Fatalf("create assessment: %v", err)
	}
	return a
}

func (f *fairnessFixture) finishWizard(tb testing.TB, dbc dbctx.Context, id uuid.UUID) {
	tb.Helper()
	steps := []wizard.Input{
		{TargetColumn: "approved", PositiveLabel: "yes"},
		{ProtectedAttributes: []string{"gender", "age_band"}},
		{Metrics: []string{"demographic_parity", "equal_opportunity"}},
		{Thresholds: map[string]wizard.Threshold{
			"demographic_parity": {Lower: 0.8, Upper: 1.25},
		}},
		{Confirm: true},
	}
	for _, in := range steps {
		if _, _, err := f.svc.AdvanceWizard(dbc, id, in); err != nil {
			tb.Fatalf("AdvanceWizard(%+v): %v", in, err)
		}
	}
}

func TestFairnessCreateRequiresModelCard(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)

	_, err := f.svc.Create(dbc, CreateFairnessAssessmentInput{Name: "x", ModelCardID: uuid.New()})
	if !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("kind: want=not_found got=%v", err)
	}

	a := f.createAssessment(t, dbc)
	if a.Status != domain.AssessmentStatusPending {
		t.Fatalf("status: want=pending got=%s", a.Status)
	}
	state, err := wizard.Unmarshal(a.WizardState)
	if err != nil {
		t.Fatalf("unmarshal wizard state: %v", err)
	}
	if state.Step() != wizard.StepTargetSelection {
		t.Fatalf("initial wizard step: want=%s got=%s", wizard.StepTargetSelection, state.Step())
	}
}

func TestFairnessWizardChoreography(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	a := f.createAssessment(t, dbc)

	// First wizard move takes the assessment into configuring.
	st, out, err := f.svc.AdvanceWizard(dbc, a.ID, wizard.Input{TargetColumn: "approved", PositiveLabel: "yes"})
	if err != nil {
		t.Fatalf("AdvanceWizard: %v", err)
	}
	if st.Step() != wizard.StepProtectedAttributes {
		t.Fatalf("step: want=%s got=%s", wizard.StepProtectedAttributes, st.Step())
	}
	if out.Status != domain.AssessmentStatusConfiguring {
		t.Fatalf("status after first step: want=configuring got=%s", out.Status)
	}

	// A rejected input leaves the wizard where it was.
	if _, _, err := f.svc.AdvanceWizard(dbc, a.ID, wizard.Input{}); !apierr.IsKind(err, apierr.KindValidation) {
		t.Fatalf("empty attributes: want validation error, got %v", err)
	}

	mustStep := func(in wizard.Input, want string) *domain.FairnessAssessment {
		t.Helper()
		st, out, err := f.svc.AdvanceWizard(dbc, a.ID, in)
		if err != nil {
			t.Fatalf("AdvanceWizard(%+v): %v", in, err)
		}
		if st.Step() != want {
			t.Fatalf("step: want=%s got=%s", want, st.Step())
		}
		return out
	}

	mustStep(wizard.Input{ProtectedAttributes: []string{"gender", "age_band"}}, wizard.StepMetricSelection)
	mustStep(wizard.Input{Metrics: []string{"demographic_parity", "equal_opportunity"}}, wizard.StepThresholds)

	// Back discards the thresholds step and returns to metric selection.
	st, _, err = f.svc.RewindWizard(dbc, a.ID)
	if err != nil {
		t.Fatalf("RewindWizard: %v", err)
	}
	if st.Step() != wizard.StepMetricSelection {
		t.Fatalf("step after back: want=%s got=%s", wizard.StepMetricSelection, st.Step())
	}

	mustStep(wizard.Input{Metrics: []string{"demographic_parity"}}, wizard.StepThresholds)
	mustStep(wizard.Input{Thresholds: map[string]wizard.Threshold{
		"demographic_parity": {Lower: 0.8, Upper: 1.25},
	}}, wizard.StepReview)
	out = mustStep(wizard.Input{Confirm: true}, wizard.StepCompleted)

	if out.Status != domain.AssessmentStatusPending {
		t.Fatalf("status after completion: want=pending got=%s", out.Status)
	}
	cfg := decodeConfig(out.MetricConfig)
	if cfg.TargetColumn != "approved" || cfg.PositiveLabel != "yes" {
		t.Fatalf("frozen config target: got=%+v", cfg)
	}
	if len(cfg.ProtectedAttributes) != 2 || len(cfg.Metrics) != 1 {
		t.Fatalf("frozen config selections: got=%+v", cfg)
	}

	res, err := f.svc.Results(dbc, a.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Thresholds) != 1 {
		t.Fatalf("threshold rows: want=1 got=%d", len(res.Thresholds))
	}
	th := res.Thresholds[0]
	if th.MetricName != "demographic_parity" || th.LowerBound != 0.8 || th.UpperBound != 1.25 {
		t.Fatalf("threshold row: got=%+v", th)
	}
}

func TestFairnessWizardLockedOnceRunning(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	a := f.createAssessment(t, dbc)

	if err := f.repo.UpdateFields(dbc, a.ID, map[string]interface{}{
		"status": domain.AssessmentStatusRunning,
	}); err != nil {
		t.Fatalf("force running: %v", err)
	}

	_, _, err := f.svc.AdvanceWizard(dbc, a.ID, wizard.Input{TargetColumn: "approved", PositiveLabel: "yes"})
	if code := apierr.CodeOf(err); code != "assessment_not_editable" {
		t.Fatalf("code: want=assessment_not_editable got=%q err=%v", code, err)
	}
}

func TestFairnessExecuteRequiresConfiguration(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	a := f.createAssessment(t, dbc)

	_, _, err := f.svc.Execute(dbc, a.ID)
	if code := apierr.CodeOf(err); code != "assessment_not_configured" {
		t.Fatalf("code: want=assessment_not_configured got=%q err=%v", code, err)
	}
	if got := f.runner.dispatchCount(); got != 0 {
		t.Fatalf("dispatch count: want=0 got=%d", got)
	}
}

func TestFairnessExecuteSubmitsAssessmentJob(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	a := f.createAssessment(t, dbc)
	f.finishWizard(t, dbc, a.ID)

	out, job, err := f.svc.Execute(dbc, a.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Status != domain.AssessmentStatusRunning {
		t.Fatalf("status: want=running got=%s", out.Status)
	}
	if job == nil || job.JobType != domain.JobTypeAssessment {
		t.Fatalf("job: got=%+v", job)
	}
	if out.JobID == nil || *out.JobID != job.ID {
		t.Fatalf("job link: want=%s got=%v", job.ID, out.JobID)
	}
	if got := f.runner.dispatchCount(); got != 1 {
		t.Fatalf("dispatch count: want=1 got=%d", got)
	}

	// The worker resolves the dataset from the job parameters alone.
	params := jobParams(t, job)
	if params["data_ref"] != "s3://datasets/loans/2026-q3.parquet" {
		t.Fatalf("data_ref parameter: got=%v", params["data_ref"])
	}
	if params["assessment_id"] != a.ID.String() {
		t.Fatalf("assessment_id parameter: got=%v", params["assessment_id"])
	}

	// A second execute is rejected: running is not re-enterable.
	if _, _, err := f.svc.Execute(dbc, a.ID); err == nil {
		t.Fatal("expected error executing a running assessment")
	}
}

func TestDiagnosisExecuteCarriesDataRef(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	card, err := f.cards.Create(dbc, CreateModelCardInput{Name: "loan approver"})
	if err != nil {
		t.Fatalf("create model card: %v", err)
	}
	a, err := f.diag.Create(dbc, CreateDiagnosisAssessmentInput{
		Name:        "monthly health check",
		ModelCardID: card.ID,
		Config: map[string]any{
			"data_ref": "s3://datasets/loans/2026-08.parquet",
			"features": []string{"age", "income"},
		},
	})
	if err != nil {
		t.Fatalf("create diagnosis assessment: %v", err)
	}

	out, job, err := f.diag.Execute(dbc, a.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Status != domain.AssessmentStatusRunning {
		t.Fatalf("status: want=running got=%s", out.Status)
	}
	params := jobParams(t, job)
	if params["data_ref"] != "s3://datasets/loans/2026-08.parquet" {
		t.Fatalf("data_ref parameter: got=%v", params["data_ref"])
	}
	if params["assessment_kind"] != "diagnosis" {
		t.Fatalf("assessment_kind parameter: got=%v", params["assessment_kind"])
	}
}

func TestFairnessExecuteDispatchFailureMarksFailed(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	a := f.createAssessment(t, dbc)
	f.finishWizard(t, dbc, a.ID)

	f.runner.failWith = errors.New("queue unreachable")
	_, _, err := f.svc.Execute(dbc, a.ID)
	if err == nil {
		t.Fatal("expected dispatch error")
	}

	reloaded, err := f.svc.Get(dbc, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Status != domain.AssessmentStatusFailed {
		t.Fatalf("status: want=failed got=%s", reloaded.Status)
	}
	if !strings.HasPrefix(reloaded.ErrorMessage, "dispatch failed") {
		t.Fatalf("error_message: got=%q", reloaded.ErrorMessage)
	}
}

func TestFairnessCompleteFromResultsScores(t *testing.T) {
	f := newFairnessFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	a := f.createAssessment(t, dbc)
	f.finishWizard(t, dbc, a.ID)
	if _, _, err := f.svc.Execute(dbc, a.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, err := f.svc.CompleteFromResults(dbc, a.ID, []MetricResult{
		{MetricName: "demographic_parity", ProtectedAttribute: "gender", Value: 0.92,
			GroupValues: map[string]float64{"female": 0.44, "male": 0.48}},
		{MetricName: "demographic_parity", ProtectedAttribute: "age_band", Value: 1.6},
		{MetricName: "equal_opportunity", ProtectedAttribute: "gender", Value: 0.97},
	})
	if err != nil {
		t.Fatalf("CompleteFromResults: %v", err)
	}
	if out.Status != domain.AssessmentStatusCompleted {
		t.Fatalf("status: want=completed got=%s", out.Status)
	}
	if out.CompletedAt == nil {
		t.Fatal("completed_at: want set")
	}
	// Two of three results pass: 1.6 falls outside [0.8, 1.25], and the metric
	// without a configured threshold passes by default.
	if want := 2.0 / 3.0; out.OverallScore == nil || *out.OverallScore != want {
		t.Fatalf("overall_score: want=%v got=%v", want, out.OverallScore)
	}

	res, err := f.svc.Results(dbc, a.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Metrics) != 3 {
		t.Fatalf("metric rows: want=3 got=%d", len(res.Metrics))
	}
	passed := map[string]bool{}
	for _, m := range res.Metrics {
		passed[m.MetricName+"/"+m.ProtectedAttribute] = m.Passed
	}
	if !passed["demographic_parity/gender"] || passed["demographic_parity/age_band"] || !passed["equal_opportunity/gender"] {
		t.Fatalf("passed flags: got=%v", passed)
	}

	// Completed assessments reject further result writes.
	if _, err := f.svc.CompleteFromResults(dbc, a.ID, nil); err == nil {
		t.Fatal("expected error completing twice")
	}
}
