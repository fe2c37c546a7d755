package services

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/wizard"
)

// FairnessInput bundles everything the metrics engine needs to evaluate one
// fairness assessment.
type FairnessInput struct {
	AssessmentID uuid.UUID
	ModelCardID  uuid.UUID
	DataRef      string
	Config       wizard.Config
}

// MetricResult is one computed fairness metric for one protected attribute.
type MetricResult struct {
	MetricName         string
	ProtectedAttribute string
	GroupValues        map[string]float64
	Value              float64
}

type DiagnosisInput struct {
	AssessmentID uuid.UUID
	ModelCardID  uuid.UUID
	DataRef      string
	Config       map[string]any
}

type DiagnosisMetricResult struct {
	MetricName string
	Value      float64
	Unit       string
}

type DriftResult struct {
	FeatureName string
	DriftScore  float64
	Threshold   float64
	TestName    string
}

type ExplainabilityItem struct {
	Method      string
	FeatureName string
	Importance  float64
	Detail      map[string]any
}

type DiagnosisResult struct {
	HealthScore    float64
	Metrics        []DiagnosisMetricResult
	Drift          []DriftResult
	Explainability []ExplainabilityItem
}

// MetricsEngine is the external computation capability. The real evaluation
// runs outside this backend; implementations adapt whatever executes the
// statistics to these two calls.
type MetricsEngine interface {
	ComputeFairnessMetrics(ctx context.Context, in FairnessInput) ([]MetricResult, error)
	ComputeDiagnosis(ctx context.Context, in DiagnosisInput) (*DiagnosisResult, error)
}

// NotebookRunner executes a parameterized notebook or training script in the
// external execution environment and reports its outputs.
type NotebookRunner interface {
	Execute(ctx context.Context, run NotebookRun) (*NotebookResult, error)
}

type NotebookRun struct {
	JobID        uuid.UUID
	NotebookPath string
	Parameters   map[string]any
}

type NotebookResult struct {
	OutputURLs []string
	Stdout     string
	ExitCode   int
}

// staticMetricsEngine produces deterministic placeholder values derived from
// the metric and attribute names. It is the default wiring when no real
// engine endpoint is configured, and the fake used in tests.
type staticMetricsEngine struct{}

func NewStaticMetricsEngine() MetricsEngine { return staticMetricsEngine{} }

func (staticMetricsEngine) ComputeFairnessMetrics(_ context.Context, in FairnessInput) ([]MetricResult, error) {
	out := make([]MetricResult, 0, len(in.Config.Metrics)*len(in.Config.ProtectedAttributes))
	for _, metric := range in.Config.Metrics {
		for _, attr := range in.Config.ProtectedAttributes {
			v := unitValue(metric + "/" + attr)
			out = append(out, MetricResult{
				MetricName:         metric,
				ProtectedAttribute: attr,
				GroupValues: map[string]float64{
					"reference": unitValue(attr + "/reference"),
					"protected": unitValue(attr + "/protected"),
				},
				Value: v,
			})
		}
	}
	return out, nil
}

func (staticMetricsEngine) ComputeDiagnosis(_ context.Context, in DiagnosisInput) (*DiagnosisResult, error) {
	features := []string{"age", "income", "tenure"}
	res := &DiagnosisResult{
		HealthScore: 0.5 + unitValue(in.ModelCardID.String())/2,
		Metrics: []DiagnosisMetricResult{
			{MetricName: "accuracy", Value: 0.5 + unitValue("accuracy/"+in.ModelCardID.String())/2},
			{MetricName: "auc_roc", Value: 0.5 + unitValue("auc/"+in.ModelCardID.String())/2},
			{MetricName: "latency_p95", Value: 10 + 100*unitValue("latency/"+in.ModelCardID.String()), Unit: "ms"},
		},
	}
	for _, f := range features {
		res.Drift = append(res.Drift, DriftResult{
			FeatureName: f,
			DriftScore:  unitValue("drift/" + f + "/" + in.ModelCardID.String()),
			Threshold:   0.7,
			TestName:    "psi",
		})
		res.Explainability = append(res.Explainability, ExplainabilityItem{
			Method:      "shap",
			FeatureName: f,
			Importance:  unitValue("shap/" + f + "/" + in.ModelCardID.String()),
		})
	}
	return res, nil
}

// staticMetricsSource feeds monitoring loops the same deterministic drift
// readings the static engine produces, varied per observation time bucket.
type staticMetricsSource struct{}

func NewStaticMetricsSource() MetricsSource { return staticMetricsSource{} }

func (staticMetricsSource) Observe(_ context.Context, modelCardID uuid.UUID) ([]DriftResult, error) {
	features := []string{"age", "income", "tenure"}
	out := make([]DriftResult, 0, len(features))
	for _, f := range features {
		out = append(out, DriftResult{
			FeatureName: f,
			DriftScore:  unitValue("monitor/" + f + "/" + modelCardID.String()),
			Threshold:   0.7,
			TestName:    "psi",
		})
	}
	return out, nil
}

// staticNotebookRunner acknowledges notebook work without executing anything.
// Default wiring when no execution endpoint is configured.
type staticNotebookRunner struct{}

func NewStaticNotebookRunner() NotebookRunner { return staticNotebookRunner{} }

func (staticNotebookRunner) Execute(_ context.Context, run NotebookRun) (*NotebookResult, error) {
	return &NotebookResult{
		Stdout:   "notebook execution skipped: no runner endpoint configured",
		ExitCode: 0,
	}, nil
}

// unitValue hashes a seed into [0, 1) so repeated runs agree.
func unitValue(seed string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return float64(h.Sum32()%1000) / 1000
}
