package wizard

import (
	"testing"

	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

func mustAdvance(t *testing.T, s State, in Input) State {
	t.Helper()
	next, err := Advance(s, in)
	if err != nil {
		t.Fatalf("Advance from %s: %v", s.Step(), err)
	}
	return next
}

func TestWizardHappyPath(t *testing.T) {
	s := Start()
	if s.Step() != StepTargetSelection {
		t.Fatalf("initial step: want=%s got=%s", StepTargetSelection, s.Step())
	}

	s = mustAdvance(t, s, Input{TargetColumn: "approved", PositiveLabel: "yes"})
	if s.Step() != StepProtectedAttributes {
		t.Fatalf("step after target: want=%s got=%s", StepProtectedAttributes, s.Step())
	}

	s = mustAdvance(t, s, Input{ProtectedAttributes: []string{"gender", "age_band"}})
	if s.Step() != StepMetricSelection {
		t.Fatalf("step after attributes: want=%s got=%s", StepMetricSelection, s.Step())
	}

	s = mustAdvance(t, s, Input{Metrics: []string{"demographic_parity", "equal_opportunity"}})
	if s.Step() != StepThresholds {
		t.Fatalf("step after metrics: want=%s got=%s", StepThresholds, s.Step())
	}

	s = mustAdvance(t, s, Input{Thresholds: map[string]Threshold{
		"demographic_parity": {Lower: 0.8, Upper: 1.25},
	}})
	review, ok := s.(Review)
	if !ok {
		t.Fatalf("step after thresholds: want=Review got=%s", s.Step())
	}
	if review.Config.TargetColumn != "approved" || review.Config.PositiveLabel != "yes" {
		t.Fatalf("review config target: got=%+v", review.Config)
	}
	if len(review.Config.ProtectedAttributes) != 2 || len(review.Config.Metrics) != 2 {
		t.Fatalf("review config selections: got=%+v", review.Config)
	}

	s = mustAdvance(t, s, Input{Confirm: true})
	done, ok := s.(Completed)
	if !ok {
		t.Fatalf("final step: want=Completed got=%s", s.Step())
	}
	if done.Config.Thresholds["demographic_parity"].Upper != 1.25 {
		t.Fatalf("completed thresholds: got=%+v", done.Config.Thresholds)
	}
}

func TestWizardValidation(t *testing.T) {
	cases := []struct {
		name string
		s    State
		in   Input
	}{
		{"empty target", TargetSelection{}, Input{PositiveLabel: "yes"}},
		{"empty label", TargetSelection{}, Input{TargetColumn: "approved"}},
		{"no attributes", ProtectedAttributeSelection{TargetColumn: "approved"}, Input{}},
		{"attribute equals target", ProtectedAttributeSelection{TargetColumn: "approved"}, Input{ProtectedAttributes: []string{"approved"}}},
		{"no metrics", MetricSelection{}, Input{}},
		{"unknown metric", MetricSelection{}, Input{Metrics: []string{"vibes"}}},
		{"threshold for unselected metric", ThresholdSelection{Metrics: []string{"disparate_impact"}}, Input{Thresholds: map[string]Threshold{"equalized_odds": {}}}},
		{"inverted bounds", ThresholdSelection{Metrics: []string{"disparate_impact"}}, Input{Thresholds: map[string]Threshold{"disparate_impact": {Lower: 2, Upper: 1}}}},
		{"unconfirmed review", Review{}, Input{}},
		{"completed accepts nothing", Completed{}, Input{Confirm: true}},
	}
	for _, tc := range cases {
		next, err := Advance(tc.s, tc.in)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !apierr.IsKind(err, apierr.KindValidation) {
			t.Errorf("%s: kind want=validation got=%v", tc.name, apierr.KindOf(err))
		}
		if next.Step() != tc.s.Step() {
			t.Errorf("%s: state moved on error: %s -> %s", tc.name, tc.s.Step(), next.Step())
		}
	}
}

func TestWizardBack(t *testing.T) {
	s := State(ThresholdSelection{
		TargetColumn:        "approved",
		PositiveLabel:       "yes",
		ProtectedAttributes: []string{"gender"},
		Metrics:             []string{"disparate_impact"},
	})

	s, err := Back(s)
	if err != nil {
		t.Fatalf("Back from thresholds: %v", err)
	}
	ms, ok := s.(MetricSelection)
	if !ok {
		t.Fatalf("Back target: want=MetricSelection got=%s", s.Step())
	}
	// Only the metrics step's own input is discarded.
	if ms.TargetColumn != "approved" || len(ms.ProtectedAttributes) != 1 {
		t.Fatalf("Back preserved fields: got=%+v", ms)
	}

	if _, err := Back(TargetSelection{}); !apierr.IsKind(err, apierr.KindValidation) {
		t.Fatalf("Back at first step: want validation error, got %v", err)
	}
	if _, err := Back(Completed{}); !apierr.IsKind(err, apierr.KindValidation) {
		t.Fatalf("Back from completed: want validation error, got %v", err)
	}
}

func TestWizardMarshalRoundTrip(t *testing.T) {
	orig := State(Review{Config: Config{
		TargetColumn:        "approved",
		PositiveLabel:       "yes",
		ProtectedAttributes: []string{"gender"},
		Metrics:             []string{"equalized_odds"},
		Thresholds:          map[string]Threshold{"equalized_odds": {Lower: 0.1, Upper: 0.9}},
	}})

	raw, err := Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	restored, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	review, ok := restored.(Review)
	if !ok {
		t.Fatalf("restored step: want=%s got=%s", StepReview, restored.Step())
	}
	if review.Config.Thresholds["equalized_odds"].Upper != 0.9 {
		t.Fatalf("restored config: got=%+v", review.Config)
	}

	if s, err := Unmarshal(nil); err != nil || s.Step() != StepTargetSelection {
		t.Fatalf("Unmarshal(nil): want initial state, got step=%v err=%v", s, err)
	}
}

func TestDedupeSortsAndTrims(t *testing.T) {
	got := dedupe([]string{" gender ", "age", "gender", "", "age"})
	if len(got) != 2 || got[0] != "age" || got[1] != "gender" {
		t.Fatalf("dedupe: got=%v", got)
	}
}
