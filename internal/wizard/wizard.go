package wizard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

// The configuration wizard walks a fixed sequence of steps, each a concrete
// state type carrying everything collected so far. Advance is the only way to
// move forward; Back is the only way to move backward. A Completed state
// yields the frozen Config and accepts no further input.

// Threshold bounds a metric value; a metric passes when its value falls
// inside [Lower, Upper].
type Threshold struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Config is the immutable outcome of a finished wizard run.
type Config struct {
	TargetColumn        string               `json:"target_column"`
	PositiveLabel       string               `json:"positive_label"`
	ProtectedAttributes []string             `json:"protected_attributes"`
	Metrics             []string             `json:"metrics"`
	Thresholds          map[string]Threshold `json:"thresholds"`
}

// KnownMetrics are the fairness metrics the wizard lets a user select.
var KnownMetrics = []string{
	"demographic_parity",
	"disparate_impact",
	"equal_opportunity",
	"equalized_odds",
	"predictive_parity",
}

func knownMetric(name string) bool {
	for _, m := range KnownMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// Input carries the fields for the current step; fields for other steps are
// ignored.
type Input struct {
	TargetColumn        string               `json:"target_column,omitempty"`
	PositiveLabel       string               `json:"positive_label,omitempty"`
	ProtectedAttributes []string             `json:"protected_attributes,omitempty"`
	Metrics             []string             `json:"metrics,omitempty"`
	Thresholds          map[string]Threshold `json:"thresholds,omitempty"`
	Confirm             bool                 `json:"confirm,omitempty"`
}

type State interface {
	Step() string
}

type TargetSelection struct{}

type ProtectedAttributeSelection struct {
	TargetColumn  string `json:"target_column"`
	PositiveLabel string `json:"positive_label"`
}

type MetricSelection struct {
	TargetColumn        string   `json:"target_column"`
	PositiveLabel       string   `json:"positive_label"`
	ProtectedAttributes []string `json:"protected_attributes"`
}

type ThresholdSelection struct {
	TargetColumn        string   `json:"target_column"`
	PositiveLabel       string   `json:"positive_label"`
	ProtectedAttributes []string `json:"protected_attributes"`
	Metrics             []string `json:"metrics"`
}

type Review struct {
	Config Config `json:"config"`
}

type Completed struct {
	Config Config `json:"config"`
}

const (
	StepTargetSelection     = "target_selection"
	StepProtectedAttributes = "protected_attributes"
	StepMetricSelection     = "metric_selection"
	StepThresholds          = "thresholds"
	StepReview              = "review"
	StepCompleted           = "completed"
)

func (TargetSelection) Step() string             { return StepTargetSelection }
func (ProtectedAttributeSelection) Step() string { return StepProtectedAttributes }
func (MetricSelection) Step() string             { return StepMetricSelection }
func (ThresholdSelection) Step() string          { return StepThresholds }
func (Review) Step() string                      { return StepReview }
func (Completed) Step() string                   { return StepCompleted }

// Start returns the initial wizard state.
func Start() State { return TargetSelection{} }

// Advance applies one step's input and returns the next state. Invalid input
// returns a Validation error naming the offending field and leaves the state
// unchanged.
func Advance(s State, in Input) (State, error) {
	switch cur := s.(type) {
	case TargetSelection:
		target := strings.TrimSpace(in.TargetColumn)
		if target == "" {
			return s, apierr.Validation("wizard_invalid_input", "target_column: must not be empty")
		}
		label := strings.TrimSpace(in.PositiveLabel)
		if label == "" {
			return s, apierr.Validation("wizard_invalid_input", "positive_label: must not be empty")
		}
		return ProtectedAttributeSelection{TargetColumn: target, PositiveLabel: label}, nil

	case ProtectedAttributeSelection:
		attrs := dedupe(in.ProtectedAttributes)
		if len(attrs) == 0 {
			return s, apierr.Validation("wizard_invalid_input", "protected_attributes: select at least one attribute")
		}
		for _, a := range attrs {
			if a == cur.TargetColumn {
				return s, apierr.Validation("wizard_invalid_input", "protected_attributes: %q is the target column", a)
			}
		}
		return MetricSelection{
			TargetColumn:        cur.TargetColumn,
			PositiveLabel:       cur.PositiveLabel,
			ProtectedAttributes: attrs,
		}, nil

	case MetricSelection:
		metrics := dedupe(in.Metrics)
		if len(metrics) == 0 {
			return s, apierr.Validation("wizard_invalid_input", "metrics: select at least one metric")
		}
		for _, m := range metrics {
			if !knownMetric(m) {
				return s, apierr.Validation("wizard_invalid_input", "metrics: unknown metric %q", m)
			}
		}
		return ThresholdSelection{
			TargetColumn:        cur.TargetColumn,
			PositiveLabel:       cur.PositiveLabel,
			ProtectedAttributes: cur.ProtectedAttributes,
			Metrics:             metrics,
		}, nil

	case ThresholdSelection:
		thresholds := in.Thresholds
		if thresholds == nil {
			thresholds = map[string]Threshold{}
		}
		for name, t := range thresholds {
			if !contains(cur.Metrics, name) {
				return s, apierr.Validation("wizard_invalid_input", "thresholds: %q was not selected as a metric", name)
			}
			if t.Lower > t.Upper {
				return s, apierr.Validation("wizard_invalid_input", "thresholds: %q lower bound %v exceeds upper bound %v", name, t.Lower, t.Upper)
			}
		}
		return Review{Config: Config{
			TargetColumn:        cur.TargetColumn,
			PositiveLabel:       cur.PositiveLabel,
			ProtectedAttributes: cur.ProtectedAttributes,
			Metrics:             cur.Metrics,
			Thresholds:          thresholds,
		}}, nil

	case Review:
		if !in.Confirm {
			return s, apierr.Validation("wizard_invalid_input", "confirm: must be true to finish the wizard")
		}
		return Completed{Config: cur.Config}, nil

	case Completed:
		return s, apierr.Validation("wizard_already_completed", "wizard is already completed")

	default:
		return s, apierr.Validation("wizard_unknown_state", "unknown wizard state %q", s.Step())
	}
}

// Back returns to the previous step, discarding only that step's collected
// input. Completed runs cannot be reopened.
func Back(s State) (State, error) {
	switch cur := s.(type) {
	case TargetSelection:
		return s, apierr.Validation("wizard_at_first_step", "already at the first step")
	case ProtectedAttributeSelection:
		return TargetSelection{}, nil
	case MetricSelection:
		return ProtectedAttributeSelection{TargetColumn: cur.TargetColumn, PositiveLabel: cur.PositiveLabel}, nil
	case ThresholdSelection:
		return MetricSelection{
			TargetColumn:        cur.TargetColumn,
			PositiveLabel:       cur.PositiveLabel,
			ProtectedAttributes: cur.ProtectedAttributes,
		}, nil
	case Review:
		return ThresholdSelection{
			TargetColumn:        cur.Config.TargetColumn,
			PositiveLabel:       cur.Config.PositiveLabel,
			ProtectedAttributes: cur.Config.ProtectedAttributes,
			Metrics:             cur.Config.Metrics,
		}, nil
	case Completed:
		return s, apierr.Validation("wizard_already_completed", "wizard is already completed")
	default:
		return s, apierr.Validation("wizard_unknown_state", "unknown wizard state %q", s.Step())
	}
}

type envelope struct {
	Step string          `json:"step"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal serializes a state for storage in the assessment's wizard_state
// column.
func Marshal(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal wizard state: %w", err)
	}
	return json.Marshal(envelope{Step: s.Step(), Data: data})
}

// Unmarshal restores a stored state. Empty input yields the initial state.
func Unmarshal(raw []byte) (State, error) {
	if len(raw) == 0 {
		return Start(), nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode wizard state: %w", err)
	}
	var (
		s   State
		err error
	)
	switch env.Step {
	case "", StepTargetSelection:
		return TargetSelection{}, nil
	case StepProtectedAttributes:
		var v ProtectedAttributeSelection
		err = json.Unmarshal(env.Data, &v)
		s = v
	case StepMetricSelection:
		var v MetricSelection
		err = json.Unmarshal(env.Data, &v)
		s = v
	case StepThresholds:
		var v ThresholdSelection
		err = json.Unmarshal(env.Data, &v)
		s = v
	case StepReview:
		var v Review
		err = json.Unmarshal(env.Data, &v)
		s = v
	case StepCompleted:
		var v Completed
		err = json.Unmarshal(env.Data, &v)
		s = v
	default:
		return nil, fmt.Errorf("unknown wizard step %q", env.Step)
	}
	if err != nil {
		return nil, fmt.Errorf("decode wizard step %q: %w", env.Step, err)
	}
	return s, nil
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
