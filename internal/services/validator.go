package services

import (
	"context"
	"encoding/json"

	"github.com/clearlens/governance-backend/internal/domain"
)

type ValidationFinding struct {
	RuleName string
	Passed   bool
	Detail   map[string]any
}

// DataValidator inspects a registered data source through its connector. The
// connector plumbing itself lives outside this backend.
type DataValidator interface {
	Validate(ctx context.Context, ds *domain.DataSource) ([]ValidationFinding, error)
}

// staticDataValidator checks only what is verifiable without reaching the
// remote system: the connection config parses and carries the fields the
// source type requires. Default wiring when no connector endpoint is set.
type staticDataValidator struct{}

func NewStaticDataValidator() DataValidator { return staticDataValidator{} }

var requiredConnectionFields = map[string][]string{
	"s3":         {"bucket", "region"},
	"azure_blob": {"account", "container"},
	"sharepoint": {"site_url"},
	"api":        {"endpoint"},
	"upload":     {},
}

func (staticDataValidator) Validate(_ context.Context, ds *domain.DataSource) ([]ValidationFinding, error) {
	var cfg map[string]any
	parseOK := true
	if len(ds.ConnectionConfig) > 0 {
		if err := json.Unmarshal(ds.ConnectionConfig, &cfg); err != nil {
			parseOK = false
		}
	}
	findings := []ValidationFinding{{
		RuleName: "connection_config_parses",
		Passed:   parseOK,
	}}

	required := requiredConnectionFields[ds.SourceType]
	missing := []string{}
	for _, field := range required {
		if v, ok := cfg[field]; !ok || v == nil || v == "" {
			missing = append(missing, field)
		}
	}
	findings = append(findings, ValidationFinding{
		RuleName: "required_fields_present",
		Passed:   parseOK && len(missing) == 0,
		Detail:   map[string]any{"missing": missing},
	})
	return findings, nil
}
