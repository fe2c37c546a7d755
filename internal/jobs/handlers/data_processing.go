package handlers

import (
	"fmt"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/services"
)

// DataProcessingHandler validates a registered data source: it runs the
// configured rule set through the connector-facing validator and records one
// DataValidation row per rule.
type DataProcessingHandler struct {
	Log       *logger.Logger
	Sources   services.DataSourceService
	Validator services.DataValidator
}

func (h *DataProcessingHandler) Type() string { return string(domain.JobTypeDataProcessing) }

func (h *DataProcessingHandler) Run(jc *runtime.Context) error {
	sourceID, ok := jc.ParamUUID("data_source_id")
	if !ok {
		return fmt.Errorf("missing data_source_id parameter")
	}
	dbc := dbctx.New(jc.Ctx)

	ds, err := h.Sources.Get(dbc, sourceID)
	if err != nil {
		return err
	}
	jc.SetProgress(10)

	findings, err := h.Validator.Validate(jc.Ctx, ds)
	if err != nil {
		return fmt.Errorf("validate data source %s: %w", sourceID, err)
	}

	total := len(findings)
	for i, f := range findings {
		if _, err := h.Sources.AddValidation(dbc, sourceID, services.AddValidationInput{
			RuleName: f.RuleName,
			Passed:   f.Passed,
			Detail:   f.Detail,
		}); err != nil {
			return err
		}
		if total > 0 {
			jc.SetProgress(10 + (80*(i+1))/total)
		}
	}

	jc.Succeed(nil, map[string]any{"rules_checked": total})
	return nil
}
