package app

import (
	"fmt"

	jobhandlers "github.com/clearlens/governance-backend/internal/jobs/handlers"
	jobrt "github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/temporalx/temporalworker"
)

// WireWorker assembles the handler registry and the Temporal worker runner.
// Called only by the worker binary; the API process never polls the queue.
func (a *App) WireWorker() (*temporalworker.Runner, error) {
	if a.Clients.Temporal == nil {
		return nil, fmt.Errorf("temporal is not configured; set TEMPORAL_ADDRESS")
	}

	registry := jobrt.NewRegistry()
	handlers := []jobrt.Handler{
		&jobhandlers.AssessmentHandler{
			Log:       a.Log,
			Fairness:  a.Services.Fairness,
			Diagnosis: a.Services.Diagnosis,
			Engine:    a.Services.Engine,
		},
		&jobhandlers.ReportHandler{
			Log:        a.Log,
			Cards:      a.Repos.ModelCard,
			Fairness:   a.Repos.Fairness,
			Diagnosis:  a.Repos.Diagnosis,
			Compliance: a.Repos.Compliance,
			Store:      a.Clients.Blob,
		},
		&jobhandlers.DataProcessingHandler{
			Log:       a.Log,
			Sources:   a.Services.DataSource,
			Validator: a.Services.Validator,
		},
		&jobhandlers.CleanupHandler{
			Log:   a.Log,
			Store: a.Clients.Blob,
		},
		jobhandlers.NewNotebookExecutionHandler(a.Log, a.Services.Notebooks),
		jobhandlers.NewModelTrainingHandler(a.Log, a.Services.Notebooks),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}

	return temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.Services.Job, registry)
}
