package app

import (
	"github.com/clearlens/governance-backend/internal/http/handlers"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Job        *handlers.JobHandler
	ModelCard  *handlers.ModelCardHandler
	Assessment *handlers.AssessmentHandler
	DataSource *handlers.DataSourceHandler
	Compliance *handlers.ComplianceHandler
	Report     *handlers.ReportHandler
	Monitor    *handlers.MonitorHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     handlers.NewHealthHandler(),
		Job:        handlers.NewJobHandler(serviceset.Job),
		ModelCard:  handlers.NewModelCardHandler(serviceset.ModelCard),
		Assessment: handlers.NewAssessmentHandler(serviceset.Fairness, serviceset.Diagnosis),
		DataSource: handlers.NewDataSourceHandler(serviceset.DataSource),
		Compliance: handlers.NewComplianceHandler(serviceset.Compliance),
		Report:     handlers.NewReportHandler(serviceset.Report),
		Monitor:    handlers.NewMonitorHandler(serviceset.Monitor),
	}
}
