package app

import (
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/platform/envutil"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/services"
)

type Services struct {
	Job        services.JobService
	ModelCard  services.ModelCardService
	DataSource services.DataSourceService
	Compliance services.ComplianceService
	Fairness   services.FairnessService
	Diagnosis  services.DiagnosisService
	Report     services.ReportService
	Monitor    services.MonitorService

	// External capabilities; static defaults until real endpoints exist.
	Engine    services.MetricsEngine
	Notebooks services.NotebookRunner
	Validator services.DataValidator
}

func wireServices(db *gorm.DB, log *logger.Logger, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	var runner services.TaskRunner
	if clients.Temporal != nil {
		r, err := services.NewTemporalRunner(log, clients.Temporal, envutil.String("TEMPORAL_TASK_QUEUE", "governance"))
		if err != nil {
			return Services{}, err
		}
		runner = r
	} else {
		log.Warn("Temporal not configured; job dispatch unavailable")
	}

	jobSvc := services.NewJobService(db, log, reposet.Job, runner, clients.Blob, clients.Bus)

	return Services{
		Job:        jobSvc,
		ModelCard:  services.NewModelCardService(db, log, reposet.ModelCard, reposet.AuditLog),
		DataSource: services.NewDataSourceService(db, log, reposet.DataSource),
		Compliance: services.NewComplianceService(db, log, reposet.Compliance, reposet.ModelCard, reposet.AuditLog),
		Fairness:   services.NewFairnessService(db, log, reposet.Fairness, reposet.ModelCard, jobSvc),
		Diagnosis:  services.NewDiagnosisService(db, log, reposet.Diagnosis, reposet.ModelCard, jobSvc),
		Report:     services.NewReportService(log, reposet.ModelCard, jobSvc),
		Monitor:    services.NewMonitorService(db, log, reposet.ModelCard, reposet.Diagnosis, services.NewStaticMetricsSource()),

		Engine:    services.NewStaticMetricsEngine(),
		Notebooks: services.NewStaticNotebookRunner(),
		Validator: services.NewStaticDataValidator(),
	}, nil
}
