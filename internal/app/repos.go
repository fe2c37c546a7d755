package app

import (
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

type Repos struct {
	Job        repos.JobRepo
	ModelCard  repos.ModelCardRepo
	AuditLog   repos.AuditLogRepo
	Compliance repos.ComplianceRepo
	DataSource repos.DataSourceRepo
	Fairness   repos.FairnessAssessmentRepo
	Diagnosis  repos.DiagnosisAssessmentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Job:        repos.NewJobRepo(db, log),
		ModelCard:  repos.NewModelCardRepo(db, log),
		AuditLog:   repos.NewAuditLogRepo(db, log),
		Compliance: repos.NewComplianceRepo(db, log),
		DataSource: repos.NewDataSourceRepo(db, log),
		Fairness:   repos.NewFairnessAssessmentRepo(db, log),
		Diagnosis:  repos.NewDiagnosisAssessmentRepo(db, log),
	}
}
