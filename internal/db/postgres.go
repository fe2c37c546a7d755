package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/envutil"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "governance")
	sslmode := envutil.String("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)

	serviceLog.Info("Connecting to Postgres...", "host", host, "database", name)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

// Models lists every persisted entity in migration order (parents before
// children).
func Models() []interface{} {
	return []interface{}{
		&domain.ModelCard{},
		&domain.ModelVersion{},
		&domain.FairnessMetric{},
		&domain.PerformanceMetric{},
		&domain.ImpactAssessment{},
		&domain.ModelAuditLog{},
		&domain.ComplianceFramework{},
		&domain.ModelCompliance{},
		&domain.DataSource{},
		&domain.SchemaMapping{},
		&domain.DataValidation{},
		&domain.ProtectedAttributeConfig{},
		&domain.Job{},
		&domain.FairnessAssessment{},
		&domain.FairnessAssessmentMetric{},
		&domain.FairnessThreshold{},
		&domain.DiagnosisAssessment{},
		&domain.DiagnosisMetric{},
		&domain.DriftDetection{},
		&domain.ExplainabilityResult{},
	}
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(Models()...); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
