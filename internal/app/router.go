package app

import (
	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/server"
)

func wireRouter(log *logger.Logger, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:               log,
		HealthHandler:     handlerset.Health,
		JobHandler:        handlerset.Job,
		ModelCardHandler:  handlerset.ModelCard,
		AssessmentHandler: handlerset.Assessment,
		DataSourceHandler: handlerset.DataSource,
		ComplianceHandler: handlerset.Compliance,
		ReportHandler:     handlerset.Report,
		MonitorHandler:    handlerset.Monitor,
	})
}
