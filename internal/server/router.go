package server

import (
	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/http/handlers"
	"github.com/clearlens/governance-backend/internal/http/middleware"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler     *handlers.HealthHandler
	JobHandler        *handlers.JobHandler
	ModelCardHandler  *handlers.ModelCardHandler
	AssessmentHandler *handlers.AssessmentHandler
	DataSourceHandler *handlers.DataSourceHandler
	ComplianceHandler *handlers.ComplianceHandler
	ReportHandler     *handlers.ReportHandler
	MonitorHandler    *handlers.MonitorHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.RequestLogger(cfg.Log))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)

	api := router.Group("/api/v1")

	// Jobs
	jobs := api.Group("/jobs")
	{
		jobs.POST("", cfg.JobHandler.SubmitJob)
		jobs.GET("", cfg.JobHandler.ListJobs)
		jobs.GET("/:id", cfg.JobHandler.GetJob)
		jobs.POST("/:id/cancel", cfg.JobHandler.CancelJob)
		jobs.POST("/:id/retry", cfg.JobHandler.RetryJob)
		jobs.PATCH("/:id/progress", cfg.JobHandler.UpdateProgress)
		jobs.GET("/:id/artifacts", cfg.JobHandler.ListArtifacts)
	}

	// Model cards
	cards := api.Group("/model-cards")
	{
		cards.POST("", cfg.ModelCardHandler.Create)
		cards.GET("", cfg.ModelCardHandler.List)
		cards.GET("/:id", cfg.ModelCardHandler.Get)
		cards.PATCH("/:id", cfg.ModelCardHandler.Update)
		cards.DELETE("/:id", cfg.ModelCardHandler.Delete)

		cards.POST("/:id/versions", cfg.ModelCardHandler.CreateVersion)
		cards.GET("/:id/versions", cfg.ModelCardHandler.ListVersions)
		cards.PUT("/:id/versions/:versionID/current", cfg.ModelCardHandler.SetCurrentVersion)

		cards.POST("/:id/fairness-metrics", cfg.ModelCardHandler.AddFairnessMetric)
		cards.GET("/:id/fairness-metrics", cfg.ModelCardHandler.ListFairnessMetrics)
		cards.POST("/:id/performance-metrics", cfg.ModelCardHandler.AddPerformanceMetric)
		cards.GET("/:id/performance-metrics", cfg.ModelCardHandler.ListPerformanceMetrics)
		cards.POST("/:id/impact-assessments", cfg.ModelCardHandler.AddImpactAssessment)
		cards.GET("/:id/impact-assessments", cfg.ModelCardHandler.ListImpactAssessments)
		cards.GET("/:id/audit-log", cfg.ModelCardHandler.AuditLog)

		cards.POST("/:id/compliance", cfg.ComplianceHandler.AttachToModelCard)
		cards.GET("/:id/compliance", cfg.ComplianceHandler.ListForModelCard)

		cards.POST("/:id/evidence-pack", cfg.ReportHandler.SubmitEvidencePack)
	}

	// Compliance frameworks
	frameworks := api.Group("/compliance-frameworks")
	{
		frameworks.POST("", cfg.ComplianceHandler.CreateFramework)
		frameworks.GET("", cfg.ComplianceHandler.ListFrameworks)
		frameworks.GET("/:id", cfg.ComplianceHandler.GetFramework)
		frameworks.PATCH("/:id", cfg.ComplianceHandler.UpdateFramework)
		frameworks.DELETE("/:id", cfg.ComplianceHandler.DeleteFramework)
	}
	api.PATCH("/model-compliance/:id/review", cfg.ComplianceHandler.Review)

	// Data ingestion
	sources := api.Group("/data-ingestion/sources")
	{
		sources.POST("", cfg.DataSourceHandler.Create)
		sources.GET("", cfg.DataSourceHandler.List)
		sources.GET("/:id", cfg.DataSourceHandler.Get)
		sources.PATCH("/:id", cfg.DataSourceHandler.Update)
		sources.DELETE("/:id", cfg.DataSourceHandler.Delete)

		sources.POST("/:id/schema-mappings", cfg.DataSourceHandler.AddSchemaMapping)
		sources.GET("/:id/schema-mappings", cfg.DataSourceHandler.ListSchemaMappings)
		sources.POST("/:id/validations", cfg.DataSourceHandler.AddValidation)
		sources.GET("/:id/validations", cfg.DataSourceHandler.ListValidations)
		sources.POST("/:id/protected-attributes", cfg.DataSourceHandler.AddProtectedAttribute)
		sources.GET("/:id/protected-attributes", cfg.DataSourceHandler.ListProtectedAttributes)
	}

	// Assessments
	fairness := api.Group("/assessments/fairness")
	{
		fairness.POST("", cfg.AssessmentHandler.CreateFairness)
		fairness.GET("", cfg.AssessmentHandler.ListFairness)
		fairness.GET("/:id", cfg.AssessmentHandler.GetFairness)
		fairness.POST("/:id/wizard/step", cfg.AssessmentHandler.FairnessWizardStep)
		fairness.POST("/:id/execute", cfg.AssessmentHandler.ExecuteFairness)
		fairness.GET("/:id/results", cfg.AssessmentHandler.FairnessResults)
	}
	diagnosis := api.Group("/assessments/diagnosis")
	{
		diagnosis.POST("", cfg.AssessmentHandler.CreateDiagnosis)
		diagnosis.GET("", cfg.AssessmentHandler.ListDiagnosis)
		diagnosis.GET("/:id", cfg.AssessmentHandler.GetDiagnosis)
		diagnosis.POST("/:id/execute", cfg.AssessmentHandler.ExecuteDiagnosis)
		diagnosis.GET("/:id/results", cfg.AssessmentHandler.DiagnosisResults)
		diagnosis.GET("/:id/drift", cfg.AssessmentHandler.DiagnosisDrift)
		diagnosis.GET("/:id/explainability", cfg.AssessmentHandler.DiagnosisExplainability)
	}

	// Monitoring
	monitoring := api.Group("/monitoring/models")
	{
		monitoring.GET("", cfg.MonitorHandler.List)
		monitoring.POST("/:id", cfg.MonitorHandler.Start)
		monitoring.DELETE("/:id", cfg.MonitorHandler.Stop)
		monitoring.GET("/:id", cfg.MonitorHandler.Status)
	}

	return router
}
