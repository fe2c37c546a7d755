package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
	"github.com/clearlens/governance-backend/internal/services"
)

type ModelCardHandler struct {
	cards services.ModelCardService
}

func NewModelCardHandler(cards services.ModelCardService) *ModelCardHandler {
	return &ModelCardHandler{cards: cards}
}

type createModelCardRequest struct {
	Name         string         `json:"name" binding:"required"`
	Description  string         `json:"description"`
	ModelType    string         `json:"model_type"`
	RiskLevel    string         `json:"risk_level"`
	IntendedUse  string         `json:"intended_use"`
	Limitations  string         `json:"limitations"`
	TrainingData map[string]any `json:"training_data"`
	Tags         []string       `json:"tags"`
}

// POST /api/v1/model-cards
func (h *ModelCardHandler) Create(c *gin.Context) {
	var req createModelCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.cards.Create(dbctx.New(c.Request.Context()), services.CreateModelCardInput{
		Name:         req.Name,
		Description:  req.Description,
		ModelType:    req.ModelType,
		RiskLevel:    req.RiskLevel,
		IntendedUse:  req.IntendedUse,
		Limitations:  req.Limitations,
		TrainingData: req.TrainingData,
		Tags:         req.Tags,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"model_card": card})
}

// GET /api/v1/model-cards
func (h *ModelCardHandler) List(c *gin.Context) {
	skip, limit := parsePagination(c)
	filter := repos.ModelCardFilter{
		Status:    c.Query("status"),
		RiskLevel: c.Query("risk_level"),
		Skip:      skip,
		Limit:     limit,
	}
	cards, total, err := h.cards.List(dbctx.New(c.Request.Context()), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, cards, total, skip, limit)
}

// GET /api/v1/model-cards/:id
func (h *ModelCardHandler) Get(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	card, err := h.cards.Get(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model_card": card})
}

// PATCH /api/v1/model-cards/:id
func (h *ModelCardHandler) Update(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var updates map[string]any
	if !bindJSON(c, &updates) {
		return
	}
	card, err := h.cards.Update(dbctx.New(c.Request.Context()), cardID, updates)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model_card": card})
}

// DELETE /api/v1/model-cards/:id
func (h *ModelCardHandler) Delete(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.cards.Delete(dbctx.New(c.Request.Context()), cardID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

type createVersionRequest struct {
	Version     string         `json:"version" binding:"required"`
	ArtifactURI string         `json:"artifact_uri"`
	Notes       string         `json:"notes"`
	Metadata    map[string]any `json:"metadata"`
	MakeCurrent bool           `json:"make_current"`
}

// POST /api/v1/model-cards/:id/versions
func (h *ModelCardHandler) CreateVersion(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req createVersionRequest
	if !bindJSON(c, &req) {
		return
	}
	version, err := h.cards.CreateVersion(dbctx.New(c.Request.Context()), cardID, services.CreateModelVersionInput{
		Version:     req.Version,
		ArtifactURI: req.ArtifactURI,
		Notes:       req.Notes,
		Metadata:    req.Metadata,
		MakeCurrent: req.MakeCurrent,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"version": version})
}

// GET /api/v1/model-cards/:id/versions
func (h *ModelCardHandler) ListVersions(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	versions, err := h.cards.ListVersions(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

// PUT /api/v1/model-cards/:id/versions/:versionID/current
func (h *ModelCardHandler) SetCurrentVersion(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	versionID, ok := parseUUIDParam(c, "versionID")
	if !ok {
		return
	}
	version, err := h.cards.SetCurrentVersion(dbctx.New(c.Request.Context()), cardID, versionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": version})
}

type addFairnessMetricRequest struct {
	MetricName         string  `json:"metric_name" binding:"required"`
	ProtectedAttribute string  `json:"protected_attribute" binding:"required"`
	Value              float64 `json:"value"`
	Threshold          float64 `json:"threshold"`
	Passed             bool    `json:"passed"`
}

// POST /api/v1/model-cards/:id/fairness-metrics
func (h *ModelCardHandler) AddFairnessMetric(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req addFairnessMetricRequest
	if !bindJSON(c, &req) {
		return
	}
	metric, err := h.cards.AddFairnessMetric(dbctx.New(c.Request.Context()), cardID, services.AddFairnessMetricInput{
		MetricName:         req.MetricName,
		ProtectedAttribute: req.ProtectedAttribute,
		Value:              req.Value,
		Threshold:          req.Threshold,
		Passed:             req.Passed,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"metric": metric})
}

// GET /api/v1/model-cards/:id/fairness-metrics
func (h *ModelCardHandler) ListFairnessMetrics(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	metrics, err := h.cards.ListFairnessMetrics(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"metrics": metrics})
}

type addPerformanceMetricRequest struct {
	MetricName string  `json:"metric_name" binding:"required"`
	Value      float64 `json:"value"`
	Dataset    string  `json:"dataset"`
}

// POST /api/v1/model-cards/:id/performance-metrics
func (h *ModelCardHandler) AddPerformanceMetric(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req addPerformanceMetricRequest
	if !bindJSON(c, &req) {
		return
	}
	metric, err := h.cards.AddPerformanceMetric(dbctx.New(c.Request.Context()), cardID, services.AddPerformanceMetricInput{
		MetricName: req.MetricName,
		Value:      req.Value,
		Dataset:    req.Dataset,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"metric": metric})
}

// GET /api/v1/model-cards/:id/performance-metrics
func (h *ModelCardHandler) ListPerformanceMetrics(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	metrics, err := h.cards.ListPerformanceMetrics(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"metrics": metrics})
}

type addImpactAssessmentRequest struct {
	Category    string   `json:"category" binding:"required"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Mitigations []string `json:"mitigations"`
}

// POST /api/v1/model-cards/:id/impact-assessments
func (h *ModelCardHandler) AddImpactAssessment(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req addImpactAssessmentRequest
	if !bindJSON(c, &req) {
		return
	}
	ia, err := h.cards.AddImpactAssessment(dbctx.New(c.Request.Context()), cardID, services.AddImpactAssessmentInput{
		Category:    req.Category,
		Severity:    req.Severity,
		Description: req.Description,
		Mitigations: req.Mitigations,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"impact_assessment": ia})
}

// GET /api/v1/model-cards/:id/impact-assessments
func (h *ModelCardHandler) ListImpactAssessments(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.cards.ListImpactAssessments(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"impact_assessments": items})
}

// GET /api/v1/model-cards/:id/audit-log
func (h *ModelCardHandler) AuditLog(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	skip, limit := parsePagination(c)
	entries, total, err := h.cards.AuditLog(dbctx.New(c.Request.Context()), cardID, skip, limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, entries, total, skip, limit)
}
