package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
	"github.com/clearlens/governance-backend/internal/services"
	"github.com/clearlens/governance-backend/internal/wizard"
)

type AssessmentHandler struct {
	fairness  services.FairnessService
	diagnosis services.DiagnosisService
}

func NewAssessmentHandler(fairness services.FairnessService, diagnosis services.DiagnosisService) *AssessmentHandler {
	return &AssessmentHandler{fairness: fairness, diagnosis: diagnosis}
}

func assessmentFilter(c *gin.Context) (repos.AssessmentFilter, int, int) {
	skip, limit := parsePagination(c)
	filter := repos.AssessmentFilter{
		Status: domain.AssessmentStatus(c.Query("status")),
		Skip:   skip,
		Limit:  limit,
	}
	if v, err := uuid.Parse(c.Query("model_card_id")); err == nil {
		filter.ModelCardID = v
	}
	return filter, skip, limit
}

type createFairnessRequest struct {
	Name        string `json:"name" binding:"required"`
	ModelCardID string `json:"model_card_id" binding:"required"`
	DataRef     string `json:"data_ref"`
}

// POST /api/v1/assessments/fairness
func (h *AssessmentHandler) CreateFairness(c *gin.Context) {
	var req createFairnessRequest
	if !bindJSON(c, &req) {
		return
	}
	cardID, err := uuid.Parse(req.ModelCardID)
	if err != nil {
		response.RespondError(c, 400, "invalid_model_card_id", err)
		return
	}
	a, err := h.fairness.Create(dbctx.New(c.Request.Context()), services.CreateFairnessAssessmentInput{
		Name:        req.Name,
		ModelCardID: cardID,
		DataRef:     req.DataRef,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"assessment": a})
}

// GET /api/v1/assessments/fairness
func (h *AssessmentHandler) ListFairness(c *gin.Context) {
	filter, skip, limit := assessmentFilter(c)
	items, total, err := h.fairness.List(dbctx.New(c.Request.Context()), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, items, total, skip, limit)
}

// GET /api/v1/assessments/fairness/:id
func (h *AssessmentHandler) GetFairness(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	a, err := h.fairness.Get(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a})
}

type wizardStepRequest struct {
	Direction string       `json:"direction"`
	Input     wizard.Input `json:"input"`
}

// POST /api/v1/assessments/fairness/:id/wizard/step
func (h *AssessmentHandler) FairnessWizardStep(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req wizardStepRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		st  wizard.State
		a   *domain.FairnessAssessment
		err error
	)
	if req.Direction == "back" {
		st, a, err = h.fairness.RewindWizard(dbctx.New(c.Request.Context()), id)
	} else {
		st, a, err = h.fairness.AdvanceWizard(dbctx.New(c.Request.Context()), id, req.Input)
	}
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"step": st.Step(), "assessment": a})
}

// POST /api/v1/assessments/fairness/:id/execute
func (h *AssessmentHandler) ExecuteFairness(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	a, job, err := h.fairness.Execute(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a, "job": job})
}

// GET /api/v1/assessments/fairness/:id/results
func (h *AssessmentHandler) FairnessResults(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.fairness.Results(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

type createDiagnosisRequest struct {
	Name        string         `json:"name" binding:"required"`
	ModelCardID string         `json:"model_card_id" binding:"required"`
	Config      map[string]any `json:"config"`
}

// POST /api/v1/assessments/diagnosis
func (h *AssessmentHandler) CreateDiagnosis(c *gin.Context) {
	var req createDiagnosisRequest
	if !bindJSON(c, &req) {
		return
	}
	cardID, err := uuid.Parse(req.ModelCardID)
	if err != nil {
		response.RespondError(c, 400, "invalid_model_card_id", err)
		return
	}
	a, err := h.diagnosis.Create(dbctx.New(c.Request.Context()), services.CreateDiagnosisAssessmentInput{
		Name:        req.Name,
		ModelCardID: cardID,
		Config:      req.Config,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"assessment": a})
}

// GET /api/v1/assessments/diagnosis
func (h *AssessmentHandler) ListDiagnosis(c *gin.Context) {
	filter, skip, limit := assessmentFilter(c)
	items, total, err := h.diagnosis.List(dbctx.New(c.Request.Context()), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, items, total, skip, limit)
}

// GET /api/v1/assessments/diagnosis/:id
func (h *AssessmentHandler) GetDiagnosis(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	a, err := h.diagnosis.Get(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a})
}

// POST /api/v1/assessments/diagnosis/:id/execute
func (h *AssessmentHandler) ExecuteDiagnosis(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	a, job, err := h.diagnosis.Execute(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a, "job": job})
}

// GET /api/v1/assessments/diagnosis/:id/results
func (h *AssessmentHandler) DiagnosisResults(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.diagnosis.Results(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/v1/assessments/diagnosis/:id/drift
func (h *AssessmentHandler) DiagnosisDrift(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.diagnosis.Results(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"drift": res.Drift})
}

// GET /api/v1/assessments/diagnosis/:id/explainability
func (h *AssessmentHandler) DiagnosisExplainability(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.diagnosis.Results(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"explainability": res.Explainability})
}
