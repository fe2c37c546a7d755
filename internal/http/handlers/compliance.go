package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/services"
)

type ComplianceHandler struct {
	compliance services.ComplianceService
}

func NewComplianceHandler(compliance services.ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{compliance: compliance}
}

type createFrameworkRequest struct {
	Name         string         `json:"name" binding:"required"`
	Version      string         `json:"version" binding:"required"`
	Description  string         `json:"description"`
	Requirements map[string]any `json:"requirements"`
}

// POST /api/v1/compliance-frameworks
func (h *ComplianceHandler) CreateFramework(c *gin.Context) {
	var req createFrameworkRequest
	if !bindJSON(c, &req) {
		return
	}
	fw, err := h.compliance.CreateFramework(dbctx.New(c.Request.Context()), services.CreateFrameworkInput{
		Name:         req.Name,
		Version:      req.Version,
		Description:  req.Description,
		Requirements: req.Requirements,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"framework": fw})
}

// GET /api/v1/compliance-frameworks
func (h *ComplianceHandler) ListFrameworks(c *gin.Context) {
	skip, limit := parsePagination(c)
	items, total, err := h.compliance.ListFrameworks(dbctx.New(c.Request.Context()), skip, limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, items, total, skip, limit)
}

// GET /api/v1/compliance-frameworks/:id
func (h *ComplianceHandler) GetFramework(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	fw, err := h.compliance.GetFramework(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"framework": fw})
}

// PATCH /api/v1/compliance-frameworks/:id
func (h *ComplianceHandler) UpdateFramework(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var updates map[string]any
	if !bindJSON(c, &updates) {
		return
	}
	fw, err := h.compliance.UpdateFramework(dbctx.New(c.Request.Context()), id, updates)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"framework": fw})
}

// DELETE /api/v1/compliance-frameworks/:id
func (h *ComplianceHandler) DeleteFramework(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.compliance.DeleteFramework(dbctx.New(c.Request.Context()), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

type attachComplianceRequest struct {
	FrameworkID string         `json:"framework_id" binding:"required"`
	Status      string         `json:"status"`
	Evidence    map[string]any `json:"evidence"`
}

// POST /api/v1/model-cards/:id/compliance
func (h *ComplianceHandler) AttachToModelCard(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req attachComplianceRequest
	if !bindJSON(c, &req) {
		return
	}
	fwID, err := uuid.Parse(req.FrameworkID)
	if err != nil {
		response.RespondError(c, 400, "invalid_framework_id", err)
		return
	}
	mc, err := h.compliance.AttachToModelCard(dbctx.New(c.Request.Context()), cardID, services.AttachComplianceInput{
		FrameworkID: fwID,
		Status:      req.Status,
		Evidence:    req.Evidence,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"compliance": mc})
}

// GET /api/v1/model-cards/:id/compliance
func (h *ComplianceHandler) ListForModelCard(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.compliance.ListForModelCard(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"compliance": items})
}

type reviewComplianceRequest struct {
	Status   string         `json:"status" binding:"required"`
	Evidence map[string]any `json:"evidence"`
}

// PATCH /api/v1/model-compliance/:id/review
func (h *ComplianceHandler) Review(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req reviewComplianceRequest
	if !bindJSON(c, &req) {
		return
	}
	mc, err := h.compliance.Review(dbctx.New(c.Request.Context()), id, req.Status, req.Evidence)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"compliance": mc})
}
