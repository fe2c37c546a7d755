package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// POST /api/v1/model-cards/:id/evidence-pack
func (h *ReportHandler) SubmitEvidencePack(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.reports.SubmitEvidencePack(dbctx.New(c.Request.Context()), cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}
