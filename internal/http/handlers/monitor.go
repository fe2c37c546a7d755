package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/services"
)

type MonitorHandler struct {
	monitors services.MonitorService
}

func NewMonitorHandler(monitors services.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitors: monitors}
}

type startMonitorRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// POST /api/v1/monitoring/models/:id
func (h *MonitorHandler) Start(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req startMonitorRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	interval := time.Duration(req.IntervalSeconds) * time.Second
	status, err := h.monitors.Start(c.Request.Context(), cardID, interval)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"monitor": status})
}

// DELETE /api/v1/monitoring/models/:id
func (h *MonitorHandler) Stop(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.monitors.Stop(cardID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stopped": true})
}

// GET /api/v1/monitoring/models/:id
func (h *MonitorHandler) Status(c *gin.Context) {
	cardID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	status, err := h.monitors.Status(cardID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"monitor": status})
}

// GET /api/v1/monitoring/models
func (h *MonitorHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"monitors": h.monitors.List()})
}
