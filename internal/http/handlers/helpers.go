package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

// parseUUIDParam responds 400 itself so handlers can bail with a bare return.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondServiceError(c, apierr.Validation("invalid_"+name, "invalid %s: %q", name, c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.Query("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = 50
	}
	return skip, limit
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondServiceError(c, apierr.Validation("invalid_request_body", "invalid request body: %v", err))
		return false
	}
	return true
}
