package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/platform/ctxutil"
)

// AttachRequestContext lifts the acting principal from gateway headers into
// the request context. The headers are trusted as-is; verifying them is the
// gateway's job, not this backend's.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{
			RequestID: c.GetHeader("X-Request-ID"),
		}
		if rd.RequestID == "" {
			rd.RequestID = uuid.NewString()
		}
		if v, err := uuid.Parse(c.GetHeader("X-User-ID")); err == nil {
			rd.UserID = v
		}
		if v, err := uuid.Parse(c.GetHeader("X-Organization-ID")); err == nil {
			rd.OrganizationID = v
		}

		ctx := ctxutil.WithRequestData(c.Request.Context(), rd)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Request-ID", rd.RequestID)
		c.Next()
	}
}
