package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Page is the list envelope for every paginated endpoint.
type Page struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondPage(c *gin.Context, items any, total int64, skip, limit int) {
	if limit <= 0 {
		limit = 50
	}
	c.JSON(http.StatusOK, Page{
		Items: items,
		Total: total,
		Page:  skip/limit + 1,
		Size:  limit,
	})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service-layer error onto a status code by its
// kind. Services never pick status codes themselves, so this mapping is total.
func RespondServiceError(c *gin.Context, err error) {
	code := apierr.CodeOf(err)
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		RespondError(c, http.StatusBadRequest, code, err)
	case apierr.KindNotFound:
		RespondError(c, http.StatusNotFound, code, err)
	case apierr.KindAccessDenied:
		RespondError(c, http.StatusForbidden, code, err)
	case apierr.KindConflict:
		RespondError(c, http.StatusConflict, code, err)
	case apierr.KindUnavailable:
		RespondError(c, http.StatusBadGateway, code, err)
	default:
		RespondError(c, http.StatusInternalServerError, code, err)
	}
}
