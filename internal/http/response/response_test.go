package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/platform/apierr"
)

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func TestRespondServiceErrorStatusByKind(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apierr.Validation("missing_name", "missing name"), http.StatusBadRequest, "missing_name"},
		{apierr.NotFound("job_not_found", "job not found"), http.StatusNotFound, "job_not_found"},
		{apierr.AccessDenied("access_denied", "nope"), http.StatusForbidden, "access_denied"},
		{apierr.Conflict("invalid_status_transition", "bad move"), http.StatusConflict, "invalid_status_transition"},
		{apierr.Unavailable("dispatch_failed", errors.New("queue down")), http.StatusBadGateway, "dispatch_failed"},
		{apierr.Internal("boom", errors.New("boom")), http.StatusInternalServerError, "boom"},
		{errors.New("untyped"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		w := record(func(c *gin.Context) { RespondServiceError(c, tc.err) })
		if w.Code != tc.status {
			t.Errorf("%v: status want=%d got=%d", tc.err, tc.status, w.Code)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if env.Error.Code != tc.code {
			t.Errorf("%v: code want=%q got=%q", tc.err, tc.code, env.Error.Code)
		}
		if env.Error.Message == "" {
			t.Errorf("%v: empty message", tc.err)
		}
	}
}

func TestRespondPageEnvelope(t *testing.T) {
	w := record(func(c *gin.Context) {
		RespondPage(c, []string{"a", "b"}, 12, 10, 5)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	var page struct {
		Items []string `json:"items"`
		Total int64    `json:"total"`
		Page  int      `json:"page"`
		Size  int      `json:"size"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.Total != 12 || page.Page != 3 || page.Size != 5 || len(page.Items) != 2 {
		t.Fatalf("envelope: got=%+v", page)
	}
}

func TestRespondPageDefaultsLimit(t *testing.T) {
	w := record(func(c *gin.Context) {
		RespondPage(c, []int{}, 0, 0, 0)
	})
	var page Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.Size != 50 || page.Page != 1 {
		t.Fatalf("defaults: got size=%d page=%d", page.Size, page.Page)
	}
}
