package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"telehealth/internal/apperr"
	"telehealth/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	upstream := apperr.UpstreamResponse("daily", http.StatusForbidden, []byte(`{"info":"nope"}`))
	cases := []struct {
		name   string
		err    error
		expose bool
		status int
		msg    string
	}{
		{"validation", apperr.Validation("message is required"), false, http.StatusBadRequest, "message is required"},
		{"auth", apperr.ErrInvalidCredentials, false, http.StatusUnauthorized, "invalid credentials"},
		{"forbidden", apperr.Forbidden("no"), false, http.StatusForbidden, "no"},
		{"not found", apperr.NotFound("consultation %d not found", 3), false, http.StatusNotFound, "consultation 3 not found"},
		{"transition", apperr.InvalidTransition(&models.TransitionError{From: models.StatusPending, To: models.StatusCompleted}),
			false, http.StatusConflict, "invalid status transition: cannot move consultation from pending to completed"},
		{"persistence", apperr.Persistence(errors.New("connection refused"), "could not save"), false,
			http.StatusInternalServerError, "database error: connection refused"},
		{"plain", errors.New("boom"), false, http.StatusInternalServerError, "internal server error"},
		{"upstream hidden", upstream, false, http.StatusBadGateway, "daily returned status 403"},
		{"upstream exposed", upstream, true, http.StatusBadGateway, "daily returned status 403"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondError(c, tc.err, tc.expose)

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			var body struct {
				Error    string `json:"error"`
				Upstream *struct {
					Status int             `json:"status"`
					Body   json.RawMessage `json:"body"`
				} `json:"upstream"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.msg {
				t.Fatalf("error = %q, want %q", body.Error, tc.msg)
			}
			if (body.Upstream != nil) != tc.expose {
				t.Fatalf("upstream present = %v", body.Upstream != nil)
			}
			if tc.expose && (body.Upstream.Status != http.StatusForbidden || string(body.Upstream.Body) != `{"info":"nope"}`) {
				t.Fatalf("upstream = %+v", body.Upstream)
			}
		})
	}
}
