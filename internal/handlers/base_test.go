package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"proptools/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"name": "is required"}}, http.StatusBadRequest, "Validation failed"},
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized, "Authentication required"},
		{"invalid credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid username or password"},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "You do not have permission to perform this action"},
		{"tool not found", services.ErrToolNotFound, http.StatusNotFound, "Tool not found"},
		{"wrapped not found", fmt.Errorf("%w: 7", services.ErrToolNotFound), http.StatusNotFound, "Tool not found: 7"},
		{"duplicate vote", services.ErrDuplicateVote, http.StatusBadRequest, "You have already voted"},
		{"already member", services.ErrAlreadyMember, http.StatusBadRequest, "Already a member of this group"},
		{"already verified", services.ErrAlreadyVerified, http.StatusBadRequest, "Email is already verified"},
		{"conflict", services.ErrReviewExists, http.StatusConflict, "You have already reviewed this tool"},
		{"token invalid", services.ErrTokenInvalid, http.StatusBadRequest, "Invalid verification token"},
		{"token expired", services.ErrTokenExpired, http.StatusBadRequest, "Verification token has expired"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondError(c, tt.err)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.msg {
				t.Fatalf("expected message %q, got %q", tt.msg, body["error"])
			}
		})
	}
}

func TestPathID(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		if _, ok := pathID(c, "id"); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", raw, w.Code)
		}
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	if id, ok := pathID(c, "id"); !ok || id != 42 {
		t.Fatalf("expected 42, got %d %v", id, ok)
	}
}
