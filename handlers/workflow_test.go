package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ShafiqSadat/ZKFingerprint/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartEnrollmentRejectsBadBody(t *testing.T) {
	handler := &WorkflowHandler{Workflows: &services.WorkflowService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/enrollments", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.StartEnrollment(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_body")
}

func TestStartEnrollmentRejectsEmptyName(t *testing.T) {
	handler := &WorkflowHandler{Workflows: &services.WorkflowService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/enrollments", strings.NewReader(`{"name":"  "}`))
	rec := httptest.NewRecorder()

	handler.StartEnrollment(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelWithNothingRunning(t *testing.T) {
	handler := &WorkflowHandler{Workflows: &services.WorkflowService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/workflows/cancel", nil)
	rec := httptest.NewRecorder()

	handler.Cancel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled": false}`, rec.Body.String())
}
