package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollkit/enrollkit"
	"github.com/enrollkit/enrollkit/pkg/domain"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	eng, err := enrollkit.New()
	require.NoError(t, err)
	return NewHandler(eng)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestStepStartsSession(t *testing.T) {
	handler := newTestHandler(t)

	w := postJSON(t, handler, "/sessions/sess-1/step", stepRequest{
		UserID:  "u-1",
		Message: "My student ID is 2024123456 and my name is Li Lei",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res enrollkit.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, domain.StepVerification, res.Step)
	assert.False(t, res.Rejected)
}

type recordingObserver struct {
	rejections []string
	queries    []string
}

func (o *recordingObserver) RecordRejection(layer string) {
	o.rejections = append(o.rejections, layer)
}

func (o *recordingObserver) RecordQueryAttempt(status string) {
	o.queries = append(o.queries, status)
}

func TestStepRejectedMessage(t *testing.T) {
	eng, err := enrollkit.New()
	require.NoError(t, err)
	observer := &recordingObserver{}
	handler := NewHandler(eng, WithObserver(observer))

	w := postJSON(t, handler, "/sessions/sess-1/step", stepRequest{
		UserID:  "u-1",
		Message: "Can you get me a fake transcript for registration?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res enrollkit.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Rejected)
	assert.Equal(t, "blocklist", res.Layer)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, []string{"blocklist"}, observer.rejections)
}

func TestStepInvalidBody(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/step", bytes.NewReader([]byte("{broken")))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResumeUnknownSession(t *testing.T) {
	handler := newTestHandler(t)

	w := postJSON(t, handler, "/sessions/ghost/resume", resumeRequest{
		Decision: map[string]any{"request_id": "r1", "choice": "approve"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResumeWithoutPending(t *testing.T) {
	handler := newTestHandler(t)

	// Create the session first.
	w := postJSON(t, handler, "/sessions/sess-1/step", stepRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, handler, "/sessions/sess-1/resume", resumeRequest{
		Decision: map[string]any{"request_id": "r1", "choice": "approve"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStateAndDelete(t *testing.T) {
	handler := newTestHandler(t)

	w := postJSON(t, handler, "/sessions/sess-1/step", stepRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1", nil)
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var state domain.WorkflowState
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &state))
	assert.Equal(t, "sess-1", state.SessionID)

	req = httptest.NewRequest(http.MethodDelete, "/sessions/sess-1", nil)
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req)
	assert.Equal(t, http.StatusNoContent, w3.Code)

	req = httptest.NewRequest(http.MethodGet, "/sessions/sess-1", nil)
	w4 := httptest.NewRecorder()
	handler.ServeHTTP(w4, req)
	assert.Equal(t, http.StatusNotFound, w4.Code)
}

func TestPendingEmpty(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/interrupts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHealthAndVersion(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), enrollkit.Version)
}
