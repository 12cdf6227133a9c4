package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/phasehull/internal/report"
)

func TestStatus_BeforePublish(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ready"])
}

func TestResults_BeforePublish(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.handleResults(rec, httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResults_AfterPublish(t *testing.T) {
	s := &Server{}
	s.Publish(report.Report{RunID: "run-1", Target: "BaO3Zr"})

	rec := httptest.NewRecorder()
	s.handleResults(rec, httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var back report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &back))
	assert.Equal(t, "run-1", back.RunID)

	rec = httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["ready"])
	assert.Equal(t, "run-1", status["run_id"])
}

func TestMethodNotAllowed(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.handleResults(rec, httptest.NewRequest(http.MethodPost, "/api/v1/results", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
