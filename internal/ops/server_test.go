package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus struct {
	processed int64
	archive   int64
}

func (s staticStatus) LastProcessedBlock() int64 { return s.processed }
func (s staticStatus) ArchiveHeight() int64      { return s.archive }

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(staticStatus{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", recorder.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	router := NewRouter(staticStatus{processed: 120, archive: 250})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	assert.Equal(t, int64(120), status.LastProcessedBlock)
	assert.Equal(t, int64(250), status.ArchiveHeight)
}

func TestStatusBeforeFirstObservation(t *testing.T) {
	router := NewRouter(staticStatus{processed: -1, archive: -1})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	assert.Equal(t, int64(-1), status.LastProcessedBlock)
	assert.Equal(t, int64(-1), status.ArchiveHeight)
}
