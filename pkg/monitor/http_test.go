package monitor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aszhur/loadgen/pkg/recipe"
)

func TestHandleIngestFeedsWindow(t *testing.T) {
	m := New(Options{Catalog: &Catalog{byFamily: map[string]*Reference{}}})
	r := m.Router(nil)

	batch := []recipe.Sample{
		{FamilyID: "cpu", Timestamp: 1, Value: 10},
		{FamilyID: "cpu", Timestamp: 2, Value: 20},
	}
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	m.mu.RLock()
	w := m.windows["cpu"]
	m.mu.RUnlock()
	require.NotNil(t, w)
	assert.Equal(t, 2, w.Len())
}

func TestHandleIngestRejectsInvalidBody(t *testing.T) {
	m := New(Options{Catalog: &Catalog{byFamily: map[string]*Reference{}}})
	r := m.Router(nil)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComputeTriggersAsync(t *testing.T) {
	m := New(Options{Catalog: &Catalog{byFamily: map[string]*Reference{}}})
	r := m.Router(nil)

	req := httptest.NewRequest(http.MethodPost, "/compute", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, len(m.computeSignal))
}
