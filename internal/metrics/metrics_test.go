package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CommandApplied("insert_text", nil)
	m.TokensCommitted(3)
	m.GenerationFinished("completed", time.Second)
	m.ExportObserved("docx", time.Millisecond)
	m.HTTPObserved("/health", 200, time.Millisecond)
	m.SetDocuments(1)
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.CommandApplied("insert_text", nil)
	m.CommandApplied("insert_text", nil)
	m.CommandApplied("insert_text", errors.New("boom"))
	m.TokensCommitted(5)
	m.GenerationFinished("anchor_lost", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("insert_text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("insert_text", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.tokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("anchor_lost")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetDocuments(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "docpen_open_documents 3")
}
