package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveFrame(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveFrame(StatusBuilt, 250*time.Millisecond)
	m.ObserveFrame(StatusBuilt, time.Second)
	m.ObserveFrame(StatusSkipped, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues(StatusBuilt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues(StatusSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FrameDuration))
}

func TestMetrics_ReconWarnings(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveRecon(3, true)
	m.ObserveRecon(900, false)
	m.CacheHit()
	m.ObserveGrowth(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconWarningsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveFrame(StatusFailed, time.Second)
	m.ObserveGrowth(1)
	m.ObserveRecon(1, false)
	m.CacheHit()
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveFrame(StatusCached, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `isurf_frames_total{status="cached"} 1`), string(body))
	assert.Contains(t, string(body), "isurf_recon_warnings_total 0")
}
