package coordinator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rgwsync/internal/model"
)

func TestObserveSnapshot(t *testing.T) {
	m := NewMetrics()

	pct := 75.5
	m.ObserveSnapshot("photos", model.BucketSnapshot{SyncProgressPct: &pct, DeltaObjects: 4, DeltaSize: 4096})
	assert.Equal(t, 75.5, testutil.ToFloat64(m.BucketProgress.WithLabelValues("photos")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BucketDeltaObjects.WithLabelValues("photos")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.BucketDeltaBytes.WithLabelValues("photos")))

	m.ObserveSnapshot("photos", model.BucketSnapshot{NoSecondaryData: true, Timestamp: time.Now()})
	assert.Equal(t, 0, testutil.CollectAndCount(m.BucketProgress))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSnapshot("b", model.BucketSnapshot{})
		m.commandFailed("sync_status", "timeout")
	})
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.commandFailed("sync_status", "timeout")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `rgwsync_monitor_command_failures_total{kind="timeout",step="sync_status"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
