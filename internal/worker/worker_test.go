package worker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellcare/cellcare_backend/internal/service/dedup"
)

type countingMerger struct {
	runs atomic.Int32
}

func (m *countingMerger) MergeAllDuplicates(context.Context) dedup.MergeReport {
	m.runs.Add(1)
	return dedup.MergeReport{CustomersProcessed: 1}
}

func TestScheduler_RunsOnStartAndOnTick(t *testing.T) {
	merger := &countingMerger{}
	s := NewScheduler(merger, 20*time.Millisecond, true)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return merger.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := merger.runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, merger.runs.Load(), "no runs after stop")
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingMerger{}, time.Hour, false)
	assert.NoError(t, s.Stop(context.Background()))
}

func TestMetricsServer_ServesHandler(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dedup_records_merged_total 3\n"))
	})
	m := NewMetricsServer("127.0.0.1:0", "/metrics", handler, nil)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + m.Addr() + "/metrics")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, time.Second, 10*time.Millisecond)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dedup_records_merged_total")
}

func TestMetricsServer_HealthProbes(t *testing.T) {
	var ready atomic.Bool
	m := NewMetricsServer(":0", "", http.NotFoundHandler(), func(context.Context) bool { return ready.Load() })

	tests := []struct {
		name  string
		path  string
		ready bool
		want  int
	}{
		{"liveness ignores dependencies", healthcheck.LivenessEndpoint, false, http.StatusOK},
		{"readiness fails while database is down", healthcheck.ReadinessEndpoint, false, http.StatusServiceUnavailable},
		{"readiness passes once database answers", healthcheck.ReadinessEndpoint, true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready.Store(tt.ready)
			resp, err := m.App().Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
