package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTelemetry_ExportsCounters(t *testing.T) {
	ctx := context.Background()
	p, err := InitTelemetry(ctx, Config{ServiceName: "cellcare_test", Environment: "test"})
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	counter, err := otel.Meter("test").Int64Counter("dedup.records.merged")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dedup_records_merged")
}
