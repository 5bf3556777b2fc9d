package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, runsTotal)
	require.NotNil(t, activeWorkers)
}

func TestObserversDoNotPanic(t *testing.T) {
	Init()

	ObserveRun("example", "success", 2*time.Second)
	ObserveListing("example", "new")
	ObserveListing("example", "seen")
	ObserveFetchRetry("example")
	ObserveThrottle("example")
	ObserveNotifyFailure()
	IncActiveWorkers()
	DecActiveWorkers()
	ObserveRateLimitDelay("example", 100*time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveRun("handler-site", "success", time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "jobsentry_runs_total")
}
