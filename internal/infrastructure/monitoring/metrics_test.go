package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordEnqueued("stdout", 1)
	m.RecordSend(nil)
	m.RecordShed()
	m.RecordTruncation("stderr")
	m.RecordForwarded("stdout", 10)
	m.RecordWatcherState("stdout", "active")
	m.SetBreakerState(2)
	m.IncWSConnections()
	assert.Equal(t, Snapshot{}, m.GetSnapshot())
}

func TestRecordSend(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSend(nil)
	m.RecordSend(nil)
	m.RecordSend(errors.New("broken pipe"))
	m.RecordShed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.MessagesSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SendFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SendsShed))

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.MessagesSent)
	assert.Equal(t, int64(2), snap.SendFailures)
}

func TestConsoleCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEnqueued("stdout", 3)
	m.RecordEnqueued("stdout", 4)
	m.RecordTruncation("stderr")
	m.RecordForwarded("stdout", 1024)
	m.RecordForwarded("stdout", 12)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ConsoleMessages.WithLabelValues("stdout")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.PendingMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Truncations.WithLabelValues("stderr")))
	assert.Equal(t, float64(1036), testutil.ToFloat64(m.ForwardedBytes.WithLabelValues("stdout")))
	assert.Equal(t, int64(1036), m.GetSnapshot().ForwardedBytes)
}

func TestSeparateRegistries(t *testing.T) {
	// Registering twice on one registry would panic; separate ones must not.
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
