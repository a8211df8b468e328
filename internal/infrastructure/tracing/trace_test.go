package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
)

func observed() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &logging.Logger{Logger: zap.New(core)}, logs
}

func TestStartSpanPropagatesTrace(t *testing.T) {
	tracer := New("console", logging.Nop())
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "cell.run")
	child, _ := tracer.StartSpan(ctx, "cell.exec")

	assert.NotEmpty(t, parent.TraceID)
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Empty(t, parent.ParentID)
	assert.Equal(t, parent.TraceID, GetTraceID(ctx))
}

func TestSubmittedSpansAreLogged(t *testing.T) {
	logger, logs := observed()
	tracer := New("console", logger)

	ok, _ := tracer.StartSpan(context.Background(), "ok")
	ok.SetTag("cell_id", "cell-1")
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "failed")
	failed.SetError(errors.New("boom"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "span completed", first.Message)
	assert.Equal(t, "cell-1", first.ContextMap()["cell_id"])
	assert.Equal(t, "span completed with error", logs.All()[1].Message)
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	tracer := New("console", logging.Nop())
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	assert.NotPanics(t, func() { tracer.Submit(span) })
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("console", logging.Nop())
	defer tracer.Close()

	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	var seen TraceID
	router.GET("/health", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderTraceID, "trace-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, TraceID("trace-abc"), seen)
	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))
}
