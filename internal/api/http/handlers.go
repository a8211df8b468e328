package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/console/internal/watcher"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// ClientStatus reports whether a console client is attached
type ClientStatus interface {
	Connected() bool
}

// Handlers serves the console HTTP endpoints
type Handlers struct {
	kernel  *kernel.Kernel
	clients ClientStatus
	metrics *monitoring.Metrics
	started time.Time
}

// NewHandlers creates handlers over a running kernel
func NewHandlers(k *kernel.Kernel, clients ClientStatus, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		kernel:  k,
		clients: clients,
		metrics: metrics,
		started: time.Now(),
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "console",
		"version": Version,
	})
}

// Health reports the pipeline state
func (h *Handlers) Health(c *gin.Context) {
	con := h.kernel.Console()
	cell, bound := h.kernel.Stream().CellID()

	consoleStatus := gin.H{
		"redirect_console": h.kernel.Stream().RedirectConsole(),
		"stdout":           watcherState(con.Stdout.Watcher()),
		"stderr":           watcherState(con.Stderr.Watcher()),
	}
	if bound {
		consoleStatus["cell_id"] = cell.String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"client":  gin.H{"connected": h.clients.Connected()},
		"console": consoleStatus,
	})
}

func watcherState(w *watcher.Watcher) string {
	if w == nil {
		return "disabled"
	}
	return w.State().String()
}

// MetricsJSON returns pipeline counters as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp":      time.Now(),
		"uptime_seconds": time.Since(h.started).Seconds(),
		"console":        h.metrics.GetSnapshot(),
	})
}

// StdinRequest answers the oldest outstanding prompt
type StdinRequest struct {
	Text string `json:"text"`
}

// Stdin delivers a reply for clients without a websocket
func (h *Handlers) Stdin(c *gin.Context) {
	var req StdinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.kernel.Reply(req.Text)
	c.Status(http.StatusAccepted)
}
