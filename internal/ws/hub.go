package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// ErrNoClient is returned by Send while no client is attached.
var ErrNoClient = errors.New("no console client attached")

// Runner executes what clients ask for.
type Runner interface {
	Reply(text string)
	Exec(ctx context.Context, cell id.CellID, cmd kernel.Command) error
}

// Frame is an inbound client message.
type Frame struct {
	Type        string   `json:"type"`
	Text        string   `json:"text,omitempty"`
	CellID      string   `json:"cell_id,omitempty"`
	Command     []string `json:"command,omitempty"`
	Interactive bool     `json:"interactive,omitempty"`
}

type client struct {
	id   id.ConnectionID
	conn *websocket.Conn
}

// Hub is a Pipe writing kernel messages to the attached websocket client.
type Hub struct {
	// mu guards client and serializes writes to it.
	mu     sync.Mutex
	client *client

	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	// origins besides the server's own host allowed to connect.
	origins map[string]struct{}

	// Cells outlive the connection that started them; Close cancels them.
	cellCtx     context.Context
	cancelCells context.CancelFunc
	cells       sync.WaitGroup

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins lets browser pages served from origins open the
// console. Pages from the server's own host are always allowed.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		for _, origin := range origins {
			h.origins[strings.ToLower(strings.TrimSuffix(origin, "/"))] = struct{}{}
		}
	}
}

// NewHub creates a Hub with no client attached.
func NewHub(writeTimeout time.Duration, logger *logging.Logger, metrics *monitoring.Metrics, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cellCtx:      ctx,
		cancelCells:  cancel,
		writeTimeout: writeTimeout,
		origins:      make(map[string]struct{}),
		logger:       logger.Named("ws"),
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin accepts clients that send no Origin (not a browser), pages
// from the server's own host, and the configured origins. A client can run
// commands, so anything else is refused with 403.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if _, ok := h.origins[strings.ToLower(origin)]; ok {
		return true
	}
	h.logger.Warn("Rejected console client from foreign origin", zap.String("origin", origin))
	return false
}

// Send writes msg to the attached client.
func (h *Hub) Send(msg types.KernelMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Op, err)
	}
	if err := h.write(data); err != nil {
		return err
	}
	h.metrics.RecordWSMessage("out", msg.Op)
	return nil
}

// Connected reports whether a client is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client != nil
}

func (h *Hub) write(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return ErrNoClient
	}
	if h.writeTimeout > 0 {
		_ = h.client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	if err := h.client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to %s: %w", h.client.id, err)
	}
	return nil
}

func (h *Hub) reply(v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	if err := h.write(data); err != nil {
		h.logger.Debug("Failed to send reply", zap.Error(err))
	}
}

func (h *Hub) sendError(message string) {
	h.reply(gin.H{
		"type":      "error",
		"message":   message,
		"timestamp": time.Now().Unix(),
	})
}

// attach makes c the current client, closing any previous one.
func (h *Hub) attach(c *client) {
	h.mu.Lock()
	prev := h.client
	h.client = c
	h.mu.Unlock()

	if prev != nil {
		h.logger.Info("Replacing console client", zap.String("previous", prev.id.String()))
		prev.conn.Close()
	}
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if h.client == c {
		h.client = nil
	}
	h.mu.Unlock()
}

// Handler upgrades the request and serves the client until it disconnects.
func (h *Hub) Handler(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		cl := &client{id: id.NewConnectionID(), conn: conn}
		h.attach(cl)
		defer h.detach(cl)

		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
		h.logger.Info("Console client attached", zap.String("conn_id", cl.id.String()))

		h.serve(cl, runner)
		h.logger.Info("Console client detached", zap.String("conn_id", cl.id.String()))
	}
}

func (h *Hub) serve(cl *client, runner Runner) {
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			h.sendError("malformed frame")
			continue
		}
		h.metrics.RecordWSMessage("in", frame.Type)

		switch frame.Type {
		case "stdin":
			runner.Reply(frame.Text)
		case "run":
			h.run(runner, frame)
		case "ping":
			h.reply(gin.H{"type": "pong"})
		default:
			h.sendError("unknown message type")
		}
	}
}

// run starts a command cell in the background so the read loop can keep
// delivering stdin replies to it.
func (h *Hub) run(runner Runner, frame Frame) {
	if len(frame.Command) == 0 {
		h.sendError("run requires a command")
		return
	}
	cell := id.CellID(frame.CellID)
	if cell.IsZero() {
		cell = id.NewCellID()
	}
	cmd := kernel.Command{
		Name:        frame.Command[0],
		Args:        frame.Command[1:],
		Interactive: frame.Interactive,
	}

	h.cells.Add(1)
	go func() {
		defer h.cells.Done()

		result := gin.H{"type": "run_complete", "cell_id": cell.String()}
		if err := runner.Exec(h.cellCtx, cell, cmd); err != nil {
			result["error"] = err.Error()
		}
		h.reply(result)
	}()
}

// Close detaches the current client, cancels running cells and waits for
// them to return.
func (h *Hub) Close() error {
	h.cancelCells()

	h.mu.Lock()
	cl := h.client
	h.client = nil
	h.mu.Unlock()

	var err error
	if cl != nil {
		err = cl.conn.Close()
	}
	h.cells.Wait()
	return err
}
