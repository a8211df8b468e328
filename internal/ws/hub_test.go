package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/testutil"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	replies []string
	cells   []id.CellID
	cmds    []kernel.Command
	execErr error
}

func (r *fakeRunner) Reply(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
}

func (r *fakeRunner) Exec(_ context.Context, cell id.CellID, cmd kernel.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells = append(r.cells, cell)
	r.cmds = append(r.cmds, cmd)
	return r.execErr
}

func (r *fakeRunner) Replies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}

func setupHub(t *testing.T, runner Runner, opts ...HubOption) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(time.Second, logging.Nop(), nil, opts...)
	router := gin.New()
	router.GET("/console", hub.Handler(runner))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/console"
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.True(t, testutil.WaitFor(time.Second, hub.Connected))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, sonic.Unmarshal(data, &frame))
	return frame
}

func TestSendWithoutClient(t *testing.T) {
	hub := NewHub(time.Second, logging.Nop(), nil)
	err := hub.Send(types.KernelMessage{Op: types.OpConsole})
	assert.ErrorIs(t, err, ErrNoClient)
	assert.False(t, hub.Connected())
}

func TestSendWritesKernelMessage(t *testing.T) {
	hub, url := setupHub(t, &fakeRunner{})
	conn := dial(t, hub, url)

	msg := types.ConsoleMessage{Channel: types.ChannelStdout, CellID: "cell-1", Data: "hi", MimeType: types.MimeTextPlain}
	require.NoError(t, hub.Send(types.KernelMessage{Op: types.OpConsole, Data: msg.Payload(time.Unix(10, 0))}))

	frame := readFrame(t, conn)
	assert.Equal(t, "console", frame["op"])
	data := frame["data"].(map[string]any)
	assert.Equal(t, "stdout", data["channel"])
	assert.Equal(t, "cell-1", data["cell_id"])
	assert.Equal(t, "hi", data["data"])
	assert.Equal(t, float64(10), data["timestamp"])
}

func TestPingPong(t *testing.T) {
	hub, url := setupHub(t, &fakeRunner{})
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestStdinFrameReplies(t *testing.T) {
	runner := &fakeRunner{}
	hub, url := setupHub(t, runner)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stdin","text":"Ada"}`)))
	assert.True(t, testutil.WaitFor(time.Second, func() bool {
		return len(runner.Replies()) == 1 && runner.Replies()[0] == "Ada"
	}))
}

func TestRunFrame(t *testing.T) {
	runner := &fakeRunner{execErr: errors.New("exit status 2")}
	hub, url := setupHub(t, runner)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"run","cell_id":"cell-9","command":["ls","-l"],"interactive":true}`)))

	frame := readFrame(t, conn)
	assert.Equal(t, "run_complete", frame["type"])
	assert.Equal(t, "cell-9", frame["cell_id"])
	assert.Equal(t, "exit status 2", frame["error"])

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, kernel.Command{Name: "ls", Args: []string{"-l"}, Interactive: true}, runner.cmds[0])
}

func TestRunFrameGeneratesCellID(t *testing.T) {
	runner := &fakeRunner{}
	hub, url := setupHub(t, runner)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"run","command":["true"]}`)))
	frame := readFrame(t, conn)
	assert.True(t, strings.HasPrefix(frame["cell_id"].(string), id.CellPrefix+"_"))
	assert.NotContains(t, frame, "error")
}

func TestInvalidFrames(t *testing.T) {
	hub, url := setupHub(t, &fakeRunner{})
	conn := dial(t, hub, url)

	for _, raw := range []string{`not json`, `{"type":"bogus"}`, `{"type":"run"}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		assert.Equal(t, "error", readFrame(t, conn)["type"], raw)
	}
}

func TestNewClientReplacesOld(t *testing.T) {
	hub, url := setupHub(t, &fakeRunner{})
	first := dial(t, hub, url)
	second := dial(t, hub, url)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	require.True(t, testutil.WaitFor(time.Second, hub.Connected))
	require.NoError(t, hub.Send(types.KernelMessage{Op: "status", Data: map[string]any{"ok": true}}))
	assert.Equal(t, "status", readFrame(t, second)["op"])
}

func TestOriginPolicy(t *testing.T) {
	runner := &fakeRunner{}
	hub, wsURL := setupHub(t, runner, WithAllowedOrigins("https://console.example.com/"))
	host := strings.TrimPrefix(strings.TrimSuffix(wsURL, "/console"), "ws://")

	tests := []struct {
		name   string
		origin string
		status int
	}{
		{name: "no origin", origin: "", status: http.StatusSwitchingProtocols},
		{name: "same host", origin: "http://" + host, status: http.StatusSwitchingProtocols},
		{name: "allowed origin", origin: "https://Console.Example.com", status: http.StatusSwitchingProtocols},
		{name: "foreign origin", origin: "http://evil.example", status: http.StatusForbidden},
		{name: "foreign port", origin: "http://127.0.0.1:1", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusSwitchingProtocols {
				assert.ErrorIs(t, err, websocket.ErrBadHandshake)
				return
			}
			require.NoError(t, err)
			conn.Close()
			assert.True(t, testutil.WaitFor(time.Second, func() bool { return !hub.Connected() }))
		})
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.cmds)
}
