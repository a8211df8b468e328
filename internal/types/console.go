package types

import (
	"time"

	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
)

// Channel identifies the console stream a message belongs to
type Channel string

const (
	ChannelStdout Channel = "stdout"
	ChannelStderr Channel = "stderr"
	ChannelStdin  Channel = "stdin"
)

// MimeType is the content kind of console data
type MimeType string

const (
	MimeTextPlain MimeType = "text/plain"
	MimeTextHTML  MimeType = "text/html"
	MimeMarkdown  MimeType = "text/markdown"
	MimeTraceback MimeType = "application/vnd.console+traceback"
)

// OpConsole is the operation tag of forwarded console output
const OpConsole = "console"

// ConsoleMessage is one piece of forwarded output or an input prompt.
// It is built once by a sink or source and never mutated afterwards.
type ConsoleMessage struct {
	Channel  Channel   `json:"channel"`
	CellID   id.CellID `json:"cell_id"`
	Data     string    `json:"data"`
	MimeType MimeType  `json:"mimetype"`
}

// Payload renders the message as the console payload mapping
func (m ConsoleMessage) Payload(at time.Time) map[string]any {
	return map[string]any{
		"channel":   string(m.Channel),
		"cell_id":   string(m.CellID),
		"data":      m.Data,
		"mimetype":  string(m.MimeType),
		"timestamp": float64(at.UnixNano()) / float64(time.Second),
	}
}

// KernelMessage is the two-part structure handed to an outbound pipe
type KernelMessage struct {
	Op   string         `json:"op"`
	Data map[string]any `json:"data"`
}
