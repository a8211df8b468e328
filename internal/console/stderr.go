package console

import (
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// Stderr relays cell output on the stderr channel. A truncated write
// carries its warning in the same message.
type Stderr struct {
	sink
}

// NewStderr creates a Stderr over s.
func NewStderr(s *stream.Stream, metrics *monitoring.Metrics) *Stderr {
	return &Stderr{sink: newSink(s, types.ChannelStderr, metrics)}
}

// Write writes p as plain text. It reports len(p) on success.
func (e *Stderr) Write(p []byte) (int, error) {
	if _, err := e.WriteWithMimeType(string(p), types.MimeTextPlain); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString writes plain text and returns the length of the relayed data.
func (e *Stderr) WriteString(s string) (int, error) {
	return e.WriteWithMimeType(s, types.MimeTextPlain)
}

// WriteWithMimeType relays data with an explicit mimetype.
func (e *Stderr) WriteWithMimeType(data string, mime types.MimeType) (int, error) {
	cell, err := e.check(data)
	if err != nil {
		return 0, err
	}

	if truncated, ok := e.truncate(data); ok {
		data = TruncationWarning + truncated
	}

	e.enqueue(cell, data, mime)
	return len(data), nil
}

// Warn relays msg as one plain-text message, bypassing the size limit.
func (e *Stderr) Warn(msg string) error {
	cell, err := e.check(msg)
	if err != nil {
		return err
	}
	e.enqueue(cell, msg, types.MimeTextPlain)
	return nil
}

// WriteLines writes each line in turn. No separators are added.
func (e *Stderr) WriteLines(lines []string) error {
	for _, line := range lines {
		if _, err := e.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}
