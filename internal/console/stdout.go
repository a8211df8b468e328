package console

import (
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// Warner receives truncation warnings verbatim.
type Warner interface {
	Warn(msg string) error
}

// Stdout relays cell output on the stdout channel. Truncation warnings go to
// a separate Warner, normally the paired Stderr.
type Stdout struct {
	sink
	warnings Warner
}

// NewStdout creates a Stdout over s. warnings may be nil.
func NewStdout(s *stream.Stream, warnings Warner, metrics *monitoring.Metrics) *Stdout {
	return &Stdout{
		sink:     newSink(s, types.ChannelStdout, metrics),
		warnings: warnings,
	}
}

// Write writes p as plain text. It reports len(p) on success.
func (o *Stdout) Write(p []byte) (int, error) {
	if _, err := o.WriteWithMimeType(string(p), types.MimeTextPlain); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString writes plain text and returns the length of the data that
// was relayed, which is shorter than s when it was truncated.
func (o *Stdout) WriteString(s string) (int, error) {
	return o.WriteWithMimeType(s, types.MimeTextPlain)
}

// WriteWithMimeType relays data with an explicit mimetype.
func (o *Stdout) WriteWithMimeType(data string, mime types.MimeType) (int, error) {
	cell, err := o.check(data)
	if err != nil {
		return 0, err
	}

	if truncated, ok := o.truncate(data); ok {
		if o.warnings != nil {
			_ = o.warnings.Warn(TruncationWarning)
		}
		data = truncated
	}

	o.enqueue(cell, data, mime)
	return len(data), nil
}

// WriteLines writes each line in turn. No separators are added.
func (o *Stdout) WriteLines(lines []string) error {
	for _, line := range lines {
		if _, err := o.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}
