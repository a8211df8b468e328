package console

import (
	"unicode/utf8"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/settings"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
	"github.com/GriffinCanCode/AgentOS/console/internal/watcher"
)

// sink is the part shared by Stdout and Stderr.
type sink struct {
	stream  *stream.Stream
	channel types.Channel
	limit   func() int
	watcher *watcher.Watcher
	metrics *monitoring.Metrics
}

func newSink(s *stream.Stream, channel types.Channel, metrics *monitoring.Metrics) sink {
	return sink{
		stream:  s,
		channel: channel,
		limit:   settings.StdStreamMaxBytes,
		metrics: metrics,
	}
}

// check validates a write and returns the cell it belongs to.
func (s *sink) check(data string) (id.CellID, error) {
	cell, ok := s.stream.CellID()
	if !ok {
		return "", ErrNoCell
	}
	if !utf8.ValidString(data) {
		return "", ErrNotText
	}
	return cell, nil
}

func (s *sink) enqueue(cell id.CellID, data string, mime types.MimeType) {
	s.stream.Enqueue(types.ConsoleMessage{
		Channel:  s.channel,
		CellID:   cell,
		Data:     data,
		MimeType: mime,
	})
}

func (s *sink) truncate(data string) (string, bool) {
	truncated, ok := Truncate(data, s.limit())
	if ok {
		s.metrics.RecordTruncation(string(s.channel))
	}
	return truncated, ok
}

// attach creates the watcher forwarding fd into w.
func (s *sink) attach(fd int, w watcher.Sink, opts ...watcher.Option) error {
	fw, err := watcher.New(fd, w, opts...)
	if err != nil {
		return err
	}
	s.watcher = fw
	return nil
}

// Watcher returns the descriptor watcher, or nil when fds are not captured.
func (s *sink) Watcher() *watcher.Watcher {
	return s.watcher
}

// Fileno returns the duplicate of the original descriptor while the sink is
// redirected.
func (s *sink) Fileno() (int, error) {
	if s.watcher != nil {
		if fd, ok := s.watcher.Backing(); ok {
			return fd, nil
		}
	}
	return -1, ErrUnsupportedOperation
}

// Flush is a no-op; the drain goroutine owns delivery.
func (s *sink) Flush() error { return nil }

func (s *sink) Readable() bool { return false }
func (s *sink) Writable() bool { return true }

// Stop stops the watcher, restoring the descriptor if it is redirected.
func (s *sink) Stop() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Stop()
}
