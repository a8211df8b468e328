package watcher

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
)

const readSize = 1024

var (
	// ErrInvalidState is returned for a transition the current state does
	// not allow.
	ErrInvalidState = errors.New("invalid watcher state transition")
	// ErrStopped is returned by Start once the watcher was stopped.
	ErrStopped = errors.New("watcher stopped")
	// ErrNotForwarding is returned by Start once the forwarding goroutine
	// has exited; nothing would drain the capture pipe.
	ErrNotForwarding = errors.New("watcher is no longer forwarding")
	// ErrUnsupported is returned on platforms without dup/dup2.
	ErrUnsupported = errors.New("fd redirection is not supported on this platform")
)

// Sink receives decoded text read from the hijacked descriptor.
type Sink interface {
	WriteString(s string) (int, error)
}

// State is the lifecycle state of a Watcher.
type State int32

const (
	StateIdle State = iota
	StateActive
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type options struct {
	pty     bool
	name    string
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// Option configures a Watcher.
type Option func(*options)

// WithPTY captures through a pseudo-terminal instead of a pipe, so code
// checking isatty on the descriptor sees a terminal.
func WithPTY() Option {
	return func(o *options) { o.pty = true }
}

// WithName labels the watcher in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Watcher forwards everything written to fd into a Sink while active.
type Watcher struct {
	fd   int
	sink Sink

	reader *os.File
	writer *os.File
	// writeFd is the descriptor swapped onto fd by Start.
	writeFd int

	backing atomic.Int64
	state   atomic.Int32
	exit    atomic.Bool
	done    chan struct{}

	name    string
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates an idle Watcher for fd and starts its forwarding goroutine.
func New(fd int, sink Sink, opts ...Option) (*Watcher, error) {
	o := options{name: fmt.Sprintf("fd%d", fd)}
	for _, opt := range opts {
		opt(&o)
	}
	if !supported {
		return nil, ErrUnsupported
	}

	var (
		reader, writer *os.File
		err            error
	)
	if o.pty {
		reader, writer, err = openPTY()
	} else {
		reader, writer, err = os.Pipe()
	}
	if err != nil {
		return nil, fmt.Errorf("open capture pipe for fd %d: %w", fd, err)
	}

	writeFd, err := rawFd(writer)
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("capture pipe descriptor: %w", err)
	}

	w := &Watcher{
		fd:      fd,
		sink:    sink,
		reader:  reader,
		writer:  writer,
		writeFd: writeFd,
		done:    make(chan struct{}),
		name:    o.name,
		logger:  o.logger.Named("watcher").Named(o.name),
		metrics: o.metrics,
	}
	w.backing.Store(-1)
	w.metrics.RecordWatcherState(w.name, StateIdle.String())

	go w.forward()
	return w, nil
}

// Fd returns the watched descriptor.
func (w *Watcher) Fd() int {
	return w.fd
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Backing returns the duplicate of the original descriptor while active.
func (w *Watcher) Backing() (int, bool) {
	fd := int(w.backing.Load())
	return fd, fd >= 0
}

// Done is closed when the forwarding goroutine has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Start redirects fd into the capture pipe.
func (w *Watcher) Start() error {
	switch w.State() {
	case StateStopped:
		return ErrStopped
	case StateActive:
		return fmt.Errorf("start %s: %w", w.name, ErrInvalidState)
	}
	select {
	case <-w.done:
		return fmt.Errorf("start %s: %w", w.name, ErrNotForwarding)
	default:
	}

	backing, err := dup(w.fd)
	if err != nil {
		return fmt.Errorf("dup fd %d: %w", w.fd, err)
	}
	if err := dup2(w.writeFd, w.fd); err != nil {
		closeFd(backing)
		return fmt.Errorf("redirect fd %d: %w", w.fd, err)
	}

	w.backing.Store(int64(backing))
	w.setState(StateActive)
	return nil
}

// Pause restores the original destination of fd.
func (w *Watcher) Pause() error {
	if w.State() != StateActive {
		return fmt.Errorf("pause %s: %w", w.name, ErrInvalidState)
	}

	backing, _ := w.Backing()
	if err := dup2(backing, w.fd); err != nil {
		return fmt.Errorf("restore fd %d: %w", w.fd, err)
	}
	w.backing.Store(-1)
	closeFd(backing)
	w.setState(StatePaused)
	return nil
}

// Stop restores fd if it is redirected and closes the capture pipe. The
// watcher cannot be restarted. Stop does not wait for the forwarding
// goroutine; see Done.
func (w *Watcher) Stop() error {
	if w.State() == StateStopped {
		return nil
	}

	var restoreErr error
	if w.State() == StateActive {
		restoreErr = w.Pause()
	}

	w.exit.Store(true)
	w.writer.Close()
	w.reader.Close()
	w.setState(StateStopped)
	return restoreErr
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
	w.metrics.RecordWatcherState(w.name, s.String())
	w.logger.Debug("watcher state changed", zap.String("state", s.String()))
}

// forward copies decoded text from the capture pipe to the sink until the
// pipe closes. Faults end the loop and never escape it.
func (w *Watcher) forward() {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Debug("forwarding stopped after panic", zap.Any("panic", r))
		}
	}()

	buf := make([]byte, readSize)
	text := NewTextWriter(w.sink)
	for !w.exit.Load() {
		n, err := w.reader.Read(buf)
		if n == 0 || err != nil {
			if err != nil {
				w.logger.Debug("forwarding stopped", zap.Error(err))
			}
			return
		}
		w.metrics.RecordForwarded(w.name, n)

		if _, err := text.Write(buf[:n]); err != nil {
			w.logger.Debug("sink rejected forwarded output", zap.Error(err))
			return
		}
	}
}
