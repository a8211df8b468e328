package console

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/settings"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
	"github.com/GriffinCanCode/AgentOS/console/internal/watcher"
)

// Options configures a Console.
type Options struct {
	// CaptureFds attaches watchers to StdoutFd and StderrFd.
	CaptureFds bool
	StdoutFd   int
	StderrFd   int
	// PTY captures through pseudo-terminals instead of pipes.
	PTY bool

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// DefaultOptions captures the process descriptors 1 and 2.
func DefaultOptions() Options {
	return Options{CaptureFds: true, StdoutFd: 1, StderrFd: 2}
}

// Console groups the three console streams of a kernel.
type Console struct {
	Stdout *Stdout
	Stderr *Stderr
	Stdin  *Stdin

	logger *logging.Logger
}

// New creates the console streams over s. When descriptor capture is not
// supported on this platform the console falls back to text-only sinks.
func New(s *stream.Stream, opts Options) (*Console, error) {
	logger := opts.Logger.Named("console")

	stderr := NewStderr(s, opts.Metrics)
	c := &Console{
		Stdout: NewStdout(s, stderr, opts.Metrics),
		Stderr: stderr,
		Stdin:  NewStdin(s, opts.Metrics),
		logger: logger,
	}
	if !opts.CaptureFds {
		return c, nil
	}

	watcherOpts := func(name string) []watcher.Option {
		o := []watcher.Option{
			watcher.WithName(name),
			watcher.WithLogger(opts.Logger),
			watcher.WithMetrics(opts.Metrics),
		}
		if opts.PTY {
			o = append(o, watcher.WithPTY())
		}
		return o
	}

	err := c.Stdout.attach(opts.StdoutFd, c.Stdout, watcherOpts("stdout")...)
	if err == nil {
		err = c.Stderr.attach(opts.StderrFd, c.Stderr, watcherOpts("stderr")...)
	}
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, watcher.ErrUnsupported):
		logger.Warn("fd capture unavailable, only console writes are relayed", zap.Error(err))
		c.Stdout.watcher, c.Stderr.watcher = nil, nil
		return c, nil
	default:
		_ = c.Stop()
		return nil, fmt.Errorf("capture console fds: %w", err)
	}
}

// Redirect starts capturing both descriptors. The returned function ends
// the capture.
func (c *Console) Redirect() (restore func() error, err error) {
	restoreOut, err := Redirect(c.Stdout)
	if err != nil {
		return nil, fmt.Errorf("redirect stdout: %w", err)
	}
	restoreErr, err := Redirect(c.Stderr)
	if err != nil {
		_ = restoreOut()
		return nil, fmt.Errorf("redirect stderr: %w", err)
	}
	return func() error {
		return errors.Join(restoreErr(), restoreOut())
	}, nil
}

// Display relays a rendered output, bounded by the output size limit
// rather than the console stream limit.
func (c *Console) Display(data string, mime types.MimeType) (int, error) {
	cell, err := c.Stdout.check(data)
	if err != nil {
		return 0, err
	}
	if truncated, ok := Truncate(data, settings.OutputMaxBytes()); ok {
		c.Stdout.metrics.RecordTruncation(string(types.ChannelStdout))
		_ = c.Stderr.Warn(TruncationWarning)
		data = truncated
	}
	c.Stdout.enqueue(cell, data, mime)
	return len(data), nil
}

// Stop stops both watchers, restoring any redirected descriptor.
func (c *Console) Stop() error {
	err := errors.Join(c.Stdout.Stop(), c.Stderr.Stop())
	if err != nil {
		c.logger.Debug("console watchers stopped with errors", zap.Error(err))
	}
	return err
}
