package kernel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/console/internal/console"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/console/internal/settings"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

var (
	// ErrClosed is returned for cells submitted after Shutdown.
	ErrClosed = errors.New("kernel is shut down")
	// ErrCellPanicked wraps the value a cell panicked with.
	ErrCellPanicked = errors.New("cell panicked")
)

// Kernel runs cells and relays their console I/O.
type Kernel struct {
	stream  *stream.Stream
	console *console.Console
	inputs  *stream.Queue

	// mu serializes cells.
	mu     sync.Mutex
	closed bool

	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// New installs cfg.Runtime as the process settings and builds the stream
// and console over pipe. Replies to stdin prompts are read from inputs.
func New(cfg *config.Config, pipe stream.Pipe, inputs *stream.Queue, logger *logging.Logger, metrics *monitoring.Metrics) (*Kernel, error) {
	if inputs == nil {
		inputs = stream.NewQueue()
	}
	settings.Install(&settings.Context{Runtime: cfg.Runtime})

	s := stream.New(pipe, inputs, stream.Options{
		RedirectConsole:  cfg.Runtime.RedirectConsole,
		FlushesPerSecond: cfg.Drain.FlushesPerSecond,
		Burst:            cfg.Drain.Burst,
		Coalesce:         true,
		BreakerFailures:  cfg.Transport.BreakerFailures,
		BreakerCooldown:  cfg.Transport.BreakerCooldown,
		Logger:           logger,
		Metrics:          metrics,
	})

	c, err := console.New(s, console.Options{
		CaptureFds: cfg.Runtime.CaptureFds,
		StdoutFd:   1,
		StderrFd:   2,
		PTY:        cfg.Runtime.CapturePTY,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		s.Stop()
		settings.Teardown()
		return nil, fmt.Errorf("failed to create console: %w", err)
	}

	k := &Kernel{
		stream:  s,
		console: c,
		inputs:  inputs,
		logger:  logger.Named("kernel"),
		metrics: metrics,
	}
	k.logger.Info("Kernel initialized",
		zap.Bool("redirect_console", cfg.Runtime.RedirectConsole),
		zap.Bool("capture_fds", cfg.Runtime.CaptureFds && c.Stdout.Watcher() != nil),
		zap.Bool("capture_pty", cfg.Runtime.CapturePTY),
		zap.Int("std_stream_max_bytes", settings.StdStreamMaxBytes()),
	)
	return k, nil
}

// WithTracer records a span for every cell run.
func (k *Kernel) WithTracer(t *tracing.Tracer) *Kernel {
	k.tracer = t
	return k
}

// Console returns the console streams cells write to.
func (k *Kernel) Console() *console.Console {
	return k.console
}

// Stream returns the shared stream.
func (k *Kernel) Stream() *stream.Stream {
	return k.stream
}

// Reply answers the oldest outstanding stdin prompt.
func (k *Kernel) Reply(text string) {
	k.inputs.Put(text)
}

// RunCell runs fn as cell. Cells never overlap; a second call waits for the
// first to finish. The cell stays bound after fn returns so that output
// still in flight is attributed to it.
func (k *Kernel) RunCell(ctx context.Context, cell id.CellID, fn func(*console.Console) error) (err error) {
	if cell.IsZero() {
		return fmt.Errorf("run cell: %w", console.ErrNoCell)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if k.tracer != nil {
		var span *tracing.Span
		span, ctx = k.tracer.StartSpan(ctx, "cell.run")
		span.SetTag("cell_id", cell.String())
		defer func() {
			span.Finish()
			span.SetError(err)
			k.tracer.Submit(span)
		}()
	}

	k.stream.SetCellID(cell)

	restore, rerr := k.console.Redirect()
	if rerr != nil {
		k.logger.Warn("Failed to redirect console fds, running without capture",
			zap.String("cell_id", cell.String()), zap.Error(rerr))
		restore = func() error { return nil }
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			k.logger.Error("Failed to restore console fds",
				zap.String("cell_id", cell.String()), zap.Error(rerr))
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCellPanicked, r)
			k.reportPanic(r, debug.Stack())
		}
	}()

	k.logger.Debug("Running cell", zap.String("cell_id", cell.String()))
	if err = fn(k.console); err != nil {
		_, _ = k.console.Stderr.WriteString(err.Error() + "\n")
	}
	return err
}

func (k *Kernel) reportPanic(value any, stack []byte) {
	traceback := fmt.Sprintf("panic: %v\n\n%s", value, stack)
	if _, err := k.console.Stderr.WriteWithMimeType(traceback, types.MimeTraceback); err != nil {
		k.logger.Error("Failed to report cell panic", zap.Error(err))
	}
}

// Shutdown stops the watchers and the stream and waits, bounded by ctx, for
// queued output to be delivered. Cells submitted afterwards fail with
// ErrClosed.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	consoleErr := k.console.Stop()
	k.stream.Stop()
	defer settings.Teardown()

	select {
	case <-k.stream.Done():
		k.logger.Info("Kernel shut down")
		return consoleErr
	case <-ctx.Done():
		return errors.Join(consoleErr, fmt.Errorf("waiting for console drain: %w", ctx.Err()))
	}
}
