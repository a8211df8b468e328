package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// Options configures a Stream.
type Options struct {
	// RedirectConsole enables the console buffer and its drain goroutine.
	// Without it, console messages are sent synchronously by the writer.
	RedirectConsole bool
	// FlushesPerSecond paces the drain goroutine; zero disables pacing.
	FlushesPerSecond float64
	Burst            int
	// Coalesce merges consecutive plain-text writes of one channel and cell.
	Coalesce bool
	// MaxMergeBytes caps a coalesced message; zero uses the std stream limit.
	MaxMergeBytes int
	// BreakerFailures consecutive send failures open the transport breaker
	// for BreakerCooldown. Zero failures disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
}

// DefaultOptions returns the options the kernel runs with.
func DefaultOptions() Options {
	return Options{
		RedirectConsole:  true,
		FlushesPerSecond: 60,
		Burst:            1,
		Coalesce:         true,
		BreakerFailures:  5,
		BreakerCooldown:  5 * time.Second,
	}
}

// Stream is a thread-safe wrapper around a Pipe. It does not own the pipe
// or the input queue.
type Stream struct {
	pipe   Pipe
	inputs InputQueue

	// A single stream is shared by the cell runner and every producer
	// goroutine; the lock is almost always uncontended.
	sendMu  sync.Mutex
	breaker *resilience.Breaker

	cellMu sync.RWMutex
	cellID id.CellID

	console  *consoleBuffer
	stopOnce sync.Once
	done     chan struct{}

	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a Stream over pipe and inputs. When opts.RedirectConsole is
// set the drain goroutine is started immediately.
func New(pipe Pipe, inputs InputQueue, opts Options) *Stream {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Stream{
		pipe:    pipe,
		inputs:  inputs,
		done:    make(chan struct{}),
		opts:    opts,
		logger:  opts.Logger.Named("stream"),
		metrics: opts.Metrics,
	}

	if opts.BreakerFailures > 0 {
		s.breaker = resilience.New("transport", resilience.Settings{
			Timeout:     opts.BreakerCooldown,
			ReadyToTrip: resilience.ConsecutiveFailures(opts.BreakerFailures),
			OnStateChange: func(name string, from, to resilience.State) {
				s.logger.Debug("transport breaker changed state",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				s.metrics.SetBreakerState(int(to))
			},
		})
	}

	if opts.RedirectConsole {
		s.console = newConsoleBuffer()
		var limiter *rate.Limiter
		if opts.FlushesPerSecond > 0 {
			burst := opts.Burst
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(opts.FlushesPerSecond), burst)
		}
		go s.drain(limiter)
	} else {
		close(s.done)
	}
	return s
}

// RedirectConsole reports whether console messages are buffered.
func (s *Stream) RedirectConsole() bool {
	return s.console != nil
}

// Inputs returns the queue stdin replies are pulled from.
func (s *Stream) Inputs() InputQueue {
	return s.inputs
}

// SetCellID binds the cell whose output is currently being produced. The
// zero CellID unbinds.
func (s *Stream) SetCellID(cell id.CellID) {
	s.cellMu.Lock()
	s.cellID = cell
	s.cellMu.Unlock()
}

// CellID returns the bound cell and whether one is bound.
func (s *Stream) CellID() (id.CellID, bool) {
	s.cellMu.RLock()
	defer s.cellMu.RUnlock()
	return s.cellID, !s.cellID.IsZero()
}

// Send forwards (op, data) to the pipe. Failures are logged and dropped.
func (s *Stream) Send(op string, data map[string]any) {
	s.SendMessage(types.KernelMessage{Op: op, Data: data})
}

// SendMessage forwards msg to the pipe while holding the send lock.
func (s *Stream) SendMessage(msg types.KernelMessage) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(func() error { return s.sendOnce(msg) })
	} else {
		err = s.sendOnce(msg)
	}

	switch {
	case err == nil:
		s.metrics.RecordSend(nil)
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		s.metrics.RecordShed()
	default:
		// Most likely the consumer went away.
		s.metrics.RecordSend(err)
		s.logger.Debug("Error when writing to pipe", zap.String("op", msg.Op), zap.Error(err))
	}
}

func (s *Stream) sendOnce(msg types.KernelMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipe panicked: %v", r)
		}
	}()
	return s.pipe.Send(msg)
}

// Enqueue appends a console message to the buffer and wakes the drain
// goroutine. Without console redirection the message is sent directly.
// Messages enqueued after Stop are dropped; Enqueue reports whether msg
// was accepted.
func (s *Stream) Enqueue(msg types.ConsoleMessage) bool {
	if s.console == nil {
		s.Send(types.OpConsole, msg.Payload(s.opts.Now()))
		return true
	}
	pending, ok := s.console.push(&msg)
	if ok {
		s.metrics.RecordEnqueued(string(msg.Channel), pending)
	}
	return ok
}

// Stop tears down resources created by the stream. It appends the sentinel
// that tells the drain goroutine to exit and does not wait for it, since it
// may still be delivering output. Calling Stop again has no effect.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		if s.console != nil {
			s.console.close()
		}
	})
}

// Done is closed once the drain goroutine has exited. Without console
// redirection it is closed from the start.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
