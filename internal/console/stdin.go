package console

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/settings"
	"github.com/GriffinCanCode/AgentOS/console/internal/stream"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// Stdin reads lines from the remote consumer. Every read sends a prompt on
// the stdin channel and waits for exactly one reply.
type Stdin struct {
	stream  *stream.Stream
	metrics *monitoring.Metrics

	// pending holds the unread part of the last reply for Read.
	mu      sync.Mutex
	pending string
}

// NewStdin creates a Stdin over s.
func NewStdin(s *stream.Stream, metrics *monitoring.Metrics) *Stdin {
	return &Stdin{stream: s, metrics: metrics}
}

// ReadLineWithPrompt shows prompt to the consumer and blocks, without a
// timeout, until it replies. The reply is returned verbatim.
func (i *Stdin) ReadLineWithPrompt(prompt string) (string, error) {
	if err := i.prompt(prompt); err != nil {
		return "", err
	}
	return i.stream.Inputs().Get(), nil
}

// ReadLineContext is ReadLineWithPrompt with a cancellable wait. It needs an
// input queue that supports cancellation. No prompt is shown once ctx is
// done; a prompt whose wait is cancelled gives up its reply.
func (i *Stdin) ReadLineContext(ctx context.Context, prompt string) (string, error) {
	queue, ok := i.stream.Inputs().(stream.ContextQueue)
	if !ok {
		return "", ErrUnsupportedOperation
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := i.prompt(prompt); err != nil {
		return "", err
	}

	reply, err := queue.GetContext(ctx)
	if err != nil {
		// The prompt is already on the consumer's screen.
		queue.Abandon()
		return "", err
	}
	return reply, nil
}

// ReadLine reads one reply. size is accepted for compatibility and ignored.
func (i *Stdin) ReadLine(size int) (string, error) {
	_ = size
	return i.ReadLineWithPrompt("")
}

// ReadLines reads one reply and splits it on newlines. hint is accepted for
// compatibility and ignored.
func (i *Stdin) ReadLines(hint int) ([]string, error) {
	_ = hint
	reply, err := i.ReadLineWithPrompt("")
	if err != nil {
		return nil, err
	}
	return strings.Split(reply, "\n"), nil
}

// Read implements io.Reader on top of ReadLine for consumers such as child
// processes. Each reply is delivered followed by a newline.
func (i *Stdin) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.pending == "" {
		reply, err := i.ReadLineWithPrompt("")
		if err != nil {
			return 0, err
		}
		i.pending = reply + "\n"
	}
	n := copy(p, i.pending)
	i.pending = i.pending[n:]
	return n, nil
}

// Fileno always fails: Stdin has no descriptor.
func (i *Stdin) Fileno() (int, error) {
	return -1, ErrUnsupportedOperation
}

func (i *Stdin) Readable() bool { return true }
func (i *Stdin) Writable() bool { return false }

func (i *Stdin) prompt(prompt string) error {
	cell, ok := i.stream.CellID()
	if !ok {
		return ErrNoCell
	}
	if !utf8.ValidString(prompt) {
		return ErrNotText
	}

	if truncated, ok := Truncate(prompt, settings.StdStreamMaxBytes()); ok {
		i.metrics.RecordTruncation(string(types.ChannelStdin))
		prompt = TruncationWarning + truncated
	}

	i.metrics.RecordPrompt()
	i.stream.Enqueue(types.ConsoleMessage{
		Channel:  types.ChannelStdin,
		CellID:   cell,
		Data:     prompt,
		MimeType: types.MimeTextPlain,
	})
	return nil
}
