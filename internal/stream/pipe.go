package stream

import (
	"errors"

	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// ErrQueueFull is returned by QueuePipe.Send when the consumer lags behind.
var ErrQueueFull = errors.New("outbound queue is full")

// Pipe is the outbound channel structured messages are forwarded through.
// Send may fail with a transport error; the Stream absorbs it.
type Pipe interface {
	Send(msg types.KernelMessage) error
}

// PipeFunc adapts a function to the Pipe interface.
type PipeFunc func(msg types.KernelMessage) error

// Send calls f(msg).
func (f PipeFunc) Send(msg types.KernelMessage) error { return f(msg) }

// QueuePipe is a Pipe backed by a buffered channel, for consumers living in
// the same process. Send never blocks: a full queue drops the message.
type QueuePipe struct {
	messages chan types.KernelMessage
}

// NewQueuePipe creates a QueuePipe holding up to capacity unread messages.
func NewQueuePipe(capacity int) *QueuePipe {
	return &QueuePipe{messages: make(chan types.KernelMessage, capacity)}
}

// Send enqueues msg without waiting.
func (p *QueuePipe) Send(msg types.KernelMessage) error {
	select {
	case p.messages <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Messages returns the receive side of the queue.
func (p *QueuePipe) Messages() <-chan types.KernelMessage {
	return p.messages
}
