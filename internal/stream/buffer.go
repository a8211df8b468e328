package stream

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/console/internal/settings"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// consoleBuffer is the FIFO between console writers and the drain
// goroutine. A nil entry is the terminal sentinel.
type consoleBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*types.ConsoleMessage
	stopped bool
}

func newConsoleBuffer() *consoleBuffer {
	b := &consoleBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *consoleBuffer) push(msg *types.ConsoleMessage) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return len(b.queue), false
	}
	b.queue = append(b.queue, msg)
	b.cond.Signal()
	return len(b.queue), true
}

func (b *consoleBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	b.queue = append(b.queue, nil)
	b.cond.Signal()
}

// waitPending blocks until the buffer holds at least one entry. Spurious
// wakeups with an empty buffer go back to waiting.
func (b *consoleBuffer) waitPending() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.queue) == 0 {
		b.cond.Wait()
	}
}

// takeAll removes every queued message up to the sentinel. stop is true
// when the sentinel was reached; anything after it is discarded.
func (b *consoleBuffer) takeAll() (batch []*types.ConsoleMessage, stop bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queued := b.queue
	b.queue = nil
	for i, msg := range queued {
		if msg == nil {
			return queued[:i], true
		}
	}
	return queued, false
}

// drain is the buffered writer: it waits for console messages, paces
// flushes, and hands each message to Send.
func (s *Stream) drain(limiter *rate.Limiter) {
	defer close(s.done)

	for {
		s.console.waitPending()
		if limiter != nil {
			// Waiting here lets writes that land during the pause join
			// this flush.
			_ = limiter.Wait(context.Background())
		}

		batch, stop := s.console.takeAll()
		s.metrics.SetPending(0)

		messages := derefAll(batch)
		if s.opts.Coalesce {
			limit := s.opts.MaxMergeBytes
			if limit <= 0 {
				limit = settings.StdStreamMaxBytes()
			}
			messages = coalesce(messages, limit)
		}
		for _, msg := range messages {
			s.Send(types.OpConsole, msg.Payload(s.opts.Now()))
		}

		if stop {
			return
		}
	}
}

func derefAll(batch []*types.ConsoleMessage) []types.ConsoleMessage {
	out := make([]types.ConsoleMessage, 0, len(batch))
	for _, msg := range batch {
		out = append(out, *msg)
	}
	return out
}

// coalesce merges runs of plain-text stdout or stderr messages from the
// same cell, keeping each merged message within limit bytes. Prompts are
// never merged: each one expects its own reply.
func coalesce(messages []types.ConsoleMessage, limit int) []types.ConsoleMessage {
	out := make([]types.ConsoleMessage, 0, len(messages))
	for _, msg := range messages {
		if n := len(out); n > 0 && mergeable(out[n-1], msg) && len(out[n-1].Data)+len(msg.Data) <= limit {
			out[n-1].Data += msg.Data
			continue
		}
		out = append(out, msg)
	}
	return out
}

func mergeable(prev, next types.ConsoleMessage) bool {
	return prev.Channel == next.Channel &&
		prev.Channel != types.ChannelStdin &&
		prev.CellID == next.CellID &&
		prev.MimeType == types.MimeTextPlain &&
		next.MimeType == types.MimeTextPlain
}
