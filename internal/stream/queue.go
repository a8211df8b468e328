package stream

import (
	"context"
	"sync"
)

// InputQueue supplies replies to stdin prompts. Get blocks until a reply is
// available and has no timeout.
type InputQueue interface {
	Get() string
}

// ContextQueue is an InputQueue whose wait can be cancelled. Abandon gives
// up on a prompt that was already shown: its reply, queued or still to come,
// is discarded so it cannot answer a later prompt.
type ContextQueue interface {
	InputQueue
	GetContext(ctx context.Context) (string, error)
	Abandon()
}

// Queue is an unbounded FIFO of reply strings. Put never blocks.
type Queue struct {
	mu    sync.Mutex
	items []string
	// abandoned counts replies owed to prompts nobody waits for anymore.
	abandoned int
	signal    chan struct{}
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Put appends a reply and wakes one waiting reader.
func (q *Queue) Put(reply string) {
	q.mu.Lock()
	if q.abandoned > 0 {
		q.abandoned--
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, reply)
	q.mu.Unlock()
	q.notify()
}

// Abandon discards the reply to the oldest unanswered prompt. Replies are
// matched to prompts in order, so that is the head of the queue if one is
// waiting, otherwise the next Put.
func (q *Queue) Abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		q.items[0] = ""
		q.items = q.items[1:]
		return
	}
	q.abandoned++
}

// Get blocks until a reply is available and returns it.
func (q *Queue) Get() string {
	reply, _ := q.GetContext(context.Background())
	return reply
}

// GetContext is Get with cancellation. A cancelled wait consumes nothing.
func (q *Queue) GetContext(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			reply := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.notify()
			}
			return reply, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Len reports the number of queued replies.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
