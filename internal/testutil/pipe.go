package testutil

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

// MockPipe is a testify mock of an outbound pipe.
type MockPipe struct {
	mock.Mock
}

// Send records the call and returns the configured error.
func (m *MockPipe) Send(msg types.KernelMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

// RecordingPipe keeps every message it is sent. An optional Err makes every
// Send fail after recording the attempt.
type RecordingPipe struct {
	mu       sync.Mutex
	messages []types.KernelMessage
	attempts int
	Err      error
}

// Send records msg.
func (p *RecordingPipe) Send(msg types.KernelMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (p *RecordingPipe) Messages() []types.KernelMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.KernelMessage(nil), p.messages...)
}

// Attempts returns how many times Send was called.
func (p *RecordingPipe) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Console returns the data of recorded console messages on channel, in
// order.
func (p *RecordingPipe) Console(channel types.Channel) []string {
	var out []string
	for _, msg := range p.Messages() {
		if msg.Op != types.OpConsole || msg.Data["channel"] != string(channel) {
			continue
		}
		data, _ := msg.Data["data"].(string)
		out = append(out, data)
	}
	return out
}

// Joined concatenates every recorded console message on channel.
func (p *RecordingPipe) Joined(channel types.Channel) string {
	var joined string
	for _, data := range p.Console(channel) {
		joined += data
	}
	return joined
}

// WaitFor polls until cond holds or timeout elapses, and reports whether
// cond held.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
