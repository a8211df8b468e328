package stream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/testutil"
	"github.com/GriffinCanCode/AgentOS/console/internal/types"
)

func unbuffered() Options {
	opts := DefaultOptions()
	opts.RedirectConsole = false
	opts.BreakerFailures = 0
	return opts
}

func buffered() Options {
	opts := DefaultOptions()
	opts.FlushesPerSecond = 0
	opts.Coalesce = false
	return opts
}

func TestSendForwardsToPipe(t *testing.T) {
	pipe := &testutil.MockPipe{}
	pipe.On("Send", types.KernelMessage{Op: "status", Data: map[string]any{"ok": true}}).Return(nil).Once()

	s := New(pipe, NewQueue(), unbuffered())
	s.Send("status", map[string]any{"ok": true})

	pipe.AssertExpectations(t)
}

func TestSendSwallowsTransportErrors(t *testing.T) {
	pipe := &testutil.MockPipe{}
	pipe.On("Send", mock.Anything).Return(errors.New("broken pipe"))

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	opts := unbuffered()
	opts.Metrics = metrics
	s := New(pipe, NewQueue(), opts)

	assert.NotPanics(t, func() {
		s.Send("status", nil)
		s.Send("status", nil)
	})
	assert.Equal(t, int64(2), metrics.GetSnapshot().SendFailures)
}

func TestSendRecoversPipePanic(t *testing.T) {
	pipe := &testutil.MockPipe{}
	pipe.On("Send", mock.Anything).Run(func(mock.Arguments) { panic("closed") }).Return(nil).Once()
	pipe.On("Send", mock.Anything).Return(nil).Once()

	s := New(pipe, NewQueue(), unbuffered())
	assert.NotPanics(t, func() { s.Send("status", nil) })

	// The send lock must have been released.
	done := make(chan struct{})
	go func() {
		s.Send("status", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second send blocked")
	}
	pipe.AssertNumberOfCalls(t, "Send", 2)
}

func TestBreakerShedsSendsOnDeadTransport(t *testing.T) {
	pipe := &testutil.RecordingPipe{Err: errors.New("connection reset")}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	opts := unbuffered()
	opts.BreakerFailures = 2
	opts.BreakerCooldown = time.Hour
	opts.Metrics = metrics
	s := New(pipe, NewQueue(), opts)

	for i := 0; i < 5; i++ {
		s.Send("status", nil)
	}
	assert.Equal(t, 2, pipe.Attempts())
	assert.Equal(t, float64(3), promtest.ToFloat64(metrics.SendsShed))
}

func TestSendsAreSerialized(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		overlap  bool
	)
	pipe := PipeFunc(func(types.KernelMessage) error {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			overlap = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	s := New(pipe, NewQueue(), unbuffered())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send("status", nil)
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
}

func TestCellIDAccessors(t *testing.T) {
	s := New(&testutil.RecordingPipe{}, NewQueue(), unbuffered())

	_, ok := s.CellID()
	assert.False(t, ok)

	s.SetCellID("cell-1")
	cell, ok := s.CellID()
	assert.True(t, ok)
	assert.Equal(t, id.CellID("cell-1"), cell)

	s.SetCellID("")
	_, ok = s.CellID()
	assert.False(t, ok)
}

func TestEnqueueWithoutBufferSendsDirectly(t *testing.T) {
	pipe := &testutil.RecordingPipe{}
	s := New(pipe, NewQueue(), unbuffered())

	assert.False(t, s.RedirectConsole())
	assert.True(t, s.Enqueue(types.ConsoleMessage{Channel: types.ChannelStdout, CellID: "c", Data: "hi", MimeType: types.MimeTextPlain}))
	assert.Equal(t, []string{"hi"}, pipe.Console(types.ChannelStdout))

	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed without a drain goroutine")
	}
}

func TestDrainDeliversInOrder(t *testing.T) {
	pipe := &testutil.RecordingPipe{}
	s := New(pipe, NewQueue(), buffered())

	for _, data := range []string{"one", "two", "three"} {
		require.True(t, s.Enqueue(types.ConsoleMessage{Channel: types.ChannelStdout, CellID: "c", Data: data, MimeType: types.MimeTextPlain}))
	}
	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain goroutine did not exit")
	}
	assert.Equal(t, []string{"one", "two", "three"}, pipe.Console(types.ChannelStdout))

	msg := pipe.Messages()[0]
	assert.Equal(t, types.OpConsole, msg.Op)
	assert.Equal(t, "c", msg.Data["cell_id"])
	assert.Equal(t, "text/plain", msg.Data["mimetype"])
	assert.Contains(t, msg.Data, "timestamp")
}

func TestStopIsIdempotentAndDropsLateMessages(t *testing.T) {
	pipe := &testutil.RecordingPipe{}
	s := New(pipe, NewQueue(), buffered())

	s.Stop()
	s.Stop()

	<-s.Done()
	assert.False(t, s.Enqueue(types.ConsoleMessage{Channel: types.ChannelStdout, CellID: "c", Data: "late", MimeType: types.MimeTextPlain}))
	assert.Empty(t, pipe.Messages())
}

func TestDrainSurvivesDeadTransport(t *testing.T) {
	pipe := &testutil.RecordingPipe{Err: errors.New("gone")}
	opts := buffered()
	opts.BreakerFailures = 1
	opts.BreakerCooldown = time.Hour
	s := New(pipe, NewQueue(), opts)

	for i := 0; i < 100; i++ {
		s.Enqueue(types.ConsoleMessage{Channel: types.ChannelStderr, CellID: "c", Data: "x", MimeType: types.MimeTextPlain})
	}
	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain goroutine blocked on a dead transport")
	}
	assert.Equal(t, 1, pipe.Attempts())
}

func TestPacedDrainCoalesces(t *testing.T) {
	pipe := &testutil.RecordingPipe{}
	opts := DefaultOptions()
	opts.FlushesPerSecond = 1
	opts.Burst = 1
	s := New(pipe, NewQueue(), opts)

	// The first flush consumes the burst token; everything written while
	// the second flush waits for its token is merged.
	s.Enqueue(types.ConsoleMessage{Channel: types.ChannelStdout, CellID: "c", Data: "first", MimeType: types.MimeTextPlain})
	require.True(t, testutil.WaitFor(time.Second, func() bool { return len(pipe.Messages()) == 1 }))

	for _, data := range []string{"a", "b", "c"} {
		s.Enqueue(types.ConsoleMessage{Channel: types.ChannelStdout, CellID: "c", Data: data, MimeType: types.MimeTextPlain})
	}
	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("drain goroutine did not exit")
	}
	assert.Equal(t, []string{"first", "abc"}, pipe.Console(types.ChannelStdout))
}
