//go:build unix

package watcher

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/AgentOS/console/internal/testutil"
)

type recordingSink struct {
	mu  sync.Mutex
	buf strings.Builder
	err error
}

func (s *recordingSink) WriteString(text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.buf.WriteString(text)
}

func (s *recordingSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// target is a pipe standing in for a process stream: the watcher hijacks
// the write end and the test reads whatever still reaches the original.
type target struct {
	r  *os.File
	w  *os.File
	fd int
}

func newTarget(t *testing.T) *target {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	fd, err := rawFd(w)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return &target{r: r, w: w, fd: fd}
}

func write(t *testing.T, fd int, text string) {
	t.Helper()
	_, err := unix.Write(fd, []byte(text))
	require.NoError(t, err)
}

func TestCaptureWhileActiveOriginalAfterPause(t *testing.T) {
	tgt := newTarget(t)
	sink := &recordingSink{}

	w, err := New(tgt.fd, sink, WithName("stdout"))
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })
	assert.Equal(t, StateIdle, w.State())

	require.NoError(t, w.Start())
	assert.Equal(t, StateActive, w.State())
	write(t, tgt.fd, "captured")
	require.True(t, testutil.WaitFor(time.Second, func() bool { return sink.String() == "captured" }))

	require.NoError(t, w.Pause())
	assert.Equal(t, StatePaused, w.State())
	write(t, tgt.fd, "original")
	tgt.w.Close()

	got, err := io.ReadAll(tgt.r)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
	assert.Equal(t, "captured", sink.String())
}

func TestBackingReachesOriginal(t *testing.T) {
	tgt := newTarget(t)
	w, err := New(tgt.fd, &recordingSink{})
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	_, ok := w.Backing()
	assert.False(t, ok)

	require.NoError(t, w.Start())
	backing, ok := w.Backing()
	require.True(t, ok)
	write(t, backing, "direct")

	require.NoError(t, w.Pause())
	_, ok = w.Backing()
	assert.False(t, ok)

	tgt.w.Close()
	got, err := io.ReadAll(tgt.r)
	require.NoError(t, err)
	assert.Equal(t, "direct", string(got))
}

func TestRestartAfterPause(t *testing.T) {
	tgt := newTarget(t)
	sink := &recordingSink{}
	w, err := New(tgt.fd, sink)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, w.Start())
	write(t, tgt.fd, "one ")
	require.NoError(t, w.Pause())
	require.NoError(t, w.Start())
	write(t, tgt.fd, "two")

	assert.True(t, testutil.WaitFor(time.Second, func() bool { return sink.String() == "one two" }))
}

func TestInvalidTransitions(t *testing.T) {
	tgt := newTarget(t)
	w, err := New(tgt.fd, &recordingSink{})
	require.NoError(t, err)

	assert.ErrorIs(t, w.Pause(), ErrInvalidState)

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrInvalidState)

	require.NoError(t, w.Stop())
	assert.Equal(t, StateStopped, w.State())
	assert.NoError(t, w.Stop())
	assert.ErrorIs(t, w.Start(), ErrStopped)
	assert.ErrorIs(t, w.Pause(), ErrInvalidState)
}

func TestStopRestoresAndEndsForwarding(t *testing.T) {
	tgt := newTarget(t)
	sink := &recordingSink{}
	w, err := New(tgt.fd, sink)
	require.NoError(t, err)

	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("forwarding goroutine still running after Stop")
	}

	write(t, tgt.fd, "after")
	tgt.w.Close()
	got, err := io.ReadAll(tgt.r)
	require.NoError(t, err)
	assert.Equal(t, "after", string(got))
	assert.Empty(t, sink.String())

	_, err = w.reader.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = w.writer.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestSinkFailureEndsForwarding(t *testing.T) {
	tgt := newTarget(t)
	sink := &recordingSink{err: errors.New("sink closed")}
	w, err := New(tgt.fd, sink)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, w.Start())
	write(t, tgt.fd, "boom")

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("forwarding goroutine survived a sink failure")
	}
	assert.Equal(t, StateActive, w.State())

	// Nothing reads the pipe anymore, so the fd must not be captured again.
	require.NoError(t, w.Pause())
	assert.ErrorIs(t, w.Start(), ErrNotForwarding)
	assert.Equal(t, StatePaused, w.State())
	_, active := w.Backing()
	assert.False(t, active)
}

func TestSplitRuneAcrossWrites(t *testing.T) {
	tgt := newTarget(t)
	sink := &recordingSink{}
	w, err := New(tgt.fd, sink)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, w.Start())
	euro := []byte("€")
	write(t, tgt.fd, "price "+string(euro[:1]))
	time.Sleep(20 * time.Millisecond)
	write(t, tgt.fd, string(euro[1:])+"5")

	assert.True(t, testutil.WaitFor(time.Second, func() bool { return sink.String() == "price €5" }))
}

func TestPTYCapture(t *testing.T) {
	tgt := newTarget(t)
	sink := &recordingSink{}
	w, err := New(tgt.fd, sink, WithPTY())
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	require.NoError(t, w.Start())
	write(t, tgt.fd, "a\nb")

	assert.True(t, testutil.WaitFor(time.Second, func() bool { return sink.String() == "a\nb" }))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
