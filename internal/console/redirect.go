package console

import (
	"io"

	"github.com/GriffinCanCode/AgentOS/console/internal/watcher"
)

type watched interface {
	Watcher() *watcher.Watcher
}

// Redirect starts capturing the descriptor behind w when w is a sink with a
// watcher, and returns the function that ends the capture. For any other
// writer it is a no-op.
func Redirect(w io.Writer) (restore func() error, err error) {
	ws, ok := w.(watched)
	if !ok || ws.Watcher() == nil {
		return func() error { return nil }, nil
	}

	fw := ws.Watcher()
	if err := fw.Start(); err != nil {
		return nil, err
	}
	return fw.Pause, nil
}

// RunRedirected runs fn with w redirected. The capture ends on every exit
// path, panics included.
func RunRedirected(w io.Writer, fn func() error) (err error) {
	restore, err := Redirect(w)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); err == nil {
			err = rerr
		}
	}()
	return fn()
}
