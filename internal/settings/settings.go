// Package settings holds the process-wide runtime context that console
// sinks consult for their size limits.
//
// The context is installed by the kernel when it boots and cleared on
// shutdown. Lookups made before installation, or after teardown, fall back
// to the built-in defaults and never fail.
package settings

import (
	"errors"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/config"
)

// ErrNotInitialized is returned by Current when no context is installed.
var ErrNotInitialized = errors.New("runtime context not initialized")

const (
	DefaultOutputMaxBytes    = 5_000_000
	DefaultStdStreamMaxBytes = 1_000_000
)

// Context is the runtime state visible to code executing inside a cell.
type Context struct {
	Runtime config.RuntimeConfig
}

var current atomic.Pointer[Context]

// Install makes ctx the process-wide runtime context.
func Install(ctx *Context) {
	current.Store(ctx)
}

// Teardown removes the installed context.
func Teardown() {
	current.Store(nil)
}

// Current returns the installed context.
func Current() (*Context, error) {
	ctx := current.Load()
	if ctx == nil {
		return nil, ErrNotInitialized
	}
	return ctx, nil
}

// OutputMaxBytes is the size bound for rendered cell outputs.
func OutputMaxBytes() int {
	ctx, err := Current()
	if err != nil || ctx.Runtime.OutputMaxBytes <= 0 {
		return DefaultOutputMaxBytes
	}
	return ctx.Runtime.OutputMaxBytes
}

// StdStreamMaxBytes is the size bound for a single console write.
func StdStreamMaxBytes() int {
	ctx, err := Current()
	if err != nil || ctx.Runtime.StdStreamMaxBytes <= 0 {
		return DefaultStdStreamMaxBytes
	}
	return ctx.Runtime.StdStreamMaxBytes
}
