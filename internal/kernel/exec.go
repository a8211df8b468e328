package kernel

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/console/internal/console"
	"github.com/GriffinCanCode/AgentOS/console/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/console/internal/watcher"
)

// Command is a child process run as a cell.
type Command struct {
	Name string
	Args []string
	// Interactive feeds the child's stdin from console prompts.
	Interactive bool
}

// Exec runs cmd as cell. With descriptor capture the child inherits fds 1
// and 2 and its native writes are picked up by the watchers; otherwise its
// output is decoded to text and copied through the console sinks.
func (k *Kernel) Exec(ctx context.Context, cell id.CellID, cmd Command) error {
	return k.RunCell(ctx, cell, func(c *console.Console) error {
		proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
		var stdout, stderr *watcher.TextWriter
		if c.Stdout.Watcher() != nil {
			proc.Stdout, proc.Stderr = os.Stdout, os.Stderr
		} else {
			// Child output is arbitrary bytes; the sinks only take text.
			stdout, stderr = watcher.NewTextWriter(c.Stdout), watcher.NewTextWriter(c.Stderr)
			proc.Stdout, proc.Stderr = stdout, stderr
		}

		var stdin io.WriteCloser
		if cmd.Interactive {
			pipe, err := proc.StdinPipe()
			if err != nil {
				return fmt.Errorf("failed to open stdin for %s: %w", cmd.Name, err)
			}
			stdin = pipe
		}

		if err := proc.Start(); err != nil {
			return fmt.Errorf("failed to start %s: %w", cmd.Name, err)
		}
		k.logger.Debug("Started child process",
			zap.String("cell_id", cell.String()),
			zap.String("command", cmd.Name),
			zap.Int("pid", proc.Process.Pid))

		var fed chan struct{}
		stopFeed := func() {}
		if stdin != nil {
			var feedCtx context.Context
			feedCtx, stopFeed = context.WithCancel(ctx)
			fed = make(chan struct{})
			go func() {
				defer close(fed)
				feed(feedCtx, c.Stdin, stdin)
			}()
		}

		err := proc.Wait()
		if stdout != nil {
			_ = stdout.Flush()
			_ = stderr.Flush()
		}
		// The feeder must be gone before the cell ends so no prompt of it is
		// tagged with the next cell.
		stopFeed()
		if fed != nil {
			<-fed
		}
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	})
}

// feed forwards console replies to a child's stdin, one line per prompt,
// until ctx ends or the child closes its end.
func feed(ctx context.Context, in *console.Stdin, w io.WriteCloser) {
	defer w.Close()
	for {
		line, err := in.ReadLineContext(ctx, "")
		if err != nil {
			return
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return
		}
	}
}
