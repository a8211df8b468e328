// Package kernel runs cells against the console pipeline.
//
// A Kernel owns the shared stream, the console streams and the process-wide
// settings. Cells run one at a time: each run binds its cell ID, redirects
// the process descriptors when capture is enabled, and restores them on
// every exit path. A panicking cell is reported on its stderr as a
// traceback instead of taking the process down.
//
// Example Usage:
//
//	k, err := kernel.New(cfg, hub, inputs, logger, metrics)
//	if err != nil {
//	    return err
//	}
//	defer k.Shutdown(context.Background())
//
//	err = k.RunCell(ctx, id.NewCellID(), func(c *console.Console) error {
//	    fmt.Fprintln(c.Stdout, "hello")
//	    return nil
//	})
package kernel
