// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: console output for human readability
//
// Every logger writes to stderr or to an explicit sink, never to stdout.
// While a cell runs, fd 1 and fd 2 point at capture pipes; the server
// therefore builds its logger with NewWithWriter over a duplicate of the
// original stderr so its own lines are not forwarded as cell output.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Named("watcher").Debug("fd redirected", zap.Int("fd", 1))
package logging
