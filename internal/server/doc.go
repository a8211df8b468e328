// Package server wires the console pipeline into an HTTP service.
//
// This package orchestrates all components:
//   - Kernel with its stream, console streams and fd watchers
//   - WebSocket hub as the kernel's outbound pipe
//   - HTTP routing with Gin framework
//   - Middleware stack (recovery, request logging, tracing, metrics, CORS, rate limiting)
//
// Routes:
//   - GET  /              service status
//   - GET  /health        pipeline health
//   - GET  /metrics       Prometheus metrics
//   - GET  /metrics/json  console counters as JSON
//   - POST /stdin         reply to the oldest prompt
//   - GET  /console       console websocket
//
// Example Usage:
//
//	srv, err := server.New(cfg, logger, metrics)
//	if err != nil {
//	    return err
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
