// Package main is the entry point for the console redirection server.
//
// The server runs a kernel whose console output (stdout, stderr and stdin
// prompts) is forwarded to a single websocket client as "console" messages.
// With descriptor capture enabled, fds 1 and 2 are redirected into pipes so
// writes from child processes and native code are forwarded too.
//
// The server listens on 127.0.0.1 by default. A console client can run
// commands, so browsers may connect only from the server's own origin or
// from ALLOWED_ORIGINS (comma separated).
//
// Configuration:
//   - Environment variables (12-factor)
//   - TOML or YAML file (-config)
//   - CLI flags (override env vars and file)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -config console.toml
//
//	# Development mode (colored logs, debug level), no fd capture
//	./server -dev -no-capture
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
