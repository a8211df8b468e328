// Package ws attaches a websocket client to the console pipeline.
//
// The Hub is the outbound Pipe of the kernel: every kernel message is
// written to the attached client as one JSON frame. One client is attached
// at a time; a new connection replaces the previous one. With no client
// attached, sends fail with ErrNoClient and the stream drops them.
//
// Message Types (Client → Server):
//   - stdin: reply to the oldest outstanding prompt ({"type":"stdin","text":"..."})
//   - run: run a command as a cell ({"type":"run","cell_id":"...","command":["ls","-l"]})
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - kernel messages: {"op":"console","data":{...}}
//   - run_complete: a command cell finished, with an error message on failure
//   - pong: reply to ping
//   - error: malformed or unknown frame
//
// Example Usage:
//
//	hub := ws.NewHub(cfg.Transport.WriteTimeout, logger, metrics)
//	k, _ := kernel.New(cfg, hub, inputs, logger, metrics)
//	router.GET("/console", hub.Handler(k))
package ws
