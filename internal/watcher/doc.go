// Package watcher hijacks an OS-level file descriptor so that bytes written
// to it by any code in the process, native libraries and inherited child
// processes included, are forwarded to a text sink.
//
// A Watcher moves through Idle, Active, Paused and Stopped. Start swaps a
// pipe onto the descriptor, Pause swaps the original back, Stop restores
// the descriptor if needed and closes the pipe for good. Transitions are
// expected to be driven by a single goroutine.
package watcher
