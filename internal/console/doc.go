// Package console provides the stdout, stderr and stdin substitutes a cell
// writes to and reads from. Writes become console messages tagged with the
// running cell and are relayed through a shared stream; reads prompt the
// remote consumer and block until it replies.
//
// Stdout and Stderr can additionally own a watcher on the process
// descriptor, so that native writes to fd 1 and 2 land in the same place
// while a Redirect scope is open.
package console
