/*
Package stream is the thread-safe hub every console channel routes through.

# Overview

A Stream owns a handle to the outbound Pipe (shared with producer
goroutines, never closed by the Stream), a lock that serializes sends, an
optional console buffer with its condition variable, and the InputQueue
replies to stdin prompts are pulled from.

	producer --Enqueue--> console buffer --drain--> Send --> Pipe --> consumer
	consumer --Put--> InputQueue --Get--> stdin prompt caller

# Guarantees

  - Send calls are mutually exclusive across goroutines; outbound order is
    lock acquisition order.
  - Transport failures are logged and dropped. Send never returns an error
    and never panics, so a dead consumer cannot take the producer down.
  - Buffer mutations and notifications happen with the buffer lock held.
    The drain goroutine delivers messages in append order.
  - Stop appends the terminal sentinel and signals once; it does not wait
    for the drain goroutine (use Done for that).
*/
package stream
