/*
Package resilience provides a circuit breaker for the outbound transport.

# Overview

A dead consumer must never stall the computation that produces console
output. The breaker sits in front of the outbound pipe: after a run of
failed sends it opens and rejects further sends immediately, then lets a
single trial send through once the timeout has passed.

# Usage

	breaker := resilience.New("transport", resilience.Settings{
		Timeout:     5 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(5),
	})

	err := breaker.Execute(func() error {
		return pipe.Send(msg)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// dropped without touching the transport
	}

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
