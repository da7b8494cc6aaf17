/*
Package resilience provides the circuit breaker that guards calls to the
stack's backends (Docker Engine, Whisper, Ollama).

A breaker opens after repeated transport faults and fails fast until its
cool-down elapses, so a dead backend surfaces as "unavailable" immediately
instead of stalling each request for the full upstream timeout. Errors the
upstream returned deliberately (a non-2xx reply) can be excluded with
Settings.IsFailure so they do not trip the breaker.

# Usage

	breaker := resilience.New("whisper", resilience.DefaultSettings())

	text, err := resilience.Call(breaker, func() (string, error) {
		return client.Transcribe(ctx, req)
	})
	if resilience.IsOpen(err) {
		// backend unavailable
	}

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           v
	                                         Open
*/
package resilience
