/*
Package lifecycle starts, stops and restarts stack services through
docker compose.

	start   -> docker compose -f <file> up -d <service>
	stop    -> docker compose -f <file> stop <service>
	restart -> docker compose -f <file> restart <service>

Commands that exit non-zero, or cannot be started at all, are reported in
the Result rather than as errors, so a stack-wide action always returns one
Result per member. Commands against the same service are serialized.
*/
package lifecycle
