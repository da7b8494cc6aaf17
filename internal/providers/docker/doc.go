// Package docker is a minimal Docker Engine API client: container inspect
// and log tailing over the engine's unix socket. Lifecycle commands do not go
// through here; they run through docker compose.
package docker
