// Package providers holds the clients for the backends the control plane
// drives.
//
// Available Providers:
//   - httpclient: resty with a circuit breaker and upstream error mapping
//   - docker: Docker Engine API over its unix socket (inspect, logs)
//   - whisper: speech-to-text HTTP API
//   - ollama: completion API used for cleanup and punctuation
//
// Every client maps transport faults to upstream.ErrUnavailable and non-2xx
// replies to *upstream.Error.
package providers
