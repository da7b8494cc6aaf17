// Package httpclient is the outbound HTTP layer shared by the Docker Engine,
// Whisper and Ollama clients: resty over a pooled transport, one circuit
// breaker per backend, and a uniform mapping of failures onto the upstream
// error vocabulary.
package httpclient
