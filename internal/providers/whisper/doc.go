// Package whisper is the client for the speech-to-text backend's HTTP API
// (/transcribe, /health, /models).
package whisper
