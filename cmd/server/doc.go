// Package main is the entry point for the local AI stack control panel.
//
// The server exposes the stack's status, GPU telemetry, lifecycle actions,
// container logs and the transcription tool surface over HTTP.
//
//	Browser / agent → control panel → Docker Engine (status, logs)
//	                                → docker compose (lifecycle)
//	                                → Whisper, Ollama (transcription)
//
// Environment variables configure everything; -port, -compose, -directory,
// -log-level and -dev override them.
//
// Usage:
//
//	./server -port 8090 -compose /srv/stack/docker-compose.yml
//
//	# Development mode (console logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
