// Package ollama is the client for the local LLM runtime. It backs transcript
// cleanup and, when a punctuation model is configured, punctuation
// restoration.
package ollama
