// Package tools is the tool-call surface over the transcription pipeline:
// a closed set of named tools, each with a JSON schema for its arguments
// and a plain-text reply meant for an agent to read.
package tools
