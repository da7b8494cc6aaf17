// Package tracing gives every API request a trace ID and logs each finished
// span through zap on a background writer.
//
// A caller may send X-Trace-ID to have its own ID used, which lets a
// transcription request be matched against the control plane's logs. Spans
// that end with a 5xx or an error are logged at error level, 4xx at warn, the
// rest at debug.
package tracing
