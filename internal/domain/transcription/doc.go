/*
Package transcription turns base64 audio into text through the Whisper
backend, optionally restoring punctuation and cleaning the result with an
LLM.

Each request walks a fixed sequence of stages:

	received -> decoded -> model_selected -> transcribed
	         -> [punctuation_restored] -> [cleaned] -> completed

A hard failure halts the request with a *StageError naming the stage and a
kind (ErrDecode, ErrModelUnavailable, ErrScratch, ErrUpstream,
ErrBackendUnavailable, ErrCanceled).
Punctuation restoration and cleanup are best-effort: their failures are
reported in the result and the raw transcript is kept.

Decoded audio lives in a uniquely named scratch file only while the backend
call is in flight.
*/
package transcription
