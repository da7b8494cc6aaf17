package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Name identifies a tool.
type Name string

const (
	TranscribeRaw      Name = "transcribe_raw"
	TranscribeFinetune Name = "transcribe_finetune"
	TranscribeClean    Name = "transcribe_clean"
	WhisperHealth      Name = "whisper_health"
)

// All lists every tool in presentation order.
func All() []Name {
	return []Name{TranscribeRaw, TranscribeFinetune, TranscribeClean, WhisperHealth}
}

// ParseName validates a tool name.
func ParseName(s string) (Name, error) {
	switch n := Name(s); n {
	case TranscribeRaw, TranscribeFinetune, TranscribeClean, WhisperHealth:
		return n, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, s)
}

// Definition describes a tool to a calling agent.
type Definition struct {
	Name        Name            `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

const audioProperties = `
    "audio_base64": {
      "type": "string",
      "description": "Base64-encoded audio file (wav, mp3, m4a, etc.)"
    },
    "filename": {
      "type": "string",
      "description": "Original filename with extension (e.g., 'recording.wav')",
      "default": "audio.wav"
    },
    "language": {
      "type": "string",
      "description": "Language code (e.g., 'en', 'he'). Leave empty for auto-detect.",
      "default": ""
    }`

const transcribeSchema = `{
  "type": "object",
  "properties": {` + audioProperties + `
  },
  "required": ["audio_base64"]
}`

const cleanSchema = `{
  "type": "object",
  "properties": {` + audioProperties + `,
    "use_finetune": {
      "type": "boolean",
      "description": "Use fine-tuned model instead of large-v3-turbo",
      "default": false
    }
  },
  "required": ["audio_base64"]
}`

const healthSchema = `{
  "type": "object",
  "properties": {}
}`

// Definitions returns the description and input schema of every tool.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(All()))
	for _, name := range All() {
		defs = append(defs, definition(name))
	}
	return defs
}

func definition(name Name) Definition {
	switch name {
	case TranscribeRaw:
		return Definition{
			Name:        name,
			Description: "Transcribe audio using Whisper large-v3-turbo. Returns raw transcription without cleanup. Input: base64-encoded audio file.",
			InputSchema: json.RawMessage(transcribeSchema),
		}
	case TranscribeFinetune:
		return Definition{
			Name:        name,
			Description: "Transcribe audio using the fine-tuned Whisper model (optimized for the owner's voice and accent). Returns raw transcription. Input: base64-encoded audio file.",
			InputSchema: json.RawMessage(transcribeSchema),
		}
	case TranscribeClean:
		return Definition{
			Name:        name,
			Description: "Transcribe audio and clean up the text using Ollama LLM. Fixes punctuation, removes filler words, improves coherence. Input: base64-encoded audio file.",
			InputSchema: json.RawMessage(cleanSchema),
		}
	case WhisperHealth:
		return Definition{
			Name:        name,
			Description: "Check Whisper service health and current model info",
			InputSchema: json.RawMessage(healthSchema),
		}
	}
	panic("tools: no definition for " + string(name))
}

func compileSchemas() map[Name]*jsonschema.Schema {
	schemas := make(map[Name]*jsonschema.Schema, len(All()))
	for _, name := range All() {
		def := definition(name)
		schemas[name] = jsonschema.MustCompileString(string(name)+".schema.json", string(def.InputSchema))
	}
	return schemas
}
