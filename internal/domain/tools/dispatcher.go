package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aistack/controlpanel/internal/domain/transcription"
	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// Content is one block of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Output is a tool's reply. IsError marks a call that ran but failed.
type Output struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text returns the concatenated text blocks.
func (o Output) Text() string {
	parts := make([]string, len(o.Content))
	for i, c := range o.Content {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}

func text(s string) Output {
	return Output{Content: []Content{{Type: "text", Text: s}}}
}

func failure(s string) Output {
	out := text(s)
	out.IsError = true
	return out
}

// Pipeline is the transcription surface the tools drive.
type Pipeline interface {
	Transcribe(ctx context.Context, req transcription.Request) (transcription.Result, error)
	TranscribeAndClean(ctx context.Context, req transcription.Request) (transcription.Cleanup, error)
	Health(ctx context.Context) (transcription.Health, error)
	CleanupModel() string
}

type audioArgs struct {
	AudioBase64 string `json:"audio_base64"`
	Filename    string `json:"filename"`
	Language    string `json:"language"`
	UseFinetune bool   `json:"use_finetune"`
}

// Dispatcher validates tool arguments and runs tools.
type Dispatcher struct {
	pipeline Pipeline
	schemas  map[Name]*jsonschema.Schema
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over the transcription pipeline.
func NewDispatcher(pipeline Pipeline, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		pipeline: pipeline,
		schemas:  compileSchemas(),
		logger:   logger,
	}
}

// Call runs a tool. Unknown names return ErrUnknownTool and arguments that
// violate the tool's schema return ErrInvalidArguments; both before any
// backend is contacted. Failures of the tool itself are reported in the
// Output with IsError set.
func (d *Dispatcher) Call(ctx context.Context, tool string, rawArgs []byte) (Output, error) {
	name, err := ParseName(tool)
	if err != nil {
		return Output{}, err
	}

	args, err := d.decode(name, rawArgs)
	if err != nil {
		return Output{}, err
	}

	d.logger.Info("tool call", zap.String("tool", string(name)))

	switch name {
	case TranscribeRaw:
		return d.transcribe(ctx, args, transcription.ModelStandard), nil
	case TranscribeFinetune:
		return d.transcribe(ctx, args, transcription.ModelFinetuned), nil
	case TranscribeClean:
		return d.clean(ctx, args), nil
	case WhisperHealth:
		return d.health(ctx), nil
	}
	return Output{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func (d *Dispatcher) decode(name Name, raw []byte) (audioArgs, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}

	var doc any
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return audioArgs{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := d.schemas[name].Validate(doc); err != nil {
		return audioArgs{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	var args audioArgs
	if err := sonic.Unmarshal(raw, &args); err != nil {
		return audioArgs{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args, nil
}

func (a audioArgs) request(model transcription.Model) transcription.Request {
	filename := a.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	return transcription.Request{
		Audio:              a.AudioBase64,
		Filename:           filename,
		Language:           a.Language,
		Model:              model,
		RestorePunctuation: true,
	}
}

func (d *Dispatcher) transcribe(ctx context.Context, args audioArgs, model transcription.Model) Output {
	result, err := d.pipeline.Transcribe(ctx, args.request(model))
	if err != nil {
		return failure(errorText(err))
	}
	if result.NoSpeech {
		return text("No speech detected in audio")
	}

	label := result.ModelName
	if model == transcription.ModelFinetuned {
		label = "fine-tuned model"
	}
	return text(fmt.Sprintf("**Transcription (%s):**\n\n%s\n\nLanguage: %s",
		label, result.Text, orUnknown(result.Language)))
}

func (d *Dispatcher) clean(ctx context.Context, args audioArgs) Output {
	model := transcription.ModelStandard
	if args.UseFinetune {
		model = transcription.ModelFinetuned
	}

	out, err := d.pipeline.TranscribeAndClean(ctx, args.request(model))
	if err != nil {
		return failure(errorText(err))
	}
	if out.NoSpeech {
		return text("No speech detected in audio")
	}
	if !out.Succeeded() {
		return text(fmt.Sprintf("**Raw Transcription:**\n%s\n\n**Cleanup failed:** %s", out.Text, out.Failure))
	}

	label := out.ModelName
	if model == transcription.ModelFinetuned {
		label = "fine-tuned"
	}
	return text(fmt.Sprintf("**Cleaned Transcription (%s + %s):**\n\n%s\n\n---\n**Original (raw):**\n%s",
		label, out.LLMModel, out.Cleaned, out.Text))
}

func (d *Dispatcher) health(ctx context.Context) Output {
	health, err := d.pipeline.Health(ctx)
	if err != nil {
		if upErr, ok := errorsAsUpstream(err); ok {
			return failure(fmt.Sprintf("Whisper API error: %d", upErr.Status))
		}
		return failure(fmt.Sprintf("Failed to connect to Whisper: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Whisper Status: %s\n", orUnknown(health.Status))
	fmt.Fprintf(&b, "Model: %s\n", orUnknown(health.Model))
	fmt.Fprintf(&b, "Device: %s\n", orUnknown(health.Device))
	fmt.Fprintf(&b, "Punctuation Available: %t", health.PunctuationAvailable)
	if health.Models != nil && len(health.Models.Available) > 0 {
		fmt.Fprintf(&b, "\nAvailable Models: %s", strings.Join(health.Models.Available, ", "))
	}
	return text(b.String())
}

// errorText renders a pipeline failure with the stage it stopped at.
func errorText(err error) string {
	var stageErr *transcription.StageError
	if errors.As(err, &stageErr) {
		return fmt.Sprintf("Error: %v (stage: %s)", stageErr.Err, stageErr.Stage)
	}
	return fmt.Sprintf("Error: %v", err)
}

func errorsAsUpstream(err error) (*transcription.UpstreamError, bool) {
	var upErr *transcription.UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
