package transcription

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aistack/controlpanel/internal/infrastructure/monitoring"
	"github.com/aistack/controlpanel/internal/providers/whisper"
	"github.com/aistack/controlpanel/internal/shared/id"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Model selects the transcription model variant.
type Model string

const (
	ModelStandard  Model = "standard"
	ModelFinetuned Model = "finetuned"
)

const defaultSuffix = ".wav"

const cleanupPrompt = `Clean up this speech-to-text transcription. Fix punctuation, remove filler words (um, uh, like), fix obvious transcription errors, and improve readability while preserving the original meaning and tone. Return ONLY the cleaned text, no explanations.

Transcription:
%s

Cleaned text:`

// Request is one transcription job. Audio is base64 encoded.
type Request struct {
	Audio              string
	Filename           string
	Language           string
	Model              Model
	RestorePunctuation bool
}

// Segment is a timestamped part of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Optional reports a best-effort stage that may not have run.
type Optional struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Result is a completed transcription.
type Result struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Model    Model  `json:"model"`
	// ModelName is the model that actually ran.
	ModelName   string    `json:"model_name"`
	Segments    []Segment `json:"segments"`
	NoSpeech    bool      `json:"no_speech"`
	Punctuation Optional  `json:"punctuation"`
}

// Cleanup is a transcription passed through the LLM. On LLM failure Cleaned
// is empty, Failure explains why, and Result.Text still holds the transcript.
type Cleanup struct {
	Result
	Cleaned  string `json:"cleaned,omitempty"`
	LLMModel string `json:"llm_model"`
	Failure  string `json:"cleanup_error,omitempty"`
}

// Succeeded reports whether the LLM produced cleaned text.
func (c Cleanup) Succeeded() bool {
	return c.Failure == "" && c.Cleaned != ""
}

// Transcriber is the speech-to-text backend.
type Transcriber interface {
	Transcribe(ctx context.Context, req whisper.TranscribeRequest) (whisper.Transcript, error)
	Health(ctx context.Context) (whisper.Health, error)
	Models(ctx context.Context) (whisper.Models, error)
}

// Completer is the LLM backend.
type Completer interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Punctuator restores punctuation in a transcript.
type Punctuator interface {
	Restore(ctx context.Context, text string) (string, error)
}

// Config holds the pipeline's fixed settings.
type Config struct {
	// FinetuneModel is empty when no fine-tuned model is deployed.
	FinetuneModel string
	// StandardModel labels the backend's default model.
	StandardModel string
	// CleanupModel is the LLM used for cleanup.
	CleanupModel string
	// ScratchDir holds decoded audio during upload; empty means os.TempDir.
	ScratchDir string
}

// Pipeline runs transcription requests.
type Pipeline struct {
	cfg        Config
	whisper    Transcriber
	llm        Completer
	punctuator Punctuator
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg Config, transcriber Transcriber, llm Completer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		whisper: transcriber,
		llm:     llm,
		logger:  logger,
	}
}

// WithPunctuator enables local punctuation restoration.
func (p *Pipeline) WithPunctuator(punctuator Punctuator) *Pipeline {
	p.punctuator = punctuator
	return p
}

// WithMetrics attaches pipeline counters.
func (p *Pipeline) WithMetrics(metrics *monitoring.Metrics) *Pipeline {
	p.metrics = metrics
	return p
}

// CleanupModel returns the LLM used for cleanup.
func (p *Pipeline) CleanupModel() string {
	return p.cfg.CleanupModel
}

// Transcribe decodes the payload, selects the model and calls the backend.
// Decode and model failures happen before any network call.
func (p *Pipeline) Transcribe(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	audio, err := decodeAudio(req.Audio)
	if err != nil {
		return Result{}, p.halt(fail(StageDecoded, ErrDecode, err))
	}

	modelName, err := p.selectModel(req.Model)
	if err != nil {
		return Result{}, p.halt(fail(StageModelSelected, ErrModelUnavailable, err))
	}

	// Without a local punctuator the backend restores punctuation itself.
	backendPunctuation := req.RestorePunctuation && p.punctuator == nil

	transcript, err := p.upload(ctx, req, audio, modelName, backendPunctuation)
	if err != nil {
		return Result{}, p.halt(fail(StageTranscribed, kindOf(err), err))
	}
	p.metrics.RecordPipeline(string(StageTranscribed), true)

	result := Result{
		Text:      strings.TrimSpace(transcript.Text),
		Language:  transcript.Language,
		Model:     modelOrDefault(req.Model),
		ModelName: modelName,
		Segments:  make([]Segment, len(transcript.Segments)),
	}
	for i, seg := range transcript.Segments {
		result.Segments[i] = Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}
	if result.Language == "" {
		result.Language = req.Language
	}

	if result.Text == "" {
		result.NoSpeech = true
		result.Punctuation = Optional{Reason: "no speech detected"}
		p.complete(start)
		return result, nil
	}

	switch {
	case !req.RestorePunctuation:
		result.Punctuation = Optional{Reason: "not requested"}
	case backendPunctuation:
		result.Punctuation = Optional{Reason: "delegated to transcription backend"}
	default:
		result.Text, result.Punctuation = p.restorePunctuation(ctx, result.Text)
	}

	p.complete(start)
	return result, nil
}

// TranscribeAndClean transcribes and then asks the LLM to clean the text. A
// failed cleanup is not an error: the raw transcript is returned with the
// failure noted. Empty transcripts skip the LLM entirely.
func (p *Pipeline) TranscribeAndClean(ctx context.Context, req Request) (Cleanup, error) {
	result, err := p.Transcribe(ctx, req)
	if err != nil {
		return Cleanup{}, err
	}

	out := Cleanup{Result: result, LLMModel: p.cfg.CleanupModel}
	if result.NoSpeech {
		return out, nil
	}

	cleaned, err := p.llm.Generate(ctx, p.cfg.CleanupModel, fmt.Sprintf(cleanupPrompt, result.Text))
	if err == nil && cleaned == "" {
		err = errors.New("LLM returned no text")
	}
	if err != nil {
		p.logger.Warn("cleanup failed, returning raw transcript",
			zap.String("model", p.cfg.CleanupModel),
			zap.Error(err),
		)
		p.metrics.RecordPipeline(string(StageCleaned), false)
		out.Failure = err.Error()
		return out, nil
	}

	p.metrics.RecordPipeline(string(StageCleaned), true)
	out.Cleaned = cleaned
	return out, nil
}

func (p *Pipeline) selectModel(model Model) (string, error) {
	switch modelOrDefault(model) {
	case ModelStandard:
		return p.cfg.StandardModel, nil
	case ModelFinetuned:
		if p.cfg.FinetuneModel == "" {
			return "", errors.New("no fine-tuned model is configured")
		}
		return p.cfg.FinetuneModel, nil
	}
	return "", fmt.Errorf("unknown model %q", model)
}

func modelOrDefault(model Model) Model {
	if model == "" {
		return ModelStandard
	}
	return model
}

// upload writes the audio to a request-unique scratch file for the duration
// of the backend call. The file is removed on every return path.
func (p *Pipeline) upload(ctx context.Context, req Request, audio []byte, modelName string, punctuate bool) (whisper.Transcript, error) {
	suffix := inferSuffix(req.Filename, audio)

	scratch, err := os.CreateTemp(p.cfg.ScratchDir, id.NewScratchName("audio")+"-*"+suffix)
	if err != nil {
		return whisper.Transcript{}, fmt.Errorf("%w: %w", ErrScratch, err)
	}
	defer os.Remove(scratch.Name())
	defer scratch.Close()

	if _, err := scratch.Write(audio); err != nil {
		return whisper.Transcript{}, fmt.Errorf("%w: %w", ErrScratch, err)
	}
	if _, err := scratch.Seek(0, 0); err != nil {
		return whisper.Transcript{}, fmt.Errorf("%w: %w", ErrScratch, err)
	}

	filename := req.Filename
	if filename == "" {
		filename = "audio" + suffix
	}

	return p.whisper.Transcribe(ctx, whisper.TranscribeRequest{
		Audio:              whisper.Upload{Filename: filename, Body: scratch},
		Language:           req.Language,
		RestorePunctuation: punctuate,
		UseFinetune:        modelOrDefault(req.Model) == ModelFinetuned,
		Model:              modelName,
	})
}

func (p *Pipeline) restorePunctuation(ctx context.Context, text string) (string, Optional) {
	restored, err := p.punctuator.Restore(ctx, text)
	if err != nil {
		p.logger.Warn("punctuation restoration failed, keeping transcript", zap.Error(err))
		p.metrics.RecordPipeline(string(StagePunctuationRestored), false)
		return text, Optional{Reason: err.Error()}
	}
	p.metrics.RecordPipeline(string(StagePunctuationRestored), true)
	return restored, Optional{Applied: true}
}

func (p *Pipeline) halt(err *StageError) error {
	p.logger.Warn("transcription failed",
		zap.String("stage", string(err.Stage)),
		zap.Error(err.Err),
	)
	p.metrics.RecordPipeline(string(err.Stage), false)
	return err
}

func (p *Pipeline) complete(start time.Time) {
	p.metrics.RecordPipeline(string(StageCompleted), true)
	p.logger.Debug("transcription completed", zap.Duration("elapsed", time.Since(start)))
}

// decodeAudio accepts standard base64 with or without padding, optionally
// wrapped in a data URL.
func decodeAudio(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, errors.New("empty audio payload")
	}

	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rawErr error
		audio, rawErr = base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
		}
	}
	return audio, nil
}

func isMedia(mime string) bool {
	return strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/")
}

// inferSuffix picks the scratch file suffix: the filename's extension, then
// the sniffed content type, then .wav.
func inferSuffix(filename string, audio []byte) string {
	if ext := filepath.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	if detected := mimetype.Detect(audio); isMedia(detected.String()) && detected.Extension() != "" {
		return detected.Extension()
	}
	return defaultSuffix
}
