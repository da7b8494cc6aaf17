package transcription

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aistack/controlpanel/internal/providers/whisper"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWhisper struct {
	mock.Mock
}

func (m *mockWhisper) Transcribe(ctx context.Context, req whisper.TranscribeRequest) (whisper.Transcript, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(whisper.Transcript), args.Error(1)
}

func (m *mockWhisper) Health(ctx context.Context) (whisper.Health, error) {
	args := m.Called(ctx)
	return args.Get(0).(whisper.Health), args.Error(1)
}

func (m *mockWhisper) Models(ctx context.Context) (whisper.Models, error) {
	args := m.Called(ctx)
	return args.Get(0).(whisper.Models), args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, model, prompt string) (string, error) {
	args := m.Called(ctx, model, prompt)
	return args.String(0), args.Error(1)
}

type punctuatorFunc func(ctx context.Context, text string) (string, error)

func (f punctuatorFunc) Restore(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

var wavBytes = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)

func encoded(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

type fixture struct {
	whisper *mockWhisper
	llm     *mockLLM
	scratch string
	cfg     Config
}

func newFixture(t *testing.T) *fixture {
	scratch := t.TempDir()
	return &fixture{
		whisper: new(mockWhisper),
		llm:     new(mockLLM),
		scratch: scratch,
		cfg: Config{
			StandardModel: "large-v3-turbo",
			CleanupModel:  "llama3.2",
			ScratchDir:    scratch,
		},
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(f.cfg, f.whisper, f.llm, zap.NewNop())
}

func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTranscribeMalformedPayload(t *testing.T) {
	f := newFixture(t)

	for _, payload := range []string{"not base64!!", "", "   "} {
		_, err := f.pipeline().Transcribe(context.Background(), Request{Audio: payload})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDecode)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageDecoded, stageErr.Stage)
	}
	f.whisper.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	f.assertScratchEmpty(t)
}

func TestTranscribeFinetunedWithoutModel(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline().Transcribe(context.Background(), Request{Audio: encoded(wavBytes), Model: ModelFinetuned})

	assert.ErrorIs(t, err, ErrModelUnavailable)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageModelSelected, stageErr.Stage)
	f.whisper.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
}

func TestTranscribeStandard(t *testing.T) {
	f := newFixture(t)
	var scratchPath string
	f.whisper.On("Transcribe", mock.Anything, mock.MatchedBy(func(req whisper.TranscribeRequest) bool {
		return !req.UseFinetune && req.Language == "en" && req.RestorePunctuation && req.Audio.Filename == "memo.wav"
	})).Run(func(args mock.Arguments) {
		req := args.Get(1).(whisper.TranscribeRequest)
		file := req.Audio.Body.(*os.File)
		scratchPath = file.Name()
		data, err := os.ReadFile(scratchPath)
		assert.NoError(t, err)
		assert.Equal(t, wavBytes, data)
	}).Return(whisper.Transcript{
		Text:     "  hello there  ",
		Language: "en",
		Segments: []whisper.Segment{{Start: 0, End: 1.2, Text: "hello there"}},
	}, nil)

	result, err := f.pipeline().Transcribe(context.Background(), Request{
		Audio:              encoded(wavBytes),
		Filename:           "memo.wav",
		Language:           "en",
		RestorePunctuation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, ModelStandard, result.Model)
	assert.Equal(t, "large-v3-turbo", result.ModelName)
	assert.Equal(t, []Segment{{Start: 0, End: 1.2, Text: "hello there"}}, result.Segments)
	assert.False(t, result.NoSpeech)
	assert.Equal(t, Optional{Reason: "delegated to transcription backend"}, result.Punctuation)

	assert.Equal(t, ".wav", filepath.Ext(scratchPath))
	assert.Equal(t, f.scratch, filepath.Dir(scratchPath))
	assert.NoFileExists(t, scratchPath)
	f.whisper.AssertExpectations(t)
}

func TestTranscribeFinetuned(t *testing.T) {
	f := newFixture(t)
	f.cfg.FinetuneModel = "whisper-daniel-v2"
	f.whisper.On("Transcribe", mock.Anything, mock.MatchedBy(func(req whisper.TranscribeRequest) bool {
		return req.UseFinetune && req.Model == "whisper-daniel-v2"
	})).Return(whisper.Transcript{Text: "shalom", Language: ""}, nil)

	result, err := f.pipeline().Transcribe(context.Background(), Request{Audio: encoded(wavBytes), Model: ModelFinetuned, Language: "he"})
	require.NoError(t, err)
	assert.Equal(t, ModelFinetuned, result.Model)
	assert.Equal(t, "whisper-daniel-v2", result.ModelName)
	assert.Equal(t, "he", result.Language)
	assert.Equal(t, Optional{Reason: "not requested"}, result.Punctuation)
}

func TestTranscribeUpstreamError(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Transcribe", mock.Anything, mock.Anything).
		Return(whisper.Transcript{}, &upstream.Error{Service: "Whisper", Status: 500, Body: "CUDA out of memory"})

	_, err := f.pipeline().Transcribe(context.Background(), Request{Audio: encoded(wavBytes)})

	assert.ErrorIs(t, err, ErrUpstream)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 500, upErr.Status)
	assert.Equal(t, "CUDA out of memory", upErr.Body)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageTranscribed, stageErr.Stage)
	f.assertScratchEmpty(t)
}

func TestTranscribeBackendUnavailable(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Transcribe", mock.Anything, mock.Anything).
		Return(whisper.Transcript{}, upstream.Unavailable("Whisper", errors.New("connection refused")))

	_, err := f.pipeline().Transcribe(context.Background(), Request{Audio: encoded(wavBytes)})

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "connection refused")
	f.assertScratchEmpty(t)
}

func TestTranscribeScratchFailureIsLocal(t *testing.T) {
	f := newFixture(t)
	f.cfg.ScratchDir = filepath.Join(f.scratch, "missing")

	_, err := f.pipeline().Transcribe(context.Background(), Request{Audio: encoded(wavBytes)})

	assert.ErrorIs(t, err, ErrScratch)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
	_, isReply := upstream.AsError(err)
	assert.False(t, isReply)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageTranscribed, stageErr.Stage)
	f.whisper.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
}

func TestTranscribeCanceledByCaller(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.whisper.On("Transcribe", mock.Anything, mock.Anything).
		Return(whisper.Transcript{}, upstream.Abandoned(ctx, "Whisper"))

	_, err := f.pipeline().Transcribe(ctx, Request{Audio: encoded(wavBytes)})

	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrUpstream)
	f.assertScratchEmpty(t)
}

func TestTranscribePanicStillRemovesScratch(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Transcribe", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("backend client bug")
	})

	assert.Panics(t, func() {
		_, _ = f.pipeline().Transcribe(context.Background(), Request{Audio: encoded(wavBytes)})
	})
	f.assertScratchEmpty(t)
}

func TestEmptyTranscriptSkipsCleanup(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Transcribe", mock.Anything, mock.Anything).Return(whisper.Transcript{Text: "   ", Language: "en"}, nil)

	out, err := f.pipeline().TranscribeAndClean(context.Background(), Request{Audio: encoded(wavBytes)})
	require.NoError(t, err)

	assert.True(t, out.NoSpeech)
	assert.Empty(t, out.Cleaned)
	assert.Empty(t, out.Failure)
	f.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupSuccess(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Transcribe", mock.Anything, mock.Anything).Return(whisper.Transcript{Text: "um so like hello", Language: "en"}, nil)
	f.llm.On("Generate", mock.Anything, "llama3.2", mock.MatchedBy(func(prompt string) bool {
		return assert.Contains(t, prompt, "Transcription:\num so like hello\n\nCleaned text:")
	})).Return("Hello.", nil)

	out, err := f.pipeline().TranscribeAndClean(context.Background(), Request{Audio: encoded(wavBytes)})
	require.NoError(t, err)

	assert.True(t, out.Succeeded())
	assert.Equal(t, "Hello.", out.Cleaned)
	assert.Equal(t, "um so like hello", out.Text)
	assert.Equal(t, "llama3.2", out.LLMModel)
}

func TestCleanupFailureKeepsTranscript(t *testing.T) {
	tests := map[string]struct {
		reply string
		err   error
	}{
		"llm unreachable": {err: upstream.Unavailable("Ollama", errors.New("connection refused"))},
		"empty reply":     {reply: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.whisper.On("Transcribe", mock.Anything, mock.Anything).Return(whisper.Transcript{Text: "raw words"}, nil)
			f.llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			out, err := f.pipeline().TranscribeAndClean(context.Background(), Request{Audio: encoded(wavBytes)})
			require.NoError(t, err)

			assert.False(t, out.Succeeded())
			assert.Equal(t, "raw words", out.Text)
			assert.NotEmpty(t, out.Failure)
		})
	}
}

func TestCleanupPropagatesTranscriptionFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline().TranscribeAndClean(context.Background(), Request{Audio: "%%%"})
	assert.ErrorIs(t, err, ErrDecode)
	f.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestPunctuationStage(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		f := newFixture(t)
		f.whisper.On("Transcribe", mock.Anything, mock.MatchedBy(func(req whisper.TranscribeRequest) bool {
			return !req.RestorePunctuation
		})).Return(whisper.Transcript{Text: "hello how are you"}, nil)

		p := f.pipeline().WithPunctuator(punctuatorFunc(func(_ context.Context, text string) (string, error) {
			return "Hello, how are you?", nil
		}))
		result, err := p.Transcribe(context.Background(), Request{Audio: encoded(wavBytes), RestorePunctuation: true})
		require.NoError(t, err)
		assert.Equal(t, "Hello, how are you?", result.Text)
		assert.Equal(t, Optional{Applied: true}, result.Punctuation)
	})

	t.Run("failure is absorbed", func(t *testing.T) {
		f := newFixture(t)
		f.whisper.On("Transcribe", mock.Anything, mock.Anything).Return(whisper.Transcript{Text: "hello how are you"}, nil)

		p := f.pipeline().WithPunctuator(punctuatorFunc(func(context.Context, string) (string, error) {
			return "", errors.New("punctuation model llama3.2:1b: model not found")
		}))
		result, err := p.Transcribe(context.Background(), Request{Audio: encoded(wavBytes), RestorePunctuation: true})
		require.NoError(t, err)
		assert.Equal(t, "hello how are you", result.Text)
		assert.False(t, result.Punctuation.Applied)
		assert.Contains(t, result.Punctuation.Reason, "model not found")
	})

	t.Run("skipped on empty transcript", func(t *testing.T) {
		f := newFixture(t)
		f.whisper.On("Transcribe", mock.Anything, mock.Anything).Return(whisper.Transcript{}, nil)

		called := false
		p := f.pipeline().WithPunctuator(punctuatorFunc(func(context.Context, string) (string, error) {
			called = true
			return "", nil
		}))
		result, err := p.Transcribe(context.Background(), Request{Audio: encoded(wavBytes), RestorePunctuation: true})
		require.NoError(t, err)
		assert.True(t, result.NoSpeech)
		assert.False(t, called)
	})
}

func TestDecodeAudio(t *testing.T) {
	raw := []byte("abcd")

	tests := map[string]string{
		"padded":   base64.StdEncoding.EncodeToString(raw),
		"unpadded": base64.RawStdEncoding.EncodeToString(raw),
		"data url": "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(raw),
		"spaces":   "  " + base64.StdEncoding.EncodeToString(raw) + "\n",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := decodeAudio(payload)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestInferSuffix(t *testing.T) {
	mp3 := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

	assert.Equal(t, ".m4a", inferSuffix("voice.M4A", wavBytes))
	assert.Equal(t, ".wav", inferSuffix("", wavBytes))
	assert.Equal(t, ".mp3", inferSuffix("", mp3))
	assert.Equal(t, ".wav", inferSuffix("", []byte("plain text, not audio")))
	assert.Equal(t, ".wav", inferSuffix("recording", nil))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Health", mock.Anything).Return(whisper.Health{Status: "healthy", Model: "large-v3-turbo", Device: "cuda"}, nil)
	f.whisper.On("Models", mock.Anything).Return(whisper.Models{Current: "large-v3-turbo", Available: []string{"base"}}, nil)

	health, err := f.pipeline().Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	require.NotNil(t, health.Models)
	assert.Equal(t, []string{"base"}, health.Models.Available)
}

func TestHealthWithoutModelListing(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Health", mock.Anything).Return(whisper.Health{Status: "healthy"}, nil)
	f.whisper.On("Models", mock.Anything).Return(whisper.Models{}, &upstream.Error{Service: "Whisper", Status: 404})

	health, err := f.pipeline().Health(context.Background())
	require.NoError(t, err)
	assert.Nil(t, health.Models)
}

func TestHealthUnreachable(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Health", mock.Anything).
		Return(whisper.Health{}, upstream.Unavailable("Whisper", errors.New("dial tcp 127.0.0.1:9000: connect: connection refused")))

	_, err := f.pipeline().Health(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	f.whisper.AssertNotCalled(t, "Models", mock.Anything)
}

func TestHealthUpstreamError(t *testing.T) {
	f := newFixture(t)
	f.whisper.On("Health", mock.Anything).Return(whisper.Health{}, &upstream.Error{Service: "Whisper", Status: 503})

	_, err := f.pipeline().Health(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 503, upErr.Status)
}
