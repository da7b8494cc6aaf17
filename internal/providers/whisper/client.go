package whisper

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/aistack/controlpanel/internal/providers/httpclient"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"github.com/go-resty/resty/v2"
)

// Options configures the Whisper client.
type Options struct {
	BaseURL string
	// Timeout bounds a transcription call.
	Timeout time.Duration
	// HealthTimeout bounds health and model listing calls.
	HealthTimeout time.Duration
}

// Upload is the audio handed to the backend.
type Upload struct {
	Filename string
	Body     io.Reader
}

// TranscribeRequest carries the form fields of POST /transcribe.
type TranscribeRequest struct {
	Audio              Upload
	Language           string
	RestorePunctuation bool
	UseFinetune        bool
	// Model names the fine-tuned model when UseFinetune is set.
	Model string
}

// Segment is one timestamped span of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the backend's reply.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Health is the reply of GET /health.
type Health struct {
	Status               string `json:"status"`
	Model                string `json:"model"`
	Device               string `json:"device"`
	PunctuationAvailable bool   `json:"punctuation_available"`
}

// Models is the reply of GET /models.
type Models struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

// Client talks to the Whisper HTTP API.
type Client struct {
	http          *httpclient.Client
	timeout       time.Duration
	healthTimeout time.Duration
}

// New creates a Whisper client.
func New(opts Options) *Client {
	return &Client{
		http:          httpclient.New(httpclient.Options{Name: "Whisper", BaseURL: opts.BaseURL}),
		timeout:       opts.Timeout,
		healthTimeout: opts.HealthTimeout,
	}
}

// HTTP exposes the underlying backend client.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Transcribe uploads audio and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (Transcript, error) {
	ctx, cancel := upstream.Bound(ctx, c.timeout)
	defer cancel()

	form := map[string]string{
		"restore_punctuation": strconv.FormatBool(req.RestorePunctuation),
		"use_finetune":        strconv.FormatBool(req.UseFinetune),
	}
	if req.Language != "" {
		form["language"] = req.Language
	}
	if req.UseFinetune && req.Model != "" {
		form["model"] = req.Model
	}

	var out Transcript
	_, err := c.http.Do(ctx, "transcribe", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetFileReader("file", req.Audio.Filename, req.Audio.Body).
			SetFormData(form).
			SetResult(&out).
			Post("/transcribe")
	})
	if err != nil {
		return Transcript{}, err
	}
	return out, nil
}

// Health queries the backend's health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := upstream.Bound(ctx, c.healthTimeout)
	defer cancel()

	var out Health
	_, err := c.http.Do(ctx, "health", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).Get("/health")
	})
	return out, err
}

// Models lists the models the backend can load.
func (c *Client) Models(ctx context.Context) (Models, error) {
	ctx, cancel := upstream.Bound(ctx, c.healthTimeout)
	defer cancel()

	var out Models
	_, err := c.http.Do(ctx, "models", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).Get("/models")
	})
	return out, err
}
