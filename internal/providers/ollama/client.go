package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aistack/controlpanel/internal/providers/httpclient"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"github.com/go-resty/resty/v2"
)

// Options configures the Ollama client.
type Options struct {
	BaseURL string
	// Timeout bounds a single completion.
	Timeout time.Duration
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateReply struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client calls the Ollama completion API.
type Client struct {
	http    *httpclient.Client
	timeout time.Duration
}

// New creates an Ollama client.
func New(opts Options) *Client {
	return &Client{
		http:    httpclient.New(httpclient.Options{Name: "Ollama", BaseURL: opts.BaseURL, Timeout: opts.Timeout}),
		timeout: opts.Timeout,
	}
}

// HTTP exposes the underlying backend client.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Generate runs a non-streaming completion and returns the trimmed text.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := upstream.Bound(ctx, c.timeout)
	defer cancel()

	var reply generateReply
	_, err := c.http.Do(ctx, "generate", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(generateRequest{Model: model, Prompt: prompt, Stream: false}).
			SetResult(&reply).
			Post("/api/generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Response), nil
}

const punctuationPrompt = `Restore punctuation and capitalization in this transcript. Do not change, add or remove any words. Return ONLY the punctuated text.

Transcript:
%s

Punctuated text:`

// Punctuator restores punctuation with a small LLM.
type Punctuator struct {
	client *Client
	model  string
}

// NewPunctuator binds a model to the client for punctuation restoration.
func NewPunctuator(client *Client, model string) *Punctuator {
	return &Punctuator{client: client, model: model}
}

// Restore returns text with punctuation restored.
func (p *Punctuator) Restore(ctx context.Context, text string) (string, error) {
	out, err := p.client.Generate(ctx, p.model, fmt.Sprintf(punctuationPrompt, text))
	if err != nil {
		return "", fmt.Errorf("punctuation model %s: %w", p.model, err)
	}
	if out == "" {
		return "", fmt.Errorf("punctuation model %s returned no text", p.model)
	}
	return out, nil
}
