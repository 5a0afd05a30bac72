package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	DefaultModel         = "gemini-1.5-flash"
	DefaultFallbackModel = "gemini-pro"
)

// Client generates text with Google's Gemini API.
type Client struct {
	client        *genai.Client
	model         string
	fallbackModel string
	log           zerolog.Logger
}

type Option func(*genai.ClientConfig)

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *genai.ClientConfig) { cfg.HTTPOptions.BaseURL = url }
}

func NewClient(ctx context.Context, apiKey, model, fallbackModel string, log zerolog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client:        client,
		model:         model,
		fallbackModel: fallbackModel,
		log:           log,
	}, nil
}

// Generate sends prompt to the primary model. If that call fails and a
// fallback model is configured, the fallback is asked once; its error is the
// one returned.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := c.generate(ctx, c.model, prompt)
	if err == nil || c.fallbackModel == "" || c.fallbackModel == c.model {
		return text, err
	}

	c.log.Warn().
		Err(err).
		Str("model", c.model).
		Str("fallback_model", c.fallbackModel).
		Msg("primary model failed, trying fallback")
	return c.generate(ctx, c.fallbackModel, prompt)
}

func (c *Client) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate with %s failed: %w", model, err)
	}

	text := resp.Text()
	c.log.Debug().
		Str("model", model).
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(text)).
		Msg("gemini response received")
	return text, nil
}

// Name returns the engine name.
func (c *Client) Name() string {
	return fmt.Sprintf("genai:%s", c.model)
}
