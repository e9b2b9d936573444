// Package gemini wraps the Google Gen AI SDK for review generation and for
// validating user-supplied API keys.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Config holds the settings shared by Client and Validator.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API endpoint (tests, proxies).
	BaseURL    string
	HTTPClient *http.Client
}

func (c Config) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func newGenAI(ctx context.Context, cfg Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	return genai.NewClient(ctx, cc)
}

// Client generates text with a Gemini model.
type Client struct {
	api   *genai.Client
	model string
}

// NewClient creates a Gemini client. The API key is required.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	api, err := newGenAI(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{api: api, model: cfg.model()}, nil
}

func (c *Client) Name() string { return "gemini" }

// Generate sends prompt with an optional system instruction and returns the
// concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	var gc *genai.GenerateContentConfig
	if system != "" {
		gc = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := c.api.Models.GenerateContent(ctx, c.model, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no text content in gemini response")
	}
	return text, nil
}

// Probe sends prompt and reports only whether the provider accepted the
// request. A reply without text (for example a safety block) still counts.
func (c *Client) Probe(ctx context.Context, prompt string) error {
	if _, err := c.api.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil); err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}
	return nil
}

// IsRateLimit reports whether err is a Gemini 429 response.
func IsRateLimit(err error) bool {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code == http.StatusTooManyRequests
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code == http.StatusTooManyRequests
	}
	return false
}
