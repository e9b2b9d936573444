package gemini

import (
	"context"
	"log/slog"
	"strings"
)

const (
	MsgKeyRequired = "API key is required"
	MsgKeyInvalid  = "Invalid API key"

	probePrompt = "Hello"
)

// Validation is the uniform outcome of a key check.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Validator checks API keys with a single generation probe. Every failure
// class (bad key, quota, network) reports the key as invalid.
type Validator struct {
	cfg Config
}

// NewValidator returns a Validator; cfg.APIKey is ignored.
func NewValidator(cfg Config) *Validator {
	cfg.APIKey = ""
	return &Validator{cfg: cfg}
}

// Validate probes the provider with key. The key is never logged or kept.
func (v *Validator) Validate(ctx context.Context, key string) Validation {
	key = strings.TrimSpace(key)
	if key == "" {
		return Validation{Error: MsgKeyRequired}
	}

	cfg := v.cfg
	cfg.APIKey = key
	client, err := NewClient(ctx, cfg)
	if err != nil {
		slog.Debug("gemini key validation: client", "error", err)
		return Validation{Error: MsgKeyInvalid}
	}
	if err := client.Probe(ctx, probePrompt); err != nil {
		slog.Debug("gemini key validation: probe", "error", err)
		return Validation{Error: MsgKeyInvalid}
	}
	return Validation{Valid: true}
}
