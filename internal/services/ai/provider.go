// Package ai holds the text-generation providers used by the reply generator.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luisa-bot-go/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoCredentials is returned when a provider has no API key configured.
	ErrNoCredentials = errors.New("provider credentials not configured")
	// ErrBlocked is returned when the provider refused to produce a candidate.
	ErrBlocked = errors.New("response blocked by provider")
	// ErrEmptyResponse is returned when the candidate text is blank.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is one text-generation call.
type Request struct {
	Prompt          string
	MaxOutputTokens int
	Temperature     float64
	TopP            float64
	TopK            int
	Safety          []SafetySetting
}

// SafetySetting is a harm category threshold.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// PermissiveSafety disables blocking for the casual, sarcastic register of the persona.
func PermissiveSafety() []SafetySetting {
	return []SafetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
		{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
	}
}

// permanent errors are not worth another attempt
func permanent(err error) bool {
	return errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrBlocked) || errors.Is(err, context.Canceled)
}

// retrier runs an attempt up to attempts times with exponential backoff.
type retrier struct {
	attempts int
	backoff  time.Duration
	logger   *logrus.Logger
}

func (r retrier) do(ctx context.Context, provider string, attempt func(ctx context.Context) (string, error)) (string, error) {
	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		text, err := attempt(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if permanent(err) || i == attempts {
			break
		}

		r.logger.WithFields(logrus.Fields{
			"provider": provider,
			"attempt":  i,
			"error":    err.Error(),
		}).Warn("AI request failed, retrying...")

		// Exponential backoff: base, 2x base, 4x base
		wait := r.backoff << uint(i-1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	if attempts > 1 && !permanent(lastErr) {
		return "", fmt.Errorf("all retry attempts failed: %w", lastErr)
	}
	return "", lastErr
}

// ProvidersFromConfig builds the text providers in the configured order.
func ProvidersFromConfig(cfg *config.AIConfig, logger *logrus.Logger) []Provider {
	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "gemini":
			providers = append(providers, NewGeminiProvider(&cfg.Gemini, cfg.Timeout, cfg.Retries, logger))
		case "openai":
			providers = append(providers, NewOpenAIProvider(&cfg.OpenAI, cfg.Timeout, cfg.Retries, logger))
		default:
			logger.WithField("provider", name).Warn("Unknown AI provider, skipping")
		}
	}
	return providers
}
