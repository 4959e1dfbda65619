package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luisa-bot-go/internal/config"
	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider calls any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client openaigo.Client
	apiKey string
	model  string
	retry  retrier
	logger *logrus.Logger
}

// NewOpenAIProvider creates the provider; extra options are appended after
// the configured ones.
func NewOpenAIProvider(cfg *config.ProviderConfig, timeout time.Duration, retries int, logger *logrus.Logger, opts ...option.RequestOption) *OpenAIProvider {
	apiKey := strings.TrimSpace(cfg.APIKey)

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 2 * timeout}),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		base = append(base, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &OpenAIProvider{
		client: openaigo.NewClient(append(base, opts...)...),
		apiKey: apiKey,
		model:  cfg.Model,
		retry:  retrier{attempts: retries, backoff: 2 * time.Second, logger: logger},
		logger: logger,
	}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Available() bool { return o.apiKey != "" }

// Generate sends the prompt as a single user message.
func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	if !o.Available() {
		return "", ErrNoCredentials
	}
	return o.retry.do(ctx, o.Name(), func(ctx context.Context) (string, error) {
		return o.generateOnce(ctx, req)
	})
}

func (o *OpenAIProvider) generateOnce(ctx context.Context, req Request) (string, error) {
	params := openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(o.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.UserMessage(req.Prompt),
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openaigo.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature > 0 {
		// chat completions cap temperature at 2
		params.Temperature = openaigo.Float(min(req.Temperature, 2))
	}
	if req.TopP > 0 {
		params.TopP = openaigo.Float(req.TopP)
	}

	o.logger.WithFields(logrus.Fields{
		"provider": o.Name(),
		"model":    o.model,
	}).Debug("Sending AI request")

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrBlocked
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", ErrBlocked
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return choice.Message.Content, nil
}
