// Package generator produces the persona's chat replies: canned quick replies,
// then external text generation, then a keyword-driven canned fallback.
package generator

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/fallback"
	"github.com/luisa-bot-go/internal/middleware"
	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/internal/random"
	"github.com/luisa-bot-go/internal/services/ai"
	"github.com/luisa-bot-go/internal/services/classifier"
	"github.com/luisa-bot-go/internal/services/storage"
	"github.com/luisa-bot-go/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Stage names which step of the chain produced a reply.
type Stage string

const (
	StageQuickReply Stage = "quick_reply"
	StageAI         Stage = "ai"
	StageFallback   Stage = "fallback"
)

var (
	errDisabled    = errors.New("ai generation disabled")
	errRateLimited = errors.New("ai request budget exhausted")
	errUnusable    = errors.New("generated text unusable after cleanup")
)

// Reply is the outcome of Generate. It always carries text.
type Reply struct {
	Text     string
	Stage    Stage
	Category classifier.Category
	Provider string
}

type Options struct {
	PersonaName     string
	AIEnabled       bool
	MaxOutputTokens int
	Temperature     float64
	TopP            float64
	TopK            int
	// StepTimeout bounds one provider, retries included.
	StepTimeout    time.Duration
	MaxReplyLength int
	ContextTurns   int
	PromptTurns    int
	MaxAge         time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	attempts := cfg.AI.Retries
	if attempts < 1 {
		attempts = 1
	}

	return Options{
		PersonaName:     cfg.Persona.Name,
		AIEnabled:       cfg.AI.Enabled,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Temperature:     cfg.AI.Temperature,
		TopP:            cfg.AI.TopP,
		TopK:            cfg.AI.TopK,
		StepTimeout:     time.Duration(attempts) * (cfg.AI.Timeout + 4*time.Second),
		MaxReplyLength:  cfg.AI.MaxReplyLength,
		ContextTurns:    cfg.History.ContextTurns,
		PromptTurns:     cfg.History.PromptTurns,
		MaxAge:          cfg.History.MaxAge,
	}
}

// Generator owns the conversation history it builds prompts from.
type Generator struct {
	opts       Options
	classifier *classifier.Classifier
	sanitizer  *Sanitizer
	providers  []ai.Provider
	history    storage.History
	limiter    middleware.RateLimiter
	random     random.Source
	clock      clock.Clock
	logger     *logrus.Logger
	metrics    *middleware.Metrics
}

func New(
	opts Options,
	cls *classifier.Classifier,
	providers []ai.Provider,
	history storage.History,
	limiter middleware.RateLimiter,
	src random.Source,
	clk clock.Clock,
	logger *logrus.Logger,
	metrics *middleware.Metrics,
) *Generator {
	return &Generator{
		opts:       opts,
		classifier: cls,
		sanitizer:  NewSanitizer(opts.PersonaName, opts.MaxReplyLength),
		providers:  providers,
		history:    history,
		limiter:    limiter,
		random:     src,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
	}
}

// Generate always returns a reply; generation failures degrade to the
// canned fallback and are only logged.
func (g *Generator) Generate(ctx context.Context, msg models.Message) Reply {
	ctx, span := telemetry.StartSpan(ctx, "generator", "generate",
		attribute.String("channel_id", msg.ChannelID))
	defer span.End()

	category := g.classifier.Classify(msg.Content)
	reply := g.generate(ctx, msg, category)

	span.SetAttributes(
		attribute.String("category", string(category)),
		attribute.String("stage", string(reply.Stage)),
	)
	g.metrics.RecordReply(string(reply.Stage))
	return reply
}

func (g *Generator) generate(ctx context.Context, msg models.Message, category classifier.Category) Reply {
	if classifier.IsQuickReply(category) {
		return Reply{
			Text:     random.Choice(g.random, QuickReplies(category)),
			Stage:    StageQuickReply,
			Category: category,
		}
	}

	text, provider, err := g.external(ctx, msg, category)
	if err == nil {
		g.remember(ctx, msg, text)
		return Reply{Text: text, Stage: StageAI, Category: category, Provider: provider}
	}

	g.logger.WithFields(logrus.Fields{
		"stage":      StageAI,
		"category":   category,
		"channel_id": msg.ChannelID,
		"reason":     err.Error(),
	}).Debug("Using fallback reply")

	return Reply{
		Text:     random.Choice(g.random, FallbackReplies(category)),
		Stage:    StageFallback,
		Category: category,
	}
}

func (g *Generator) external(ctx context.Context, msg models.Message, category classifier.Category) (string, string, error) {
	if !g.opts.AIEnabled || len(g.providers) == 0 {
		return "", "", errDisabled
	}
	if g.limiter != nil && !g.limiter.Allow(msg.ChannelID) {
		return "", "", errRateLimited
	}

	turns, err := g.history.Recent(ctx, msg.ChannelID, g.opts.ContextTurns)
	if err != nil {
		g.logger.WithError(err).Warn("Failed to load conversation context")
	}
	if len(turns) > g.opts.PromptTurns {
		turns = turns[len(turns)-g.opts.PromptTurns:]
	}

	req := ai.Request{
		Prompt:          buildPrompt(g.opts.PersonaName, category, turns, msg),
		MaxOutputTokens: g.opts.MaxOutputTokens,
		Temperature:     g.opts.Temperature,
		TopP:            g.opts.TopP,
		TopK:            g.opts.TopK,
		Safety:          ai.PermissiveSafety(),
	}

	steps := make([]fallback.Step[string], 0, len(g.providers))
	for _, p := range g.providers {
		steps = append(steps, fallback.Step[string]{
			Name:    p.Name(),
			Timeout: g.opts.StepTimeout,
			Run: func(ctx context.Context) (string, error) {
				return g.callProvider(ctx, p, req)
			},
		})
	}

	return fallback.Run(ctx, g.logger, string(StageAI), steps)
}

func (g *Generator) callProvider(ctx context.Context, p ai.Provider, req ai.Request) (string, error) {
	if !p.Available() {
		return "", fallback.ErrSkip
	}

	start := time.Now()
	raw, err := p.Generate(ctx, req)
	if err != nil {
		status := "error"
		if errors.Is(err, ai.ErrBlocked) {
			status = "blocked"
		}
		g.metrics.RecordAIRequest(p.Name(), status, time.Since(start))
		return "", err
	}

	text := g.sanitizer.Clean(raw)
	if utf8.RuneCountInString(text) < 2 {
		g.metrics.RecordAIRequest(p.Name(), "unusable", time.Since(start))
		return "", errUnusable
	}

	g.metrics.RecordAIRequest(p.Name(), "success", time.Since(start))
	return text, nil
}

func (g *Generator) remember(ctx context.Context, msg models.Message, text string) {
	now := g.clock.Now()
	err := g.history.Append(ctx,
		models.ConversationTurn{Author: msg.AuthorName, Content: msg.Content, ChannelID: msg.ChannelID, Timestamp: now},
		models.ConversationTurn{Author: g.opts.PersonaName, Content: text, ChannelID: msg.ChannelID, Timestamp: now},
	)
	if err != nil {
		g.logger.WithError(err).Warn("Failed to append conversation history")
	}
}

// PurgeHistory drops turns older than the configured max age.
func (g *Generator) PurgeHistory(ctx context.Context) (int, error) {
	removed, err := g.history.PurgeOlderThan(ctx, g.clock.Now().Add(-g.opts.MaxAge))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		g.logger.WithField("removed", removed).Debug("Purged conversation history")
	}
	return removed, nil
}

// HistoryLen reports the number of stored turns.
func (g *Generator) HistoryLen(ctx context.Context) int {
	n, err := g.history.Len(ctx)
	if err != nil {
		return 0
	}
	return n
}
