package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/middleware"
	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/internal/random"
	"github.com/luisa-bot-go/internal/services/activity"
	"github.com/luisa-bot-go/internal/services/cooldown"
	"github.com/luisa-bot-go/internal/services/decision"
	"github.com/luisa-bot-go/internal/services/generator"
	"github.com/luisa-bot-go/internal/services/moderation"
	"github.com/luisa-bot-go/internal/services/reaction"
	"github.com/luisa-bot-go/internal/telemetry"
	"github.com/luisa-bot-go/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Ignore reasons produced by the pipeline itself; moderation adds its own.
const (
	ReasonBot         = "bot"
	ReasonCommand     = "command"
	ReasonCooldown    = "cooldown"
	ReasonNotSelected = "not_selected"
	ReasonInvalid     = "invalid_reply"
)

// Outcome tells the gateway what to do with one inbound message. Ignored
// refers to the text reply only: a reaction may still be set.
type Outcome struct {
	Ignored  bool
	Reason   string
	Tier     decision.Tier
	Reply    string
	Stage    generator.Stage
	Reaction string
	// Delay is waited before the typing indicator, Typing while it shows.
	Delay  time.Duration
	Typing time.Duration
}

// MessageHandler runs the inbound message pipeline
type MessageHandler struct {
	config     *config.Config
	moderation *moderation.Filter
	activity   *activity.Buffer
	cooldowns  *cooldown.Tracker
	decision   *decision.Engine
	generator  *generator.Generator
	reactions  *reaction.Policy
	security   *middleware.SecurityMiddleware
	random     random.Source
	logger     *logrus.Logger
	metrics    *middleware.Metrics
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	cfg *config.Config,
	moderation *moderation.Filter,
	activity *activity.Buffer,
	cooldowns *cooldown.Tracker,
	decision *decision.Engine,
	generator *generator.Generator,
	reactions *reaction.Policy,
	src random.Source,
	logger *logrus.Logger,
	metrics *middleware.Metrics,
) *MessageHandler {
	return &MessageHandler{
		config:     cfg,
		moderation: moderation,
		activity:   activity,
		cooldowns:  cooldowns,
		decision:   decision,
		generator:  generator,
		reactions:  reactions,
		security:   middleware.NewSecurityMiddleware(logger),
		random:     src,
		logger:     logger,
		metrics:    metrics,
	}
}

// HandleMessage runs every stage for msg in order. Stages never overlap for
// the same message.
func (h *MessageHandler) HandleMessage(ctx context.Context, msg models.Message) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "handlers", "handle_message",
		attribute.String("channel_id", msg.ChannelID),
		attribute.String("message_id", msg.ID))
	defer span.End()

	h.metrics.RecordMessageReceived("discord")
	entry := logger.WithMessage(h.logger, msg.ChannelID, msg.AuthorID)

	if msg.IsBot {
		return h.ignore(entry, ReasonBot)
	}
	if prefix := h.config.Bot.CommandPrefix; prefix != "" && strings.HasPrefix(msg.Content, prefix) {
		return h.ignore(entry, ReasonCommand)
	}

	if verdict := h.moderation.ShouldIgnore(msg); verdict.Ignore {
		return h.ignore(entry, verdict.Reason)
	}

	h.activity.Record(msg)
	out := h.respond(ctx, entry, msg)

	if emoji, ok := h.reactions.Maybe(msg.Content); ok {
		out.Reaction = emoji
	}

	span.SetAttributes(
		attribute.Bool("ignored", out.Ignored),
		attribute.String("reason", out.Reason),
		attribute.String("stage", string(out.Stage)),
	)
	return out
}

func (h *MessageHandler) respond(ctx context.Context, entry *logrus.Entry, msg models.Message) Outcome {
	if h.cooldowns.IsOnCooldown(msg.AuthorID, msg.ChannelID, h.config.Cooldown.Window) {
		return h.ignore(entry, ReasonCooldown)
	}

	recent := h.activity.CountRecent(msg.ChannelID, h.config.Decision.ActivityWindow)
	tier, respond := h.decision.Evaluate(msg, recent)
	h.metrics.RecordDecision(string(tier), respond)
	if !respond {
		out := h.ignore(entry.WithField("tier", tier), ReasonNotSelected)
		out.Tier = tier
		return out
	}

	reply := h.generator.Generate(ctx, msg)
	text := h.security.SanitizeOutbound(reply.Text)
	if err := h.security.ValidateOutbound(text); err != nil {
		entry.WithError(err).Warn("Generated reply rejected")
		out := h.ignore(entry, ReasonInvalid)
		out.Tier = tier
		return out
	}

	entry.WithFields(logrus.Fields{
		"tier":     tier,
		"stage":    reply.Stage,
		"category": reply.Category,
	}).Debug("Replying")

	persona := h.config.Persona
	return Outcome{
		Tier:   tier,
		Reply:  text,
		Stage:  reply.Stage,
		Delay:  random.Between(h.random, persona.ResponseDelay.Min, persona.ResponseDelay.Max),
		Typing: random.Between(h.random, persona.TypingDuration.Min, persona.TypingDuration.Max),
	}
}

func (h *MessageHandler) ignore(entry *logrus.Entry, reason string) Outcome {
	h.metrics.RecordMessageIgnored(reason)
	entry.WithField("reason", reason).Debug("Message ignored")
	return Outcome{Ignored: true, Reason: reason}
}
