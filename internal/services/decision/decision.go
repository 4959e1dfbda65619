// Package decision picks whether the persona answers a message. The first
// applicable tier fixes the probability; tiers are never combined.
package decision

import (
	"strings"

	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/internal/random"
)

// Tier is the trigger that selected the response probability.
type Tier string

const (
	TierDirectMention Tier = "direct_mention"
	TierReply         Tier = "reply"
	TierQuestion      Tier = "question"
	TierConversation  Tier = "conversation"
	TierRandom        Tier = "random"
)

// Probabilities per tier.
type Probabilities struct {
	DirectMention float64
	Reply         float64
	Question      float64
	Conversation  float64
	Random        float64
}

// Engine is the response decision policy.
type Engine struct {
	probs        Probabilities
	mentions     []string
	hotThreshold int
	rand         random.Source
}

// New builds the engine from the decision and persona config sections.
func New(cfg *config.DecisionConfig, persona *config.PersonaConfig, src random.Source) *Engine {
	mentions := []string{strings.ToLower(persona.Name)}
	for _, alias := range persona.Aliases {
		if alias != "" {
			mentions = append(mentions, strings.ToLower(alias))
		}
	}

	return &Engine{
		probs: Probabilities{
			DirectMention: cfg.DirectMention,
			Reply:         cfg.Reply,
			Question:      cfg.Question,
			Conversation:  cfg.Conversation,
			Random:        cfg.Random,
		},
		mentions:     mentions,
		hotThreshold: cfg.HotChannelThreshold,
		rand:         src,
	}
}

// Tier returns the tier selected for msg given the number of messages seen in
// its channel during the activity window. It does not draw.
func (e *Engine) Tier(msg models.Message, activity int) Tier {
	content := strings.ToLower(msg.Content)

	for _, m := range e.mentions {
		if strings.Contains(content, m) {
			return TierDirectMention
		}
	}
	// replies win over questions even when the reply asks something
	if msg.HasReference {
		return TierReply
	}
	if strings.Contains(content, "?") {
		return TierQuestion
	}
	if activity > e.hotThreshold {
		return TierConversation
	}
	return TierRandom
}

// Probability returns the configured probability of tier.
func (e *Engine) Probability(tier Tier) float64 {
	switch tier {
	case TierDirectMention:
		return e.probs.DirectMention
	case TierReply:
		return e.probs.Reply
	case TierQuestion:
		return e.probs.Question
	case TierConversation:
		return e.probs.Conversation
	default:
		return e.probs.Random
	}
}

// Evaluate selects the tier and draws once against its probability.
func (e *Engine) Evaluate(msg models.Message, activity int) (Tier, bool) {
	tier := e.Tier(msg, activity)
	return tier, e.rand.Float64() < e.Probability(tier)
}

// Decide reports whether to respond to msg.
func (e *Engine) Decide(msg models.Message, activity int) bool {
	_, respond := e.Evaluate(msg, activity)
	return respond
}
