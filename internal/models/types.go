package models

import (
	"time"
)

// Message is an inbound chat event as delivered by the gateway.
type Message struct {
	ID           string
	AuthorID     string
	AuthorName   string
	IsBot        bool
	ChannelID    string
	GuildID      string
	Content      string
	HasReference bool
	CreatedAt    time.Time
}

// Verdict is the moderation outcome for one message.
type Verdict struct {
	Ignore bool   `json:"ignore"`
	Reason string `json:"reason,omitempty"`
}

// Moderation reasons, shared by warnings and verdicts.
const (
	ReasonSpam           = "spam"
	ReasonBannedWord     = "banned_word"
	ReasonFlood          = "flood"
	ReasonSuspiciousLink = "suspicious_link"
	ReasonTooManyWarns   = "too_many_warnings"
)

// Warning is one entry of a user's warning ledger.
type Warning struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationTurn is one attributed message kept for prompt context.
type ConversationTurn struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	ChannelID string    `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ModerationStats is a snapshot of the moderation trackers.
type ModerationStats struct {
	ActiveSpamTrackers int `json:"active_spam_trackers"`
	TotalWarnings      int `json:"total_warnings"`
	UsersWithWarnings  int `json:"users_with_warnings"`
	BannedWordsCount   int `json:"banned_words_count"`
}

// CooldownStats is a snapshot of the cooldown tracker.
type CooldownStats struct {
	TotalCooldowns  int `json:"total_cooldowns"`
	ActiveCooldowns int `json:"active_cooldowns"`
	SpamWindows     int `json:"spam_windows"`
}
