// Package moderation screens inbound messages and keeps the per-user warning
// ledger that gates repeat offenders.
package moderation

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/internal/services/cooldown"
	"github.com/sirupsen/logrus"
)

// Options tunes the filter.
type Options struct {
	BannedWords    []string
	SpamMax        int
	SpamWindow     time.Duration
	WarningTTL     time.Duration
	WarningLimit   int
	FloodRatio     float64
	FloodMinLength int
	// AllowedInvite is the invite path prefix that is never flagged.
	AllowedInvite string
}

// OptionsFromConfig maps the moderation config section.
func OptionsFromConfig(cfg *config.ModerationConfig) Options {
	return Options{
		BannedWords:    cfg.BannedWords,
		SpamMax:        cfg.SpamMax,
		SpamWindow:     cfg.SpamWindow,
		WarningTTL:     cfg.WarningTTL,
		WarningLimit:   cfg.WarningLimit,
		FloodRatio:     cfg.FloodRatio,
		FloodMinLength: cfg.FloodMinLength,
		AllowedInvite:  cfg.AllowedInvite,
	}
}

var (
	invitePattern = regexp.MustCompile(`(?i)discord\.gg/(\S*)`)
	scamPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)bit\.ly|tinyurl\.com|goo\.gl`),
		regexp.MustCompile(`(?i)free.*nitro`),
		regexp.MustCompile(`(?i)give.*away`),
	}
)

// Filter applies the moderation checks in priority order.
type Filter struct {
	opts     Options
	clock    clock.Clock
	spam     *cooldown.Tracker
	banned   *regexp.Regexp
	logger   *logrus.Logger
	mu       sync.Mutex
	warnings map[string][]models.Warning
}

// New creates a filter. The spam counter is private to the filter and
// independent of the pipeline's cooldown tracker.
func New(opts Options, clk clock.Clock, logger *logrus.Logger) *Filter {
	f := &Filter{
		opts:     opts,
		clock:    clk,
		spam:     cooldown.New(clk, opts.WarningTTL, logger),
		logger:   logger,
		warnings: make(map[string][]models.Warning),
	}

	var terms []string
	for _, w := range opts.BannedWords {
		w = strings.TrimSpace(w)
		if w != "" {
			terms = append(terms, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(terms) > 0 {
		f.banned = regexp.MustCompile(`(?i)` + strings.Join(terms, "|"))
	}

	logger.WithField("banned_words", len(terms)).Info("Moderation filter ready")
	return f
}

// ShouldIgnore screens msg. The first matching check decides the verdict and
// records at most one warning.
func (f *Filter) ShouldIgnore(msg models.Message) models.Verdict {
	userID := msg.AuthorID

	if f.spam.IsSpamming(userID, f.opts.SpamMax, f.opts.SpamWindow) {
		f.AddWarning(userID, models.ReasonSpam)
		return models.Verdict{Ignore: true, Reason: models.ReasonSpam}
	}

	if f.containsBannedWord(msg.Content) {
		f.AddWarning(userID, models.ReasonBannedWord)
		return models.Verdict{Ignore: true, Reason: models.ReasonBannedWord}
	}

	if f.isFlood(msg.Content) {
		f.AddWarning(userID, models.ReasonFlood)
		return models.Verdict{Ignore: true, Reason: models.ReasonFlood}
	}

	if f.containsSuspiciousLink(msg.Content) {
		f.AddWarning(userID, models.ReasonSuspiciousLink)
		return models.Verdict{Ignore: true, Reason: models.ReasonSuspiciousLink}
	}

	if f.Warnings(userID) >= f.opts.WarningLimit {
		return models.Verdict{Ignore: true, Reason: models.ReasonTooManyWarns}
	}

	return models.Verdict{}
}

func (f *Filter) containsBannedWord(content string) bool {
	return f.banned != nil && f.banned.MatchString(content)
}

// isFlood reports whether one character makes up more than FloodRatio of a
// message longer than FloodMinLength characters.
func (f *Filter) isFlood(content string) bool {
	length := utf8.RuneCountInString(content)
	if length <= f.opts.FloodMinLength {
		return false
	}

	counts := make(map[rune]int)
	maxRepeat := 0
	for _, r := range content {
		counts[r]++
		if counts[r] > maxRepeat {
			maxRepeat = counts[r]
		}
	}

	return float64(maxRepeat)/float64(length) > f.opts.FloodRatio
}

func (f *Filter) containsSuspiciousLink(content string) bool {
	allowed := strings.ToLower(f.opts.AllowedInvite)
	for _, m := range invitePattern.FindAllStringSubmatch(content, -1) {
		if allowed == "" || !strings.HasPrefix(strings.ToLower(m[1]), allowed) {
			return true
		}
	}

	for _, p := range scamPatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

// AddWarning appends a warning for userID.
func (f *Filter) AddWarning(userID, reason string) {
	f.mu.Lock()
	f.warnings[userID] = append(f.warnings[userID], models.Warning{
		Reason:    reason,
		Timestamp: f.clock.Now(),
	})
	total := len(f.warnings[userID])
	f.mu.Unlock()

	f.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"reason":  reason,
		"total":   total,
	}).Info("Warning recorded")
}

// Warnings prunes expired warnings of userID and returns how many remain.
func (f *Filter) Warnings(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	recent := f.activeWarnings(f.warnings[userID], f.clock.Now())
	if len(recent) == 0 {
		delete(f.warnings, userID)
		return 0
	}
	f.warnings[userID] = recent
	return len(recent)
}

// ResetWarnings clears the warning ledger and the spam window of userID.
func (f *Filter) ResetWarnings(userID string) {
	f.mu.Lock()
	delete(f.warnings, userID)
	f.mu.Unlock()

	f.spam.Reset(userID, "")
	f.logger.WithField("user_id", userID).Info("Warnings reset")
}

// Sweep evicts users with no warning left inside the TTL and prunes the spam
// windows to the same horizon.
func (f *Filter) Sweep() {
	f.mu.Lock()
	now := f.clock.Now()
	for userID, ws := range f.warnings {
		recent := f.activeWarnings(ws, now)
		if len(recent) == 0 {
			delete(f.warnings, userID)
			continue
		}
		f.warnings[userID] = recent
	}
	users := len(f.warnings)
	f.mu.Unlock()

	f.spam.Sweep()

	f.logger.WithFields(logrus.Fields{
		"users_with_warnings": users,
		"spam_trackers":       f.spam.Stats().SpamWindows,
	}).Debug("Moderation sweep finished")
}

// Stats returns a snapshot of the moderation state.
func (f *Filter) Stats() models.ModerationStats {
	f.mu.Lock()
	total := 0
	for _, ws := range f.warnings {
		total += len(ws)
	}
	users := len(f.warnings)
	f.mu.Unlock()

	banned := 0
	for _, w := range f.opts.BannedWords {
		if strings.TrimSpace(w) != "" {
			banned++
		}
	}

	return models.ModerationStats{
		ActiveSpamTrackers: f.spam.Stats().SpamWindows,
		TotalWarnings:      total,
		UsersWithWarnings:  users,
		BannedWordsCount:   banned,
	}
}

func (f *Filter) activeWarnings(ws []models.Warning, now time.Time) []models.Warning {
	var recent []models.Warning
	for _, w := range ws {
		if now.Sub(w.Timestamp) < f.opts.WarningTTL {
			recent = append(recent, w)
		}
	}
	return recent
}
