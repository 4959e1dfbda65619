// Package cooldown throttles interactions per (user, channel) and counts
// per-user message bursts.
package cooldown

import (
	"sync"
	"time"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

type entry struct {
	userID    string
	channelID string
	last      time.Time
}

// Tracker owns the cooldown and spam-window state. Entries never expire on
// their own; Sweep evicts them against the injected clock.
type Tracker struct {
	mu        sync.Mutex
	clock     clock.Clock
	cooldowns *cache.Cache // user:channel -> *entry
	spam      *cache.Cache // user -> []time.Time
	retention time.Duration
	logger    *logrus.Logger
}

// New creates a tracker. retention bounds how long idle entries survive a sweep.
func New(clk clock.Clock, retention time.Duration, logger *logrus.Logger) *Tracker {
	return &Tracker{
		clock:     clk,
		cooldowns: cache.New(cache.NoExpiration, 0),
		spam:      cache.New(cache.NoExpiration, 0),
		retention: retention,
		logger:    logger,
	}
}

func key(userID, channelID string) string {
	return userID + ":" + channelID
}

// IsOnCooldown reports whether the user interacted in the channel within
// window. A false result records now as the new baseline.
func (t *Tracker) IsOnCooldown(userID, channelID string, window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	k := key(userID, channelID)

	if v, ok := t.cooldowns.Get(k); ok {
		e := v.(*entry)
		if now.Sub(e.last) < window {
			return true
		}
		e.last = now
		return false
	}

	t.cooldowns.Set(k, &entry{userID: userID, channelID: channelID, last: now}, cache.NoExpiration)
	return false
}

// IsSpamming reports whether the user already sent max messages within the
// trailing window. The current message is only counted when it is not spam.
func (t *Tracker) IsSpamming(userID string, max int, window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var history []time.Time
	if v, ok := t.spam.Get(userID); ok {
		history = v.([]time.Time)
	}

	recent := pruneSince(history, now.Add(-window))
	if len(recent) >= max {
		t.spam.Set(userID, recent, cache.NoExpiration)
		return true
	}

	t.spam.Set(userID, append(recent, now), cache.NoExpiration)
	return false
}

// Reset clears the (user, channel) cooldown. With an empty channelID every
// cooldown of the user is cleared together with the user's spam window.
func (t *Tracker) Reset(userID, channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if channelID != "" {
		t.cooldowns.Delete(key(userID, channelID))
		return
	}

	for k, item := range t.cooldowns.Items() {
		if item.Object.(*entry).userID == userID {
			t.cooldowns.Delete(k)
		}
	}
	t.spam.Delete(userID)
}

// Sweep evicts cooldowns untouched for longer than the retention and prunes
// spam windows to the retention, dropping empty ones.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-t.retention)

	for k, item := range t.cooldowns.Items() {
		if item.Object.(*entry).last.Before(cutoff) {
			t.cooldowns.Delete(k)
		}
	}

	for userID, item := range t.spam.Items() {
		recent := pruneSince(item.Object.([]time.Time), cutoff)
		if len(recent) == 0 {
			t.spam.Delete(userID)
			continue
		}
		t.spam.Set(userID, recent, cache.NoExpiration)
	}

	t.logger.WithFields(logrus.Fields{
		"cooldowns":    t.cooldowns.ItemCount(),
		"spam_windows": t.spam.ItemCount(),
	}).Debug("Cooldown sweep finished")
}

// Stats returns a snapshot of the tracker sizes.
func (t *Tracker) Stats() models.CooldownStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	active := 0
	for _, item := range t.cooldowns.Items() {
		if now.Sub(item.Object.(*entry).last) < t.retention {
			active++
		}
	}

	return models.CooldownStats{
		TotalCooldowns:  t.cooldowns.ItemCount(),
		ActiveCooldowns: active,
		SpamWindows:     t.spam.ItemCount(),
	}
}

// pruneSince returns the timestamps strictly after cutoff in a new slice.
func pruneSince(ts []time.Time, cutoff time.Time) []time.Time {
	out := make([]time.Time, 0, len(ts)+1)
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
