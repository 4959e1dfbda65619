// Package activity keeps a short buffer of recent channel messages so the
// decision engine can tell a busy channel from a quiet one.
package activity

import (
	"sync"
	"time"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/models"
	"github.com/sirupsen/logrus"
)

type event struct {
	channelID string
	at        time.Time
}

// Buffer is a capped, time-ordered list of message events.
type Buffer struct {
	mu        sync.Mutex
	clock     clock.Clock
	events    []event
	capacity  int
	retention time.Duration
	logger    *logrus.Logger
}

func New(clk clock.Clock, capacity int, retention time.Duration, logger *logrus.Logger) *Buffer {
	return &Buffer{
		clock:     clk,
		capacity:  capacity,
		retention: retention,
		logger:    logger,
	}
}

// Record appends msg, dropping the oldest event once the buffer is full.
func (b *Buffer) Record(msg models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := msg.CreatedAt
	if at.IsZero() {
		at = b.clock.Now()
	}

	b.events = append(b.events, event{channelID: msg.ChannelID, at: at})
	if over := len(b.events) - b.capacity; over > 0 {
		b.events = append([]event(nil), b.events[over:]...)
	}
}

// CountRecent returns how many recorded messages of channelID are newer than window.
func (b *Buffer) CountRecent(channelID string, window time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.clock.Now().Add(-window)
	n := 0
	for _, e := range b.events {
		if e.channelID == channelID && e.at.After(cutoff) {
			n++
		}
	}
	return n
}

// Sweep drops events older than the retention.
func (b *Buffer) Sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.clock.Now().Add(-b.retention)
	kept := b.events[:0]
	for _, e := range b.events {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(b.events) - len(kept)
	b.events = kept

	if removed > 0 {
		b.logger.WithField("removed", removed).Debug("Activity sweep finished")
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
