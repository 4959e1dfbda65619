package middleware

import (
	"fmt"
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(key string) bool
	Reset(key string)
}

// KeyedRateLimiter implements a token bucket per key (channel or user)
type KeyedRateLimiter struct {
	enabled  bool
	limiters map[string]*limiterEntry
	mu       sync.RWMutex
	rpm      int
	burst    int
	idleTTL  time.Duration
	clock    clock.Clock
	logger   *logrus.Logger
	metrics  *Metrics
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. Token refills and idle sweeps
// both follow clk.
func NewRateLimiter(cfg *config.RateLimitConfig, clk clock.Clock, logger *logrus.Logger, metrics *Metrics) *KeyedRateLimiter {
	if !cfg.Enabled {
		return &KeyedRateLimiter{enabled: false}
	}

	return &KeyedRateLimiter{
		enabled:  true,
		limiters: make(map[string]*limiterEntry),
		rpm:      cfg.RequestsPerMinute,
		burst:    cfg.Burst,
		idleTTL:  time.Hour,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
	}
}

// Allow reports whether key may spend one request now
func (r *KeyedRateLimiter) Allow(key string) bool {
	if !r.enabled {
		return true
	}

	now := r.clock.Now()
	allowed := r.getLimiter(key, now).AllowN(now, 1)
	if !allowed {
		r.logger.WithFields(logrus.Fields{
			"key": key,
		}).Warn("Rate limit exceeded")
		r.metrics.RecordRateLimitExceeded()
	}

	return allowed
}

// Reset resets the rate limiter for a key
func (r *KeyedRateLimiter) Reset(key string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.limiters, key)
	r.mu.Unlock()
}

// Sweep drops limiters that have not been used within the idle TTL
func (r *KeyedRateLimiter) Sweep() {
	if !r.enabled {
		return
	}

	cutoff := r.clock.Now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

// Len returns the number of tracked keys
func (r *KeyedRateLimiter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// getLimiter gets or creates a rate limiter for a key
func (r *KeyedRateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.limiters[key]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	// Rate per second = RPM / 60
	rps := float64(r.rpm) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), r.burst)
	r.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: now}

	return limiter
}

// maxOutboundLength is the platform limit for one chat message.
const maxOutboundLength = 2000

var unsafeBlocks = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>|<iframe[^>]*>.*?</iframe>`)

// SecurityMiddleware provides security checks
type SecurityMiddleware struct {
	logger *logrus.Logger
}

// NewSecurityMiddleware creates security middleware
func NewSecurityMiddleware(logger *logrus.Logger) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger: logger,
	}
}

// ValidateOutbound rejects text the chat platform would refuse
func (s *SecurityMiddleware) ValidateOutbound(text string) error {
	if text == "" {
		return fmt.Errorf("empty message")
	}
	if n := utf8.RuneCountInString(text); n > maxOutboundLength {
		return fmt.Errorf("message too long: %d characters", n)
	}
	return nil
}

// SanitizeOutbound removes script and iframe blocks before sending
func (s *SecurityMiddleware) SanitizeOutbound(text string) string {
	cleaned := unsafeBlocks.ReplaceAllString(text, "")
	if cleaned != text {
		s.logger.Warn("Removed unsafe markup from outbound message")
	}
	return cleaned
}
