package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// History stores the conversation turns used as prompt context. Implementations
// keep at most their capacity, dropping the oldest turns first.
type History interface {
	Append(ctx context.Context, turns ...models.ConversationTurn) error
	// Recent returns up to n of the newest turns of channelID, oldest first.
	Recent(ctx context.Context, channelID string, n int) ([]models.ConversationTurn, error)
	// PurgeOlderThan drops turns stamped before cutoff and reports how many went.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}

// Manager manages different storage backends
type Manager struct {
	history     History
	logger      *logrus.Logger
	redisClient *redis.Client // Store redis client reference
}

// NewManager creates a new storage manager with capacity turns of history
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	manager := &Manager{
		logger: logger,
	}

	capacity := 2 * cfg.History.MaxTurns

	switch cfg.Storage.Type {
	case "redis":
		redisHistory, err := NewRedisHistory(&cfg.Storage.Redis, capacity, logger)
		if err != nil {
			return nil, err
		}
		manager.history = redisHistory
		// Store redis client reference
		manager.redisClient = redisHistory.client
	case "memory":
		manager.history = NewMemoryHistory(capacity)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	logger.WithFields(logrus.Fields{
		"backend":  cfg.Storage.Type,
		"capacity": capacity,
	}).Info("Conversation history ready")

	return manager, nil
}

// History returns the configured history backend
func (m *Manager) History() History {
	return m.history
}

// Close releases the backend connection, if any
func (m *Manager) Close() error {
	if m.redisClient != nil {
		return m.redisClient.Close()
	}
	return nil
}

// MemoryHistory keeps turns in process memory
type MemoryHistory struct {
	mu       sync.Mutex
	turns    []models.ConversationTurn
	capacity int
}

func NewMemoryHistory(capacity int) *MemoryHistory {
	return &MemoryHistory{capacity: capacity}
}

func (m *MemoryHistory) Append(ctx context.Context, turns ...models.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turns...)
	if over := len(m.turns) - m.capacity; over > 0 {
		m.turns = append([]models.ConversationTurn(nil), m.turns[over:]...)
	}
	return nil
}

func (m *MemoryHistory) Recent(ctx context.Context, channelID string, n int) ([]models.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return lastInChannel(m.turns, channelID, n), nil
}

func (m *MemoryHistory) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept, removed := keepSince(m.turns, cutoff)
	m.turns = kept
	return removed, nil
}

func (m *MemoryHistory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns), nil
}

// RedisHistory keeps turns in a capped Redis list
type RedisHistory struct {
	client   *redis.Client
	key      string
	capacity int
	logger   *logrus.Logger
}

func NewRedisHistory(cfg *config.RedisConfig, capacity int, logger *logrus.Logger) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "history"
	}

	return &RedisHistory{
		client:   client,
		key:      key,
		capacity: capacity,
		logger:   logger,
	}, nil
}

func (r *RedisHistory) Append(ctx context.Context, turns ...models.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key, values...)
		pipe.LTrim(ctx, r.key, int64(-r.capacity), -1)
		return nil
	})
	return err
}

func (r *RedisHistory) Recent(ctx context.Context, channelID string, n int) ([]models.ConversationTurn, error) {
	turns, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return lastInChannel(turns, channelID, n), nil
}

// purgeAttempts bounds the rewrites retried after a concurrent append.
const purgeAttempts = 5

// PurgeOlderThan rewrites the list under WATCH, so an Append landing between
// the read and the rewrite aborts the transaction instead of being lost.
func (r *RedisHistory) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var removed int
	purge := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, r.key, 0, -1).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		var kept []models.ConversationTurn
		kept, removed = keepSince(r.decode(raw), cutoff)
		if removed == 0 {
			return nil
		}

		values, err := encodeTurns(kept)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.key)
			if len(values) > 0 {
				pipe.RPush(ctx, r.key, values...)
			}
			return nil
		})
		return err
	}

	for i := 0; i < purgeAttempts; i++ {
		err := r.client.Watch(ctx, purge, r.key)
		if err == nil {
			return removed, nil
		}
		if err != redis.TxFailedErr {
			return 0, err
		}
	}
	return 0, fmt.Errorf("history purge conflicted with appends %d times", purgeAttempts)
}

func (r *RedisHistory) Len(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	return int(n), err
}

func (r *RedisHistory) all(ctx context.Context) ([]models.ConversationTurn, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.decode(raw), nil
}

func (r *RedisHistory) decode(raw []string) []models.ConversationTurn {
	turns := make([]models.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			r.logger.WithError(err).Warn("Skipping undecodable history entry")
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

func encodeTurns(turns []models.ConversationTurn) ([]interface{}, error) {
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return nil, err
		}
		values = append(values, data)
	}
	return values, nil
}

func lastInChannel(turns []models.ConversationTurn, channelID string, n int) []models.ConversationTurn {
	var matched []models.ConversationTurn
	for _, turn := range turns {
		if turn.ChannelID == channelID {
			matched = append(matched, turn)
		}
	}
	if n >= 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}

// keepSince keeps turns stamped strictly after cutoff.
func keepSince(turns []models.ConversationTurn, cutoff time.Time) ([]models.ConversationTurn, int) {
	kept := make([]models.ConversationTurn, 0, len(turns))
	for _, turn := range turns {
		if turn.Timestamp.After(cutoff) {
			kept = append(kept, turn)
		}
	}
	return kept, len(turns) - len(kept)
}
