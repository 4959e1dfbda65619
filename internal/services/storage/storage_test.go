package storage

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/models"
	"github.com/sirupsen/logrus"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func turn(channel string, i int) models.ConversationTurn {
	return models.ConversationTurn{
		Author:    "user",
		Content:   fmt.Sprintf("msg %d", i),
		ChannelID: channel,
		Timestamp: base.Add(time.Duration(i) * time.Minute),
	}
}

func backends(t *testing.T, capacity int) map[string]History {
	t.Helper()

	mr := miniredis.RunT(t)
	rh, err := NewRedisHistory(&config.RedisConfig{Addr: mr.Addr(), Key: "test:history"}, capacity, testLogger())
	if err != nil {
		t.Fatalf("NewRedisHistory: %v", err)
	}
	t.Cleanup(func() { rh.client.Close() })

	return map[string]History{
		"memory": NewMemoryHistory(capacity),
		"redis":  rh,
	}
}

func TestHistoryCapDropsOldest(t *testing.T) {
	for name, h := range backends(t, 4) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 6; i++ {
				if err := h.Append(ctx, turn("c1", i)); err != nil {
					t.Fatal(err)
				}
			}

			n, err := h.Len(ctx)
			if err != nil || n != 4 {
				t.Fatalf("Len = %d, %v; want 4", n, err)
			}

			recent, err := h.Recent(ctx, "c1", 10)
			if err != nil {
				t.Fatal(err)
			}
			if recent[0].Content != "msg 2" || recent[3].Content != "msg 5" {
				t.Fatalf("unexpected survivors: %+v", recent)
			}
		})
	}
}

func TestHistoryRecentIsChannelScoped(t *testing.T) {
	for name, h := range backends(t, 20) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h.Append(ctx, turn("c1", 0), turn("c2", 1), turn("c1", 2), turn("c1", 3), turn("c2", 4))

			recent, err := h.Recent(ctx, "c1", 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(recent) != 2 || recent[0].Content != "msg 2" || recent[1].Content != "msg 3" {
				t.Fatalf("Recent = %+v", recent)
			}

			none, _ := h.Recent(ctx, "c9", 5)
			if len(none) != 0 {
				t.Fatalf("unknown channel returned %d turns", len(none))
			}
		})
	}
}

func TestHistoryPurge(t *testing.T) {
	for name, h := range backends(t, 20) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				h.Append(ctx, turn("c1", i))
			}

			removed, err := h.PurgeOlderThan(ctx, base.Add(2*time.Minute))
			if err != nil {
				t.Fatal(err)
			}
			if removed != 3 {
				t.Fatalf("removed = %d, want 3", removed)
			}
			if n, _ := h.Len(ctx); n != 2 {
				t.Fatalf("Len after purge = %d", n)
			}

			removed, _ = h.PurgeOlderThan(ctx, base.Add(time.Hour))
			if removed != 2 {
				t.Fatalf("second purge removed %d", removed)
			}
			if n, _ := h.Len(ctx); n != 0 {
				t.Fatalf("history should be empty, got %d", n)
			}
		})
	}
}

func TestNewManager(t *testing.T) {
	cfg := config.Default()
	m, err := NewManager(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if _, ok := m.History().(*MemoryHistory); !ok {
		t.Fatalf("default backend = %T, want memory", m.History())
	}

	cfg.Storage.Type = "redis"
	cfg.Storage.Redis.Addr = miniredis.RunT(t).Addr()
	m, err = NewManager(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if _, ok := m.History().(*RedisHistory); !ok {
		t.Fatalf("backend = %T, want redis", m.History())
	}
}

func TestHistoryPurgeKeepsConcurrentAppends(t *testing.T) {
	for name, h := range backends(t, 100) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 10; i++ {
				h.Append(ctx, turn("c1", i))
			}
			cutoff := base.Add(30 * time.Minute)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 60; i < 90; i++ {
					if err := h.Append(ctx, turn("c1", i)); err != nil {
						t.Errorf("Append: %v", err)
						return
					}
				}
			}()

			for purging := true; purging; {
				select {
				case <-done:
					purging = false
				default:
				}
				// conflicts may fail a purge; they must not drop appends
				h.PurgeOlderThan(ctx, cutoff)
			}
			if _, err := h.PurgeOlderThan(ctx, cutoff); err != nil {
				t.Fatal(err)
			}

			if n, _ := h.Len(ctx); n != 30 {
				t.Fatalf("Len = %d, want the 30 appended turns", n)
			}
		})
	}
}
