package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := validateConfig(Default()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadConfigLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
persona:
  name: Bia
decision:
  random: 0.05
cooldown:
  window: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Persona.Name != "Bia" {
		t.Errorf("persona name = %q, want Bia", cfg.Persona.Name)
	}
	if cfg.Decision.Random != 0.05 {
		t.Errorf("random = %v, want 0.05", cfg.Decision.Random)
	}
	if cfg.Cooldown.Window != 2*time.Second {
		t.Errorf("cooldown window = %v, want 2s", cfg.Cooldown.Window)
	}
	// untouched values keep their defaults
	if cfg.Decision.Question != 0.9 {
		t.Errorf("question = %v, want default 0.9", cfg.Decision.Question)
	}
	if cfg.Audio.ChunkSize != 190 {
		t.Errorf("chunk size = %d, want default 190", cfg.Audio.ChunkSize)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("BANNED_WORDS", " Foo, bar ,,BAZ")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := []string{"foo", "bar", "baz"}
	if len(cfg.Moderation.BannedWords) != len(want) {
		t.Fatalf("banned words = %v, want %v", cfg.Moderation.BannedWords, want)
	}
	for i := range want {
		if cfg.Moderation.BannedWords[i] != want[i] {
			t.Errorf("banned[%d] = %q, want %q", i, cfg.Moderation.BannedWords[i], want[i])
		}
	}
	if cfg.Storage.Redis.Addr != "cache:6379" {
		t.Errorf("redis addr = %q", cfg.Storage.Redis.Addr)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"probability above one", func(c *Config) { c.Decision.Question = 1.5 }},
		{"negative probability", func(c *Config) { c.Persona.ReactionChance = -0.1 }},
		{"empty persona", func(c *Config) { c.Persona.Name = "" }},
		{"zero chunk size", func(c *Config) { c.Audio.ChunkSize = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "sqlite" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
