package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Persona    PersonaConfig    `mapstructure:"persona"`
	Decision   DecisionConfig   `mapstructure:"decision"`
	Cooldown   CooldownConfig   `mapstructure:"cooldown"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	AI         AIConfig         `mapstructure:"ai"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	History    HistoryConfig    `mapstructure:"history"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Activity   ActivityConfig   `mapstructure:"activity"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string `mapstructure:"token"`
	CommandPrefix string `mapstructure:"command_prefix"`
	StatusText    string `mapstructure:"status_text"`

	// Admins may run commands; empty means nobody.
	Admins []string `mapstructure:"admins"`
}

type PersonaConfig struct {
	Name            string        `mapstructure:"name"`
	Aliases         []string      `mapstructure:"aliases"`
	ResponseDelay   DelayRange    `mapstructure:"response_delay"`
	TypingDuration  DelayRange    `mapstructure:"typing_duration"`
	ReactionChance  float64       `mapstructure:"reaction_chance"`
	VoiceJoinChance float64       `mapstructure:"voice_join_chance"`
	VoiceJoinDelay  DelayRange    `mapstructure:"voice_join_delay"`
	VoiceLeaveDelay DelayRange    `mapstructure:"voice_leave_delay"`
	Language        string        `mapstructure:"language"`
	VoiceReadyWait  time.Duration `mapstructure:"voice_ready_wait"`
}

// DelayRange is an inclusive random delay interval.
type DelayRange struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

type DecisionConfig struct {
	DirectMention       float64       `mapstructure:"direct_mention"`
	Reply               float64       `mapstructure:"reply"`
	Question            float64       `mapstructure:"question"`
	Conversation        float64       `mapstructure:"conversation"`
	Random              float64       `mapstructure:"random"`
	HotChannelThreshold int           `mapstructure:"hot_channel_threshold"`
	ActivityWindow      time.Duration `mapstructure:"activity_window"`
}

type CooldownConfig struct {
	Window        time.Duration `mapstructure:"window"`
	SpamMax       int           `mapstructure:"spam_max"`
	SpamWindow    time.Duration `mapstructure:"spam_window"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ModerationConfig struct {
	BannedWords    []string      `mapstructure:"banned_words"`
	SpamMax        int           `mapstructure:"spam_max"`
	SpamWindow     time.Duration `mapstructure:"spam_window"`
	WarningTTL     time.Duration `mapstructure:"warning_ttl"`
	WarningLimit   int           `mapstructure:"warning_limit"`
	FloodRatio     float64       `mapstructure:"flood_ratio"`
	FloodMinLength int           `mapstructure:"flood_min_length"`
	AllowedInvite  string        `mapstructure:"allowed_invite"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type AIConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	Providers       []string       `mapstructure:"providers"`
	Gemini          ProviderConfig `mapstructure:"gemini"`
	OpenAI          ProviderConfig `mapstructure:"openai"`
	MaxOutputTokens int            `mapstructure:"max_output_tokens"`
	Temperature     float64        `mapstructure:"temperature"`
	TopP            float64        `mapstructure:"top_p"`
	TopK            int            `mapstructure:"top_k"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	Retries         int            `mapstructure:"retries"`
	MaxReplyLength  int            `mapstructure:"max_reply_length"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type HistoryConfig struct {
	MaxTurns      int           `mapstructure:"max_turns"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	ContextTurns  int           `mapstructure:"context_turns"`
	PromptTurns   int           `mapstructure:"prompt_turns"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type ActivityConfig struct {
	Capacity      int           `mapstructure:"capacity"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type AudioConfig struct {
	PresetsDir      string          `mapstructure:"presets_dir"`
	TempDir         string          `mapstructure:"temp_dir"`
	Language        string          `mapstructure:"language"`
	Providers       []string        `mapstructure:"providers"`
	ChunkSize       int             `mapstructure:"chunk_size"`
	ChunkPause      time.Duration   `mapstructure:"chunk_pause"`
	RequestGap      time.Duration   `mapstructure:"request_gap"`
	PlaybackTimeout time.Duration   `mapstructure:"playback_timeout"`
	CleanupDelay    time.Duration   `mapstructure:"cleanup_delay"`
	SynthTimeout    time.Duration   `mapstructure:"synth_timeout"`
	GoogleTTS       GoogleTTSConfig `mapstructure:"google_tts"`
	Espeak          EspeakConfig    `mapstructure:"espeak"`
	OpenAI          SpeechConfig    `mapstructure:"openai"`
}

type GoogleTTSConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type EspeakConfig struct {
	Binary string `mapstructure:"binary"`
	Voice  string `mapstructure:"voice"`
	Speed  int    `mapstructure:"speed"`
}

type SpeechConfig struct {
	Model string `mapstructure:"model"`
	Voice string `mapstructure:"voice"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			CommandPrefix: "!",
			StatusText:    "VALORANT",
		},
		Persona: PersonaConfig{
			Name:            "Luisa",
			Aliases:         []string{"lu "},
			ResponseDelay:   DelayRange{Min: time.Second, Max: 3 * time.Second},
			TypingDuration:  DelayRange{Min: 800 * time.Millisecond, Max: 2 * time.Second},
			ReactionChance:  0.3,
			VoiceJoinChance: 0.2,
			VoiceJoinDelay:  DelayRange{Min: 5 * time.Second, Max: 30 * time.Second},
			VoiceLeaveDelay: DelayRange{Min: 5 * time.Second, Max: 15 * time.Second},
			Language:        "pt-BR",
			VoiceReadyWait:  30 * time.Second,
		},
		Decision: DecisionConfig{
			DirectMention:       1.0,
			Reply:               0.8,
			Question:            0.9,
			Conversation:        0.6,
			Random:              0.15,
			HotChannelThreshold: 3,
			ActivityWindow:      60 * time.Second,
		},
		Cooldown: CooldownConfig{
			Window:        5 * time.Second,
			SpamMax:       5,
			SpamWindow:    10 * time.Second,
			Retention:     60 * time.Second,
			SweepInterval: 5 * time.Minute,
		},
		Moderation: ModerationConfig{
			SpamMax:        5,
			SpamWindow:     10 * time.Second,
			WarningTTL:     time.Hour,
			WarningLimit:   3,
			FloodRatio:     0.3,
			FloodMinLength: 20,
			AllowedInvite:  "official",
			SweepInterval:  10 * time.Minute,
		},
		AI: AIConfig{
			Enabled:   true,
			Providers: []string{"gemini", "openai"},
			Gemini: ProviderConfig{
				BaseURL: "https://generativelanguage.googleapis.com/v1beta",
				Model:   "gemini-2.5-flash-preview-09-2025",
			},
			OpenAI: ProviderConfig{
				Model: "gpt-4o-mini",
			},
			MaxOutputTokens: 100,
			Temperature:     1.2,
			TopP:            0.95,
			TopK:            64,
			Timeout:         30 * time.Second,
			Retries:         1,
			MaxReplyLength:  200,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 20,
			Burst:             5,
		},
		History: HistoryConfig{
			MaxTurns:      10,
			MaxAge:        5 * time.Minute,
			ContextTurns:  5,
			PromptTurns:   3,
			PurgeInterval: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "luisa:history",
			},
		},
		Activity: ActivityConfig{
			Capacity:      50,
			Retention:     time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Audio: AudioConfig{
			PresetsDir:      "audios",
			TempDir:         "temp",
			Language:        "pt-BR",
			Providers:       []string{"google_tts", "espeak", "openai"},
			ChunkSize:       190,
			ChunkPause:      300 * time.Millisecond,
			RequestGap:      500 * time.Millisecond,
			PlaybackTimeout: 30 * time.Second,
			CleanupDelay:    10 * time.Second,
			SynthTimeout:    15 * time.Second,
			GoogleTTS: GoogleTTSConfig{
				BaseURL: "https://translate.google.com",
			},
			Espeak: EspeakConfig{
				Binary: "espeak",
				Voice:  "pt-br",
				Speed:  150,
			},
			OpenAI: SpeechConfig{
				Model: "tts-1",
				Voice: "nova",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			File: FileConfig{
				Path:       "logs/bot.log",
				MaxSize:    100,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    9090,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				ServiceName: "luisa-bot",
			},
		},
		I18n: I18nConfig{
			DefaultLanguage: "pt-BR",
			Languages:       []string{"pt-BR", "en"},
		},
	}
}

// LoadConfig layers the YAML file at configPath (optional when empty) and the
// environment over Default.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("bot.token", "BOT_TOKEN", "DISCORD_TOKEN")
	v.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("ai.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")
	v.BindEnv("logging.level", "LOG_LEVEL")

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := os.Getenv("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	if admins := os.Getenv("ADMIN_IDS"); admins != "" {
		config.Bot.Admins = SplitList(admins)
	}

	if banned := os.Getenv("BANNED_WORDS"); banned != "" {
		config.Moderation.BannedWords = SplitList(banned)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// SplitList splits a comma separated list, trimming and lowercasing entries.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Persona.Name == "" {
		return fmt.Errorf("persona name is required")
	}

	probabilities := map[string]float64{
		"decision.direct_mention":   cfg.Decision.DirectMention,
		"decision.reply":            cfg.Decision.Reply,
		"decision.question":         cfg.Decision.Question,
		"decision.conversation":     cfg.Decision.Conversation,
		"decision.random":           cfg.Decision.Random,
		"persona.reaction_chance":   cfg.Persona.ReactionChance,
		"persona.voice_join_chance": cfg.Persona.VoiceJoinChance,
	}
	for key, p := range probabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", key, p)
		}
	}

	if cfg.History.MaxTurns <= 0 {
		return fmt.Errorf("history.max_turns must be positive")
	}
	if cfg.Audio.ChunkSize <= 0 {
		return fmt.Errorf("audio.chunk_size must be positive")
	}
	if cfg.Moderation.WarningLimit <= 0 {
		return fmt.Errorf("moderation.warning_limit must be positive")
	}

	switch cfg.Storage.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	return nil
}
