package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/gateway/discord"
	"github.com/luisa-bot-go/internal/handlers"
	"github.com/luisa-bot-go/internal/i18n"
	"github.com/luisa-bot-go/internal/middleware"
	"github.com/luisa-bot-go/internal/random"
	"github.com/luisa-bot-go/internal/scheduler"
	"github.com/luisa-bot-go/internal/services/activity"
	"github.com/luisa-bot-go/internal/services/ai"
	"github.com/luisa-bot-go/internal/services/audio"
	"github.com/luisa-bot-go/internal/services/classifier"
	"github.com/luisa-bot-go/internal/services/cooldown"
	"github.com/luisa-bot-go/internal/services/decision"
	"github.com/luisa-bot-go/internal/services/generator"
	"github.com/luisa-bot-go/internal/services/moderation"
	"github.com/luisa-bot-go/internal/services/reaction"
	"github.com/luisa-bot-go/internal/services/storage"
	"github.com/luisa-bot-go/internal/telemetry"
	"github.com/luisa-bot-go/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

var (
	configPath string
	envFile    string
)

func main() {
	root := &cobra.Command{
		Use:           "luisa-bot",
		Short:         "Luisa, a casual pt-BR chat persona for Discord",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to .env file")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to Discord and start responding",
			RunE:  runBot,
		},
		&cobra.Command{
			Use:   "presets",
			Short: "List the audio presets found in the presets directory",
			RunE:  listPresets,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	// It's okay if .env doesn't exist
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return config.LoadConfig(configPath)
}

func listPresets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	presets, err := audio.LoadPresets(cfg.Audio.PresetsDir)
	if err != nil {
		return err
	}

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		return err
	}
	lang := cfg.I18n.DefaultLanguage
	data := map[string]interface{}{"Count": presets.Len(), "Dir": presets.Dir()}

	out := cmd.OutOrStdout()
	if presets.Len() == 0 {
		fmt.Fprintln(out, localizer.Get(lang, i18n.MsgPresetsEmpty, data))
		return nil
	}
	fmt.Fprintln(out, localizer.Get(lang, i18n.MsgPresetsHeader, data))
	for _, p := range presets.List() {
		fmt.Fprintf(out, "  %-24s %-24s %s\n", p.ID, p.Name, p.Filename)
	}
	return nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required (DISCORD_TOKEN)")
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.WithField("version", version).Info("Starting Luisa...")

	shutdownTracing, err := telemetry.InitTracing(cfg.Monitoring.Tracing.ServiceName, version, log)
	if err != nil {
		log.WithError(err).Warn("Tracing disabled")
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	src := random.NewTimeSeeded()
	metrics := middleware.NewMetrics()

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		return fmt.Errorf("failed to initialize i18n: %w", err)
	}

	storageManager, err := storage.NewManager(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storageManager.Close()

	// Pipeline services
	cooldowns := cooldown.New(clk, cfg.Cooldown.Retention, log)
	filter := moderation.New(moderation.OptionsFromConfig(&cfg.Moderation), clk, log)
	recent := activity.New(clk, cfg.Activity.Capacity, cfg.Activity.Retention, log)
	limiter := middleware.NewRateLimiter(&cfg.RateLimit, clk, log, metrics)
	gen := generator.New(
		generator.OptionsFromConfig(cfg),
		classifier.New(nil),
		ai.ProvidersFromConfig(&cfg.AI, log),
		storageManager.History(),
		limiter,
		src,
		clk,
		log,
		metrics,
	)

	// Voice
	presets, err := audio.LoadPresets(cfg.Audio.PresetsDir)
	if err != nil {
		return fmt.Errorf("failed to load audio presets: %w", err)
	}
	log.WithFields(logrus.Fields{
		"count": presets.Len(),
		"dir":   presets.Dir(),
	}).Info("Audio presets loaded")
	if err := os.MkdirAll(cfg.Audio.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleaner := audio.NewCleaner(cfg.Audio.CleanupDelay, log)
	defer cleaner.Flush()

	session, err := discord.NewSession(cfg.Bot.Token)
	if err != nil {
		return err
	}
	voice := discord.NewVoiceManager(
		session,
		cfg,
		audio.ProvidersFromConfig(&cfg.Audio, &cfg.AI.OpenAI, log),
		presets,
		cleaner,
		src,
		log,
		metrics,
	)

	// Handlers
	messageHandler := handlers.NewMessageHandler(
		cfg,
		filter,
		recent,
		cooldowns,
		decision.New(&cfg.Decision, &cfg.Persona, src),
		gen,
		reaction.New(cfg.Persona.ReactionChance, src),
		src,
		log,
		metrics,
	)
	commandHandler := handlers.NewCommandHandler(
		cfg,
		filter,
		cooldowns,
		gen,
		presets,
		voice,
		localizer,
		clk,
		log,
	)

	// Maintenance
	sched := scheduler.New(clk, log)
	sched.Register("cooldown_sweep", cfg.Cooldown.SweepInterval, cooldowns.Sweep)
	sched.Register("moderation_sweep", cfg.Moderation.SweepInterval, filter.Sweep)
	sched.Register("activity_sweep", cfg.Activity.SweepInterval, recent.Sweep)
	sched.Register("ratelimit_sweep", cfg.Cooldown.SweepInterval, limiter.Sweep)
	sched.Register("history_purge", cfg.History.PurgeInterval, func() {
		purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if n, err := gen.PurgeHistory(purgeCtx); err != nil {
			log.WithError(err).Warn("History purge failed")
		} else if n > 0 {
			log.WithField("removed", n).Debug("Purged old history")
		}
	})
	sched.Register("tracker_metrics", time.Minute, func() {
		metrics.SetTrackerSize("cooldowns", cooldowns.Stats().TotalCooldowns)
		metrics.SetTrackerSize("warnings", filter.Stats().UsersWithWarnings)
		metrics.SetTrackerSize("activity", recent.Len())
		metrics.SetTrackerSize("rate_limiters", limiter.Len())
		metrics.SetTrackerSize("history", gen.HistoryLen(ctx))
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	gateway := discord.NewGateway(session, cfg, messageHandler, commandHandler, voice, localizer, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.Run(gctx)
	})

	if cfg.Monitoring.Metrics.Enabled {
		server := middleware.NewMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path)
		g.Go(func() error {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("Bot stopped")
	return err
}
