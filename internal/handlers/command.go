package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/i18n"
	"github.com/luisa-bot-go/internal/models"
	"github.com/luisa-bot-go/internal/services/audio"
	"github.com/luisa-bot-go/internal/services/cooldown"
	"github.com/luisa-bot-go/internal/services/generator"
	"github.com/luisa-bot-go/internal/services/moderation"
	"github.com/sirupsen/logrus"
)

// Voice resolves the playback queue and sink of a guild's voice connection.
type Voice interface {
	Queue(guildID string) (*audio.Queue, audio.Sink, bool)
}

// CommandHandler handles prefixed admin commands
type CommandHandler struct {
	config     *config.Config
	moderation *moderation.Filter
	cooldowns  *cooldown.Tracker
	generator  *generator.Generator
	presets    *audio.PresetRegistry
	voice      Voice
	localizer  *i18n.Localizer
	clock      clock.Clock
	started    time.Time
	admins     map[string]bool
	logger     *logrus.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	cfg *config.Config,
	moderation *moderation.Filter,
	cooldowns *cooldown.Tracker,
	generator *generator.Generator,
	presets *audio.PresetRegistry,
	voice Voice,
	localizer *i18n.Localizer,
	clk clock.Clock,
	logger *logrus.Logger,
) *CommandHandler {
	admins := make(map[string]bool, len(cfg.Bot.Admins))
	for _, id := range cfg.Bot.Admins {
		admins[id] = true
	}

	return &CommandHandler{
		config:     cfg,
		moderation: moderation,
		cooldowns:  cooldowns,
		generator:  generator,
		presets:    presets,
		voice:      voice,
		localizer:  localizer,
		clock:      clk,
		started:    clk.Now(),
		admins:     admins,
		logger:     logger,
	}
}

// IsCommand reports whether msg starts with the command prefix
func (h *CommandHandler) IsCommand(msg models.Message) bool {
	prefix := h.config.Bot.CommandPrefix
	return prefix != "" && strings.HasPrefix(msg.Content, prefix)
}

// HandleCommand runs the command in msg and returns the text to reply with
func (h *CommandHandler) HandleCommand(ctx context.Context, msg models.Message) string {
	lang := h.config.I18n.DefaultLanguage
	prefix := h.config.Bot.CommandPrefix

	if !h.admins[msg.AuthorID] {
		return h.localizer.Get(lang, i18n.MsgCmdNoPermission, nil)
	}

	args := strings.Fields(strings.TrimPrefix(msg.Content, prefix))
	if len(args) == 0 {
		return ""
	}
	command := strings.ToLower(args[0])
	args = args[1:]

	h.logger.WithFields(logrus.Fields{
		"command": command,
		"user_id": msg.AuthorID,
	}).Info("Command executed")

	switch command {
	case "status", "stats":
		return h.handleStatus(ctx, lang)
	case "mod":
		return h.handleMod(lang)
	case "reset":
		return h.handleReset(lang, args)
	case "presets":
		return h.handlePresets(lang)
	case "tocar", "play":
		return h.handlePlay(ctx, lang, msg.GuildID, args)
	case "falar", "say":
		return h.handleSay(lang, msg.GuildID, args)
	case "parar", "stop":
		return h.handleStop(lang, msg.GuildID)
	case "help":
		return h.localizer.Get(lang, i18n.MsgCmdHelp, map[string]interface{}{"Prefix": prefix})
	default:
		return h.localizer.Get(lang, i18n.MsgCmdUnknown, map[string]interface{}{
			"Command": command,
			"Prefix":  prefix,
		})
	}
}

func (h *CommandHandler) handleStatus(ctx context.Context, lang string) string {
	aiState := h.localizer.Get(lang, i18n.MsgAIOff, nil)
	if h.config.AI.Enabled {
		aiState = h.localizer.Get(lang, i18n.MsgAIOn, nil)
	}

	return h.localizer.Get(lang, i18n.MsgCmdStatus, map[string]interface{}{
		"Uptime":    h.clock.Now().Sub(h.started).Round(time.Second).String(),
		"AI":        aiState,
		"History":   h.generator.HistoryLen(ctx),
		"Cooldowns": h.cooldowns.Stats().ActiveCooldowns,
	})
}

func (h *CommandHandler) handleMod(lang string) string {
	stats := h.moderation.Stats()
	return h.localizer.Get(lang, i18n.MsgCmdMod, map[string]interface{}{
		"Trackers": stats.ActiveSpamTrackers,
		"Warnings": stats.TotalWarnings,
		"Users":    stats.UsersWithWarnings,
		"Banned":   stats.BannedWordsCount,
	})
}

func (h *CommandHandler) handleReset(lang string, args []string) string {
	usage := h.localizer.Get(lang, i18n.MsgCmdResetUsage, map[string]interface{}{"Prefix": h.config.Bot.CommandPrefix})
	if len(args) < 2 {
		return usage
	}

	kind, userID := strings.ToLower(args[0]), strings.Trim(args[1], "<@!>")
	switch kind {
	case "warnings":
		h.moderation.ResetWarnings(userID)
	case "cooldown":
		h.cooldowns.Reset(userID, "")
	case "all":
		h.moderation.ResetWarnings(userID)
		h.cooldowns.Reset(userID, "")
	default:
		return usage
	}

	return h.localizer.Get(lang, i18n.MsgCmdResetDone, map[string]interface{}{
		"Kind": kind,
		"User": userID,
	})
}

func (h *CommandHandler) handlePresets(lang string) string {
	list := h.presets.List()
	if len(list) == 0 {
		return h.localizer.Get(lang, i18n.MsgPresetsEmpty, map[string]interface{}{"Dir": h.presets.Dir()})
	}

	var b strings.Builder
	b.WriteString(h.localizer.Get(lang, i18n.MsgPresetsHeader, map[string]interface{}{
		"Count": len(list),
		"Dir":   h.presets.Dir(),
	}))
	for _, p := range list {
		fmt.Fprintf(&b, "\n`%s` %s", p.ID, p.Name)
	}
	return b.String()
}

func (h *CommandHandler) handlePlay(ctx context.Context, lang, guildID string, args []string) string {
	if len(args) == 0 {
		return h.localizer.Get(lang, i18n.MsgCmdPlayUsage, map[string]interface{}{"Prefix": h.config.Bot.CommandPrefix})
	}
	queue, sink, ok := h.voice.Queue(guildID)
	if !ok {
		return h.localizer.Get(lang, i18n.MsgNotInVoice, nil)
	}

	id := strings.ToLower(args[0])
	res := queue.PlayPreset(ctx, id, sink)
	return h.playbackMessage(lang, id, res)
}

func (h *CommandHandler) handleSay(lang, guildID string, args []string) string {
	if len(args) == 0 {
		return h.localizer.Get(lang, i18n.MsgCmdSayUsage, map[string]interface{}{"Prefix": h.config.Bot.CommandPrefix})
	}
	queue, sink, ok := h.voice.Queue(guildID)
	if !ok {
		return h.localizer.Get(lang, i18n.MsgNotInVoice, nil)
	}

	text := strings.Join(args, " ")
	queue.Enqueue(audio.Request{Text: text, Sink: sink})
	return h.localizer.Get(lang, i18n.MsgCmdSpeaking, map[string]interface{}{
		"Chunks": len(audio.SplitText(text, h.config.Audio.ChunkSize)),
	})
}

func (h *CommandHandler) handleStop(lang, guildID string) string {
	queue, _, ok := h.voice.Queue(guildID)
	if !ok {
		return h.localizer.Get(lang, i18n.MsgNotInVoice, nil)
	}
	queue.Stop()
	return h.localizer.Get(lang, i18n.MsgPlaybackStopped, nil)
}

func (h *CommandHandler) playbackMessage(lang, id string, res audio.Result) string {
	switch {
	case errors.Is(res.Err, audio.ErrPresetNotFound):
		return h.localizer.Get(lang, i18n.MsgPresetNotFound, map[string]interface{}{"ID": id})
	case errors.Is(res.Err, audio.ErrPresetFileMissing):
		return h.localizer.Get(lang, i18n.MsgPresetFileMissing, map[string]interface{}{"ID": id})
	case errors.Is(res.Err, audio.ErrStopped):
		return h.localizer.Get(lang, i18n.MsgPlaybackStopped, nil)
	case res.Err != nil:
		return h.localizer.Get(lang, i18n.MsgPlaybackFailed, nil)
	case res.TimedOut:
		return h.localizer.Get(lang, i18n.MsgPlaybackTimeout, nil)
	}

	name := id
	if p, ok := h.presets.Lookup(id); ok {
		name = p.Name
	}
	return h.localizer.Get(lang, i18n.MsgPlaybackOK, map[string]interface{}{"Name": name})
}
