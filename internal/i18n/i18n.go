package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/luisa-bot-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer from the embedded message files
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	defaultTag, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", cfg.DefaultLanguage, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang, cfg.DefaultLanguage)
	}
	if _, ok := localizers[cfg.DefaultLanguage]; !ok {
		localizers[cfg.DefaultLanguage] = i18n.NewLocalizer(bundle, cfg.DefaultLanguage)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	// a default-language fallback comes back with both a message and an error
	if err != nil && msg == "" {
		return messageID // Fallback to message ID
	}

	return msg
}

// Message IDs
const (
	MsgBotStarted        = "bot_started"
	MsgPresetNotFound    = "preset_not_found"
	MsgPresetFileMissing = "preset_file_missing"
	MsgPlaybackOK        = "playback_ok"
	MsgPlaybackTimeout   = "playback_timeout"
	MsgPlaybackStopped   = "playback_stopped"
	MsgPlaybackFailed    = "playback_failed"
	MsgNotInVoice        = "not_in_voice"
	MsgPresetsHeader     = "presets_header"
	MsgPresetsEmpty      = "presets_empty"

	MsgCmdNoPermission = "cmd_no_permission"
	MsgCmdUnknown      = "cmd_unknown"
	MsgCmdHelp         = "cmd_help"
	MsgCmdStatus       = "cmd_status"
	MsgCmdMod          = "cmd_mod"
	MsgCmdResetUsage   = "cmd_reset_usage"
	MsgCmdResetDone    = "cmd_reset_done"
	MsgCmdSayUsage     = "cmd_say_usage"
	MsgCmdPlayUsage    = "cmd_play_usage"
	MsgCmdSpeaking     = "cmd_speaking"
	MsgAIOn            = "ai_on"
	MsgAIOff           = "ai_off"
)
