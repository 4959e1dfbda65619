package i18n

import (
	"testing"

	"github.com/luisa-bot-go/internal/config"
)

func newTestLocalizer(t *testing.T) *Localizer {
	t.Helper()
	l, err := NewLocalizer(&config.I18nConfig{
		DefaultLanguage: "pt-BR",
		Languages:       []string{"pt-BR", "en"},
	})
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}
	return l
}

func TestGet(t *testing.T) {
	l := newTestLocalizer(t)

	tests := []struct {
		name string
		lang string
		id   string
		data map[string]interface{}
		want string
	}{
		{"portuguese", "pt-BR", MsgPlaybackOK, map[string]interface{}{"Name": "Fala Galera"}, "Tocando: Fala Galera"},
		{"english", "en", MsgPlaybackOK, map[string]interface{}{"Name": "Fala Galera"}, "Playing: Fala Galera"},
		{"unknown language uses default", "fr", MsgPlaybackStopped, nil, "Reprodução interrompida"},
		{"missing translation falls back to default language", "en", MsgPresetsEmpty, map[string]interface{}{"Dir": "audios"}, "Nenhum áudio encontrado. Adicione arquivos .mp3, .wav ou .ogg em audios"},
		{"unknown id", "en", "does_not_exist", nil, "does_not_exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.Get(tt.lang, tt.id, tt.data); got != tt.want {
				t.Errorf("Get(%q, %q) = %q, want %q", tt.lang, tt.id, got, tt.want)
			}
		})
	}
}

func TestNewLocalizerUnknownLanguageFile(t *testing.T) {
	_, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "pt-BR", Languages: []string{"de"}})
	if err == nil {
		t.Fatal("expected error for a language without a message file")
	}
}
