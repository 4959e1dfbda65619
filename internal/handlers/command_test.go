package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luisa-bot-go/internal/i18n"
	"github.com/luisa-bot-go/internal/random"
	"github.com/luisa-bot-go/internal/services/audio"
	"github.com/luisa-bot-go/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	played []string
}

func (s *recordingSink) Play(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, path)
	return nil
}

type fakeVoice struct {
	queue *audio.Queue
	sink  audio.Sink
}

func (v *fakeVoice) Queue(guildID string) (*audio.Queue, audio.Sink, bool) {
	if v.queue == nil || guildID != "g1" {
		return nil, nil, false
	}
	return v.queue, v.sink, true
}

type commandFixture struct {
	pipeline
	handler *CommandHandler
	voice   *fakeVoice
	sink    *recordingSink
	dir     string
}

func newCommandFixture(t *testing.T) commandFixture {
	t.Helper()
	p := newPipeline(random.Fixed{})
	p.config.Bot.Admins = []string{"admin"}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fala galera.mp3"), []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}
	presets, err := audio.LoadPresets(dir)
	if err != nil {
		t.Fatal(err)
	}

	localizer, err := i18n.NewLocalizer(&p.config.I18n)
	if err != nil {
		t.Fatal(err)
	}

	log := logger.Discard()
	sink := &recordingSink{}
	queue := audio.NewQueue("g1", audio.Options{ChunkSize: 190, PlaybackTimeout: time.Second}, nil, presets, audio.NewCleaner(0, log), log, nil)
	voice := &fakeVoice{queue: queue, sink: sink}

	h := NewCommandHandler(p.config, p.moderation, p.cooldowns, p.generator, presets, voice, localizer, p.clock, log)
	return commandFixture{pipeline: p, handler: h, voice: voice, sink: sink, dir: dir}
}

func (f commandFixture) run(author, content string) string {
	m := msg(author, content)
	return f.handler.HandleCommand(context.Background(), m)
}

func TestHandleCommandPermission(t *testing.T) {
	f := newCommandFixture(t)

	got := f.run("u1", "!status")
	if got != "Você não tem permissão para usar comandos administrativos." {
		t.Errorf("non-admin reply = %q", got)
	}
}

func TestHandleCommandUnknownAndHelp(t *testing.T) {
	f := newCommandFixture(t)

	if got := f.run("admin", "!dance"); !strings.Contains(got, "`dance`") || !strings.Contains(got, "!help") {
		t.Errorf("unknown reply = %q", got)
	}
	if got := f.run("admin", "!help"); !strings.Contains(got, "!reset <warnings|cooldown|all> <userId>") {
		t.Errorf("help reply = %q", got)
	}
	if got := f.run("admin", "!"); got != "" {
		t.Errorf("bare prefix reply = %q, want empty", got)
	}
}

func TestHandleCommandStatus(t *testing.T) {
	f := newCommandFixture(t)
	f.clock.Advance(90 * time.Second)

	got := f.run("admin", "!status")
	for _, want := range []string{"1m30s", "IA: desativada", "histórico: 0 turnos"} {
		if !strings.Contains(got, want) {
			t.Errorf("status %q missing %q", got, want)
		}
	}
}

func TestHandleCommandModAndReset(t *testing.T) {
	f := newCommandFixture(t)
	f.moderation.AddWarning("u9", "spam")
	f.moderation.AddWarning("u9", "flood")
	f.cooldowns.IsOnCooldown("u9", "c1", time.Minute)

	if got := f.run("admin", "!mod"); !strings.Contains(got, "advertências ativas: 2") {
		t.Errorf("mod reply = %q", got)
	}

	tests := []struct {
		name          string
		command       string
		wantWarnings  int
		wantCooldown  bool
		wantUsageHint bool
	}{
		{"missing user", "!reset warnings", 2, true, true},
		{"unknown kind", "!reset tudo u9", 2, true, true},
		{"cooldown only", "!reset cooldown u9", 2, false, false},
		{"mention syntax", "!reset all <@!u9>", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.run("admin", tt.command)
			if strings.HasPrefix(got, "Uso:") != tt.wantUsageHint {
				t.Errorf("reply = %q", got)
			}
			if w := f.moderation.Warnings("u9"); w != tt.wantWarnings {
				t.Errorf("warnings = %d, want %d", w, tt.wantWarnings)
			}
			if n := f.cooldowns.Stats().TotalCooldowns; (n == 1) != tt.wantCooldown {
				t.Errorf("cooldowns = %d, want present=%v", n, tt.wantCooldown)
			}
		})
	}
}

func TestHandleCommandPresets(t *testing.T) {
	f := newCommandFixture(t)

	got := f.run("admin", "!presets")
	if !strings.HasPrefix(got, "1 áudios carregados de") || !strings.Contains(got, "`fala_galera` Fala Galera") {
		t.Errorf("presets reply = %q", got)
	}
}

func TestHandleCommandPlay(t *testing.T) {
	f := newCommandFixture(t)

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"usage", "!tocar", "Uso: `!tocar <id>`"},
		{"unknown preset", "!tocar nada", "Áudio não encontrado: nada"},
		{"plays preset", "!tocar FALA_GALERA", "Tocando: Fala Galera"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.run("admin", tt.command); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.played) != 1 || filepath.Base(f.sink.played[0]) != "fala galera.mp3" {
		t.Errorf("played = %v", f.sink.played)
	}
}

func TestHandleCommandWithoutVoice(t *testing.T) {
	f := newCommandFixture(t)
	f.voice.queue = nil

	for _, command := range []string{"!tocar fala_galera", "!falar oi", "!parar"} {
		if got := f.run("admin", command); got != "Não está em nenhum canal de voz" {
			t.Errorf("%s reply = %q", command, got)
		}
	}
}

func TestHandleCommandSayAndStop(t *testing.T) {
	f := newCommandFixture(t)

	if got := f.run("admin", "!falar"); got != "Uso: `!falar <texto>`" {
		t.Errorf("usage reply = %q", got)
	}
	if got := f.run("admin", "!falar oi gente. tudo bem?"); got != "Falando (1 partes)" {
		t.Errorf("say reply = %q", got)
	}
	if got := f.run("admin", "!parar"); got != "Reprodução interrompida" {
		t.Errorf("stop reply = %q", got)
	}
}
