package moderation

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/luisa-bot-go/internal/config"
	"github.com/luisa-bot-go/internal/models"
	"github.com/sirupsen/logrus"
)

func newTestFilter(banned ...string) (*Filter, *clock.Fake) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default().Moderation
	cfg.BannedWords = banned
	clk := clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(OptionsFromConfig(&cfg), clk, logger), clk
}

func msg(user, content string) models.Message {
	return models.Message{AuthorID: user, ChannelID: "c1", Content: content}
}

func TestShouldIgnoreChecks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"clean", "bora jogar hoje?", ""},
		{"banned word", "voce e um BOBO mesmo", models.ReasonBannedWord},
		{"banned word inside another word", "bobolandia", models.ReasonBannedWord},
		{"flood", strings.Repeat("a", 25), models.ReasonFlood},
		{"short repeated text is not flood", strings.Repeat("k", 20), ""},
		{"invite link", "entra ai discord.gg/abc123", models.ReasonSuspiciousLink},
		{"allowed invite", "servidor oficial discord.gg/official", ""},
		{"shortener", "olha isso bit.ly/xyz", models.ReasonSuspiciousLink},
		{"nitro scam", "FREE discord NITRO aqui", models.ReasonSuspiciousLink},
		{"giveaway", "give away de skins", models.ReasonSuspiciousLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFilter("bobo")
			v := f.ShouldIgnore(msg("u1", tt.content))
			if v.Ignore != (tt.reason != "") || v.Reason != tt.reason {
				t.Fatalf("verdict = %+v, want reason %q", v, tt.reason)
			}
			wantWarnings := 0
			if tt.reason != "" {
				wantWarnings = 1
			}
			if got := f.Warnings("u1"); got != wantWarnings {
				t.Errorf("warnings = %d, want %d", got, wantWarnings)
			}
		})
	}
}

func TestPriorityReportsOneReason(t *testing.T) {
	f, _ := newTestFilter("bobo")

	// banned word, flood and link at once
	content := "bobo " + strings.Repeat("o", 30) + " discord.gg/x"
	v := f.ShouldIgnore(msg("u1", content))
	if v.Reason != models.ReasonBannedWord {
		t.Fatalf("reason = %q, want banned_word", v.Reason)
	}
	if got := f.Warnings("u1"); got != 1 {
		t.Fatalf("a single message must record one warning, got %d", got)
	}
}

func TestSpamBurst(t *testing.T) {
	f, clk := newTestFilter()

	for i := 0; i < 5; i++ {
		if v := f.ShouldIgnore(msg("u1", "oi")); v.Ignore {
			t.Fatalf("message %d ignored: %+v", i+1, v)
		}
		clk.Advance(500 * time.Millisecond)
	}

	v := f.ShouldIgnore(msg("u1", "oi"))
	if !v.Ignore || v.Reason != models.ReasonSpam {
		t.Fatalf("6th message verdict = %+v, want spam", v)
	}
	if got := f.Warnings("u1"); got != 1 {
		t.Fatalf("warnings = %d, want exactly 1", got)
	}

	f.ShouldIgnore(msg("u1", "oi"))
	if got := f.Warnings("u1"); got != 2 {
		t.Fatalf("each spam message records one warning, got %d", got)
	}

	if v := f.ShouldIgnore(msg("u2", "oi")); v.Ignore {
		t.Fatal("other users are not affected by the burst")
	}
}

func TestWarningAccumulation(t *testing.T) {
	f, clk := newTestFilter("bobo")

	offences := []string{
		"seu bobo",
		strings.Repeat("z", 30),
		"discord.gg/convite",
	}
	for _, content := range offences {
		if v := f.ShouldIgnore(msg("u1", content)); !v.Ignore {
			t.Fatalf("offence %q not ignored", content)
		}
		clk.Advance(3 * time.Second)
	}

	v := f.ShouldIgnore(msg("u1", "oi tudo bem"))
	if !v.Ignore || v.Reason != models.ReasonTooManyWarns {
		t.Fatalf("clean message after 3 warnings: %+v", v)
	}
	if got := f.Warnings("u1"); got != 3 {
		t.Fatalf("accumulated gate must not add warnings, got %d", got)
	}

	clk.Advance(time.Hour)
	if v := f.ShouldIgnore(msg("u1", "oi tudo bem")); v.Ignore {
		t.Fatalf("warnings should age out after an hour: %+v", v)
	}
}

func TestResetWarnings(t *testing.T) {
	f, _ := newTestFilter()

	for i := 0; i < 3; i++ {
		f.AddWarning("u1", "manual")
	}
	for i := 0; i < 5; i++ {
		f.ShouldIgnore(msg("u1", "oi"))
	}

	f.ResetWarnings("u1")
	if got := f.Warnings("u1"); got != 0 {
		t.Fatalf("warnings after reset = %d", got)
	}
	if v := f.ShouldIgnore(msg("u1", "oi")); v.Ignore {
		t.Fatalf("reset should also clear the spam window: %+v", v)
	}
}

func TestSweep(t *testing.T) {
	f, clk := newTestFilter()

	f.AddWarning("old", models.ReasonFlood)
	f.ShouldIgnore(msg("old", "oi"))
	clk.Advance(40 * time.Minute)
	f.AddWarning("recent", models.ReasonFlood)
	clk.Advance(30 * time.Minute)

	f.Sweep()

	stats := f.Stats()
	if stats.UsersWithWarnings != 1 || stats.TotalWarnings != 1 {
		t.Fatalf("stats after sweep = %+v", stats)
	}
	if stats.ActiveSpamTrackers != 0 {
		t.Fatalf("spam trackers after sweep = %d, want 0", stats.ActiveSpamTrackers)
	}
}
