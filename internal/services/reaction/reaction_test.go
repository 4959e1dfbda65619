package reaction

import (
	"testing"

	"github.com/luisa-bot-go/internal/random"
)

func TestPick(t *testing.T) {
	p := New(1, random.Fixed{N: 0})

	tests := []struct {
		content string
		want    string
	}{
		{"TE AMO", "❤️"},
		{"kkkkkk", "😂"},
		{"bora pedir pizza", "🍕"},
		{"bora jogar", "🎮"},
		{"que dia triste", "😢"},
		{"odeio segunda", "😡"},
		{"nossa", "😱"},
		{"concordo", "👍"},
		{"nunca", "❌"},
		{"xyz", "👀"},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			if got := p.Pick(tt.content); got != tt.want {
				t.Errorf("Pick(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestMaybe(t *testing.T) {
	if _, ok := New(0.3, random.Fixed{F: 0.5}).Maybe("kkk"); ok {
		t.Fatal("draw above chance should not react")
	}
	emoji, ok := New(0.3, random.Fixed{F: 0.1, N: 1}).Maybe("kkk")
	if !ok || emoji != "🤣" {
		t.Fatalf("Maybe = %q, %v", emoji, ok)
	}
}
