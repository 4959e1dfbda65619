package random

import (
	"testing"
	"time"
)

func TestSeededSourceIsDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("same seed should produce the same sequence")
		}
	}
}

func TestChoice(t *testing.T) {
	if got := Choice(Fixed{N: 1}, []string{"a", "b", "c"}); got != "b" {
		t.Errorf("Choice = %q, want b", got)
	}
	if got := Choice(Fixed{N: 9}, []string{"a", "b"}); got != "b" {
		t.Errorf("Choice clamps to the last element, got %q", got)
	}
	if got := Choice[string](Fixed{}, nil); got != "" {
		t.Errorf("Choice of empty = %q", got)
	}
}

func TestBetween(t *testing.T) {
	src := New(7)
	for i := 0; i < 100; i++ {
		d := Between(src, time.Second, 3*time.Second)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("Between out of range: %v", d)
		}
	}
	if d := Between(src, 2*time.Second, time.Second); d != 2*time.Second {
		t.Errorf("inverted range should return min, got %v", d)
	}
}
