// Package random provides the injectable random source used by every
// probabilistic policy.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the subset of *rand.Rand the policies draw from.
type Source interface {
	Float64() float64
	Intn(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a goroutine-safe source seeded with seed.
func New(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSeeded returns a goroutine-safe source seeded from the wall clock.
func NewTimeSeeded() Source {
	return New(time.Now().UnixNano())
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// Choice returns a uniformly drawn element of items, or the zero value when
// items is empty.
func Choice[T any](src Source, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[src.Intn(len(items))]
}

// Between returns a duration drawn uniformly from [min, max].
func Between(src Source, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(src.Intn(int(max-min)+1))
}

// Fixed is a scripted source for tests: Float64 returns F and Intn returns
// N clamped into range.
type Fixed struct {
	F float64
	N int
}

func (f Fixed) Float64() float64 { return f.F }

func (f Fixed) Intn(n int) int {
	if f.N >= n {
		return n - 1
	}
	if f.N < 0 {
		return 0
	}
	return f.N
}
