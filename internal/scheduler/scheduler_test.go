package scheduler

import (
	"io"
	"testing"
	"time"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestTickRunsOnlyDueJobs(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := New(clk, testLogger())

	var fast, slow int
	s.Register("fast", time.Minute, func() { fast++ })
	s.Register("slow", 5*time.Minute, func() { slow++ })

	if n := s.Tick(); n != 0 {
		t.Fatalf("expected no job due at registration time, ran %d", n)
	}

	clk.Advance(time.Minute)
	if n := s.Tick(); n != 1 {
		t.Fatalf("expected 1 job after one minute, ran %d", n)
	}
	if fast != 1 || slow != 0 {
		t.Fatalf("unexpected counts fast=%d slow=%d", fast, slow)
	}

	clk.Advance(4 * time.Minute)
	s.Tick()
	if fast != 2 || slow != 1 {
		t.Fatalf("unexpected counts fast=%d slow=%d", fast, slow)
	}
}

func TestTickPreservesRegistrationOrder(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	s := New(clk, testLogger())

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.Register(name, time.Second, func() { order = append(order, name) })
	}

	clk.Advance(time.Second)
	s.Tick()

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("unexpected order %v", order)
	}
	if got := s.Jobs(); len(got) != 3 || got[2] != "c" {
		t.Fatalf("unexpected job names %v", got)
	}
}

func TestRunAllResetsIntervals(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	s := New(clk, testLogger())

	runs := 0
	s.Register("sweep", time.Minute, func() { runs++ })

	s.RunAll()
	if runs != 1 {
		t.Fatalf("expected RunAll to run the job, runs=%d", runs)
	}

	clk.Advance(30 * time.Second)
	s.Tick()
	if runs != 1 {
		t.Fatalf("job should not be due 30s after RunAll, runs=%d", runs)
	}
}

func TestStartStop(t *testing.T) {
	s := New(clock.Real(), testLogger())
	s.Register("noop", time.Hour, func() {})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("expected second Start to fail")
	}
	s.Stop()
	s.Stop()
}
