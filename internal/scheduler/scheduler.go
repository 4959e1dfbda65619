// Package scheduler runs the periodic maintenance jobs (tracker sweeps, history
// purges) registered by the services. Production drives the jobs from cron;
// tests call Tick or RunAll directly.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/luisa-bot-go/internal/clock"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type job struct {
	name    string
	every   time.Duration
	fn      func()
	lastRun time.Time
}

// Scheduler holds the registered maintenance jobs.
type Scheduler struct {
	mu     sync.Mutex
	clock  clock.Clock
	jobs   []*job
	cron   *cron.Cron
	logger *logrus.Logger
}

// New creates a scheduler using clk to decide when jobs are due.
func New(clk clock.Clock, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		clock:  clk,
		logger: logger,
	}
}

// Register adds a job that should run every interval. The first run is due
// one interval after registration.
func (s *Scheduler) Register(name string, every time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, &job{
		name:    name,
		every:   every,
		fn:      fn,
		lastRun: s.clock.Now(),
	})
}

// Jobs returns the names of the registered jobs in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

// Tick runs, synchronously and in registration order, every job whose
// interval has elapsed. It returns the number of jobs executed.
func (s *Scheduler) Tick() int {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if now.Sub(j.lastRun) >= j.every {
			j.lastRun = now
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.execute(j)
	}
	return len(due)
}

// RunAll runs every registered job immediately.
func (s *Scheduler) RunAll() {
	now := s.clock.Now()

	s.mu.Lock()
	all := make([]*job, len(s.jobs))
	copy(all, s.jobs)
	for _, j := range all {
		j.lastRun = now
	}
	s.mu.Unlock()

	for _, j := range all {
		s.execute(j)
	}
}

// Start schedules every registered job on a cron runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(s.logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(s.logger)),
	))

	for _, j := range s.jobs {
		spec := "@every " + j.every.String()
		if _, err := c.AddFunc(spec, func() {
			s.mu.Lock()
			j.lastRun = s.clock.Now()
			s.mu.Unlock()
			s.execute(j)
		}); err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", j.name, err)
		}
		s.logger.WithFields(logrus.Fields{
			"job":   j.name,
			"every": j.every,
		}).Info("Scheduled maintenance job")
	}

	c.Start()
	s.cron = c
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) execute(j *job) {
	start := time.Now()
	j.fn()
	s.logger.WithFields(logrus.Fields{
		"job":      j.name,
		"duration": time.Since(start),
	}).Debug("Maintenance job finished")
}
