package audio

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cleaner deletes temporary artifacts a while after playback so a player
// still reading the file is not cut short.
type Cleaner struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*time.Timer
	logger  *logrus.Logger
}

func NewCleaner(delay time.Duration, logger *logrus.Logger) *Cleaner {
	return &Cleaner{
		delay:   delay,
		pending: make(map[string]*time.Timer),
		logger:  logger,
	}
}

// Schedule deletes path after the cleanup delay.
func (c *Cleaner) Schedule(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[path]; ok {
		return
	}
	c.pending[path] = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		delete(c.pending, path)
		c.mu.Unlock()
		c.remove(path)
	})
}

// Flush deletes every scheduled file now.
func (c *Cleaner) Flush() {
	c.mu.Lock()
	paths := make([]string, 0, len(c.pending))
	for path, timer := range c.pending {
		if timer.Stop() {
			paths = append(paths, path)
		}
		delete(c.pending, path)
	}
	c.mu.Unlock()

	for _, path := range paths {
		c.remove(path)
	}
}

// Pending returns how many deletions are scheduled.
func (c *Cleaner) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Cleaner) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.WithError(err).WithField("path", path).Warn("Failed to delete audio artifact")
	}
}
