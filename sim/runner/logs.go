package runner

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// maxLogLines bounds the lines kept per run; older lines are dropped first.
const maxLogLines = 500

// logCapture is a logrus hook that keeps the most recent log lines of one run.
type logCapture struct {
	mu      sync.Mutex
	lines   []string
	dropped int
}

func (c *logCapture) Levels() []logrus.Level { return logrus.AllLevels }

func (c *logCapture) Fire(e *logrus.Entry) error {
	line := fmt.Sprintf("%s %-5s %s", e.Time.UTC().Format("15:04:05.000"), e.Level, e.Message)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == maxLogLines {
		copy(c.lines, c.lines[1:])
		c.lines = c.lines[:maxLogLines-1]
		c.dropped++
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *logCapture) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out, c.dropped
}
