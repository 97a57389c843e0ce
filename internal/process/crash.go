package process

import (
	"sync"
	"time"
)

// CrashEvent is an immutable record of one unexpected child
// termination. Appended on every crash, never mutated.
type CrashEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	ExitCode       int       `json:"exit_code"`
	Uptime         float64   `json:"uptime_before_crash"` // seconds
	RestartAttempt int       `json:"restart_attempt"`
	PID            int       `json:"pid"`
	StderrTail     []string  `json:"stderr_tail"`
}

// tailBuffer holds the last N lines of the child's stderr so a crash
// report can show what the process printed on its way down.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	if max < 1 {
		max = 1
	}
	return &tailBuffer{max: max, lines: make([]string, 0, max)}
}

func (b *tailBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == b.max {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:b.max-1]
	}
	b.lines = append(b.lines, line)
}

// snapshot returns a copy of the buffered lines, oldest first.
func (b *tailBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// clear empties the buffer. Called on each respawn so a crash only
// carries output from its own run.
func (b *tailBuffer) clear() {
	b.mu.Lock()
	b.lines = b.lines[:0]
	b.mu.Unlock()
}
