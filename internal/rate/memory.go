package rate

import (
	"sync"
	"time"

	"github.com/MrEthical07/authguard/internal/clock"
)

// DefaultSweepInterval bounds how often Memory scans for elapsed windows.
const DefaultSweepInterval = 60 * time.Second

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// Memory is the in-process fixed-window backend. Instances are isolated; the
// zero value is not usable, construct with NewMemory.
type Memory struct {
	mu            sync.Mutex
	entries       map[string]*memoryEntry
	clock         clock.Clock
	sweepInterval time.Duration
	lastSweep     time.Time
}

// NewMemory returns an empty in-memory backend. A non-positive sweepInterval
// selects DefaultSweepInterval.
func NewMemory(c clock.Clock, sweepInterval time.Duration) *Memory {
	if c == nil {
		c = clock.System{}
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Memory{
		entries:       make(map[string]*memoryEntry),
		clock:         c,
		sweepInterval: sweepInterval,
		lastSweep:     c.Now(),
	}
}

// Check records one hit for key and reports whether it fits in the window.
func (m *Memory) Check(key string, limit int, window time.Duration) Result {
	now := m.clock.Now()
	if limit <= 0 || window <= 0 {
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(max(window, 0)), Backend: BackendMemory}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeSweepLocked(now)

	entry, ok := m.entries[key]
	if !ok || !entry.resetAt.After(now) {
		resetAt := now.Add(window)
		m.entries[key] = &memoryEntry{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: resetAt, Backend: BackendMemory}
	}

	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt, Backend: BackendMemory}
	}

	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, ResetAt: entry.resetAt, Backend: BackendMemory}
}

// Len reports the number of tracked keys, including ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes every entry whose window has elapsed and returns how many
// were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.clock.Now())
}

func (m *Memory) maybeSweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < m.sweepInterval {
		return
	}
	m.sweepLocked(now)
}

func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range m.entries {
		if !entry.resetAt.After(now) {
			delete(m.entries, key)
			removed++
		}
	}
	m.lastSweep = now
	return removed
}
