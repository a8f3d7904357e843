package timer

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler for tests. Callbacks only run from Advance,
// on the caller's goroutine, in due-time order (ties in scheduling order).
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	m       *Manual
	due     time.Duration
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

var _ Scheduler = &Manual{}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Task {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, due: m.now + d, seq: m.seq, f: f}
	m.tasks = append(m.tasks, t)
	return t
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Elapsed returns the total time advanced so far.
func (m *Manual) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of tasks that are scheduled and not yet fired or stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and runs every task that becomes due,
// including tasks scheduled by callbacks while advancing.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.compactLocked()
			m.mu.Unlock()
			return
		}
		if next.due > m.now {
			m.now = next.due
		}
		next.fired = true
		f := next.f
		m.mu.Unlock()

		f()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTask {
	var candidates []*manualTask
	for _, t := range m.tasks {
		if !t.stopped && !t.fired && t.due <= target {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].due == candidates[j].due {
			return candidates[i].seq < candidates[j].seq
		}
		return candidates[i].due < candidates[j].due
	})
	return candidates[0]
}

func (m *Manual) compactLocked() {
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.stopped && !t.fired {
			kept = append(kept, t)
		}
	}
	m.tasks = kept
}
