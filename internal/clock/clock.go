// Package clock schedules the delayed callbacks the game engine uses for
// transient feedback and the reveal-to-summary transition.
//
// Two implementations:
//   - Real():    backed by time.AfterFunc, used by the server.
//   - Manual:    advanced explicitly, used by tests to fire timers deterministically.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It reports false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

// Real returns a Scheduler backed by the runtime timer wheel.
func Real() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a Scheduler whose notion of time only moves when Advance is
// called. Callbacks run synchronously on the goroutine calling Advance,
// ordered by due time and then by scheduling order.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	due     time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewManual returns a Manual scheduler at time zero.
func NewManual() *Manual { return &Manual{} }

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, due: m.now + d, seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward by d and fires every timer that came due.
// Timers scheduled by fired callbacks are honoured if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		next.fired = true
		m.mu.Unlock()

		next.f()
	}
}

// Pending reports how many timers are scheduled and neither fired nor stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due != m.timers[j].due {
			return m.timers[i].due < m.timers[j].due
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].due > target {
		return nil
	}
	return m.timers[0]
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
