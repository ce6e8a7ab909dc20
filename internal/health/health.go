// Package health tracks process state used by the /health endpoint and rate-limit gauges:
// the shutdown flag and a sliding window of request outcomes.
package health

import (
	"sync"
	"sync/atomic"
	"time"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true while the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Outcome classifies a finished request.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeDenied
)

// retention bounds how long outcomes are kept; windows longer than this undercount.
const retention = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a successful resolution.
func RecordSuccess() { defaultTracker.Record(OutcomeSuccess) }

// RecordError records a failed resolution (upstream error, timeout, store failure).
func RecordError() { defaultTracker.Record(OutcomeError) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.Record(OutcomeDenied) }

// RequestCount returns all outcomes within window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns denials within window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errors, successes+errors) within window.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears the default tracker. For tests only.
func Reset() { defaultTracker.Reset() }

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker keeps timestamped outcomes in arrival order.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Record appends an outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.events = append(t.events, event{at: now, outcome: o})
	t.pruneLocked(now)
}

// RequestCount returns the number of outcomes of any kind within window.
func (t *Tracker) RequestCount(window time.Duration) int {
	counts := t.count(window)
	return counts[OutcomeSuccess] + counts[OutcomeError] + counts[OutcomeDenied]
}

// DenialCount returns the number of denials within window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.count(window)[OutcomeDenied]
}

// ErrorRate returns (errors, total) within window; denials are excluded from total.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	counts := t.count(window)
	return counts[OutcomeError], counts[OutcomeError] + counts[OutcomeSuccess]
}

// Reset clears all outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) count(window time.Duration) [3]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var counts [3]int
	cutoff := t.clock().Add(-window)
	for i := len(t.events) - 1; i >= 0 && !t.events[i].at.Before(cutoff); i-- {
		counts[t.events[i].outcome]++
	}
	return counts
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
