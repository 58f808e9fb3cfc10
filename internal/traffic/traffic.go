// Package traffic keeps a sliding window of API request outcomes. It is the
// single source for idle detection (request volume) and degraded detection
// (store error rate).
package traffic

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// maxAge bounds how long outcomes are retained; windows longer than this see at most maxAge of history.
const maxAge = 30 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a request whose store query succeeded.
func RecordSuccess() {
	defaultTracker.Record(false)
}

// RecordError records a request whose store query failed.
func RecordError() {
	defaultTracker.Record(true)
}

// RequestCount returns the number of outcomes within the window.
func RequestCount(window time.Duration) int {
	n, _ := defaultTracker.Counts(window)
	return n
}

// ErrorRate returns (errorCount, totalCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	total, errors = defaultTracker.Counts(window)
	return errors, total
}

// Reset clears all recorded outcomes. For tests and store recovery.
func Reset() {
	defaultTracker.Reset()
}

type outcome struct {
	at     time.Time
	failed bool
}

// Tracker holds outcomes in arrival order. The zero value is ready to use.
type Tracker struct {
	mu       sync.Mutex
	outcomes *deque.Deque[outcome]
	now      func() time.Time
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Record appends one outcome at the current time.
func (t *Tracker) Record(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcomes == nil {
		t.outcomes = deque.New[outcome](0, 64)
	}
	now := t.clock()
	t.outcomes.PushBack(outcome{at: now, failed: failed})
	t.pruneLocked(now)
}

// Counts returns the total and failed outcomes not older than window.
func (t *Tracker) Counts(window time.Duration) (total, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcomes == nil {
		return 0, 0
	}
	now := t.clock()
	t.pruneLocked(now)
	cutoff := now.Add(-window)
	// newest first; stop at the first outcome outside the window
	for i := t.outcomes.Len() - 1; i >= 0; i-- {
		o := t.outcomes.At(i)
		if o.at.Before(cutoff) {
			break
		}
		total++
		if o.failed {
			failed++
		}
	}
	return total, failed
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcomes != nil {
		t.outcomes.Clear()
	}
}

// pruneLocked drops outcomes older than maxAge from the front.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	for t.outcomes.Len() > 0 && t.outcomes.Front().at.Before(cutoff) {
		t.outcomes.PopFront()
	}
}
