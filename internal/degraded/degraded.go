// Package degraded classifies the service as degraded when store queries fail
// too often, and probes the store in the background until it recovers.
package degraded

import (
	"time"

	"github.com/kjstillabower/climate-api/internal/traffic"
)

// RecordSuccess records a request whose store query succeeded.
func RecordSuccess() {
	traffic.RecordSuccess()
}

// RecordError records a request whose store query failed and wakes the recovery listener.
func RecordError() {
	traffic.RecordError()
	NotifyDegraded()
}

// ErrorRate returns (errorCount, totalCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return traffic.ErrorRate(window)
}

// Breached reports whether the error percentage within window is at or above pct.
// An empty window never breaches.
func Breached(window time.Duration, pct int) bool {
	if window <= 0 || pct <= 0 {
		return false
	}
	errors, total := ErrorRate(window)
	if total == 0 {
		return false
	}
	return float64(errors)*100/float64(total) >= float64(pct)
}

// Reset clears all recorded outcomes.
func Reset() {
	traffic.Reset()
}
