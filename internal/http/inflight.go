package http

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kjstillabower/climate-api/internal/observability"
)

const defaultDrainPoll = 100 * time.Millisecond

// InFlight counts data and health requests still holding a handler goroutine.
// Shutdown drains it before closing the store so no session outlives the pool.
type InFlight struct {
	n atomic.Int64
}

// Begin marks one request as started and returns the func that ends it.
// The Prometheus gauge moves with the count.
func (f *InFlight) Begin() (end func()) {
	f.n.Add(1)
	observability.HTTPRequestsInFlight.Inc()
	var once atomic.Bool
	return func() {
		if once.Swap(true) {
			return
		}
		observability.HTTPRequestsInFlight.Dec()
		f.n.Add(-1)
	}
}

func (f *InFlight) Count() int64 {
	return f.n.Load()
}

// Drain returns nil once no request is in flight, or ctx.Err() if ctx ends first.
func (f *InFlight) Drain(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = defaultDrainPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for f.Count() != 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

var serving InFlight

// InFlightCount reports requests the router is serving right now.
func InFlightCount() int64 {
	return serving.Count()
}

// WaitForInFlight drains the router's requests; main calls it after srv.Shutdown.
func WaitForInFlight(ctx context.Context, poll time.Duration) error {
	return serving.Drain(ctx, poll)
}
