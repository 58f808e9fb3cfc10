package degraded

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// probeTimeout bounds each recovery probe.
const probeTimeout = 10 * time.Second

var (
	recoveryChan   chan struct{}
	recoveryChanMu sync.Mutex
)

// ProbeFunc checks whether the store is answering again. Returns nil when recovered.
type ProbeFunc func(ctx context.Context) error

// NotifyDegraded wakes the recovery listener if one is running. Non-blocking; safe from handlers.
func NotifyDegraded() {
	recoveryChanMu.Lock()
	ch := recoveryChan
	recoveryChanMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// StartRecoveryListener starts a goroutine that runs RunRecovery each time NotifyDegraded fires,
// at most one run at a time. It stops when ctx is done.
func StartRecoveryListener(ctx context.Context, probe ProbeFunc, initial, max time.Duration, onAttempt func(error), onExhausted func()) {
	ch := make(chan struct{}, 1)
	recoveryChanMu.Lock()
	recoveryChan = ch
	recoveryChanMu.Unlock()

	var running atomic.Bool
	go func() {
		defer func() {
			recoveryChanMu.Lock()
			if recoveryChan == ch {
				recoveryChan = nil
			}
			recoveryChanMu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				if running.Swap(true) {
					continue
				}
				go func() {
					defer running.Store(false)
					RunRecovery(ctx, probe, initial, max, onAttempt, onExhausted)
				}()
			}
		}
	}()
}

// RunRecovery probes the store on a Fibonacci schedule (initial x 1, 2, 3, 5, 8, ... up to max).
// The first successful probe clears the recorded outcomes so the error rate starts fresh.
// If the final probe still fails, onExhausted is called. onAttempt, when set, sees every probe result.
func RunRecovery(ctx context.Context, probe ProbeFunc, initial, max time.Duration, onAttempt func(error), onExhausted func()) {
	delays := fibDelays(initial, max)
	for i, d := range delays {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(attemptCtx)
		cancel()
		if onAttempt != nil {
			onAttempt(err)
		}
		if err == nil {
			Reset()
			return
		}
		if i == len(delays)-1 && onExhausted != nil {
			onExhausted()
		}
	}
}

// fibDelays returns initial scaled by the Fibonacci sequence 1, 2, 3, 5, 8, ... while <= max.
func fibDelays(initial, max time.Duration) []time.Duration {
	if initial <= 0 || max < initial {
		return nil
	}
	var out []time.Duration
	for a, b := int64(1), int64(2); ; a, b = b, a+b {
		d := time.Duration(a) * initial
		if d > max {
			break
		}
		out = append(out, d)
	}
	return out
}
