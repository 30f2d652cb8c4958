// Package ratelimit serializes outbound calls per domain. A Limiter runs at most one task
// at a time, starts tasks in arrival order, and keeps at least the configured interval
// between the start of consecutive tasks. The bot keeps one instance for upstream HTTP
// APIs and a separate one for outbound chat messages.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// State is a point-in-time snapshot of a limiter.
type State struct {
	Name         string
	Interval     time.Duration
	LastDispatch time.Time
	QueueDepth   int
}

// Limiter gates tasks behind a single slot and a minimum start-to-start interval.
type Limiter struct {
	name  string
	pacer *rate.Limiter
	// slot has capacity 1; goroutines blocked on send are admitted in FIFO order.
	slot  chan struct{}

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	depth    int
}

// New returns a limiter with the given name (used as a metrics label) and interval.
// A zero interval only enforces the concurrency limit.
func New(name string, interval time.Duration) *Limiter {
	return &Limiter{
		name:     name,
		pacer:    rate.NewLimiter(rate.Every(interval), 1),
		slot:     make(chan struct{}, 1),
		interval: interval,
	}
}

// Name returns the limiter name.
func (l *Limiter) Name() string { return l.name }

// Stats returns the current limiter state.
func (l *Limiter) Stats() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Name:         l.name,
		Interval:     l.interval,
		LastDispatch: l.last,
		QueueDepth:   l.depth,
	}
}

// Do waits for the slot and the pacing interval, then runs task. The task's error is
// returned as is. If ctx ends before the task starts, Do returns ctx.Err() and the task
// never runs. A nil limiter runs the task immediately.
func (l *Limiter) Do(ctx context.Context, task func(context.Context) error) error {
	if l == nil {
		return task(ctx)
	}
	l.track(1)
	defer l.track(-1)

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slot }()

	if err := l.pace(ctx); err != nil {
		return err
	}
	return task(ctx)
}

// track adjusts the queue depth and publishes it under the same lock, so the gauge
// always ends on the latest value.
func (l *Limiter) track(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.depth += delta
	telemetry.SetQueueDepth(l.name, l.depth)
}

// pace blocks until the next dispatch is allowed. Only the slot holder calls it.
func (l *Limiter) pace(ctx context.Context) error {
	if err := l.pacer.Wait(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	interval, last := l.interval, l.last
	l.mu.Unlock()

	// The token bucket works in float seconds; top up on the monotonic clock so the
	// start-to-start gap never rounds below interval.
	if !last.IsZero() {
		if remaining := interval - time.Since(last); remaining > 0 {
			t := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	l.mu.Lock()
	l.last = time.Now()
	l.mu.Unlock()
	return nil
}

// Schedule runs task through l and returns its result.
func Schedule[T any](ctx context.Context, l *Limiter, task func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = task(ctx)
		return err
	})
	return out, err
}
