package ratelimit

import (
	"sync"
	"time"
)

const (
	maxInterval = 5 * time.Second
	minInterval = 100 * time.Millisecond
)

// Limiter paces remote calls of one operation class. All workers of
// the class share one instance; Acquire is the only synchronization
// point and guarantees a minimum spacing between any two returns,
// regardless of which goroutine called.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// New creates a limiter with the given minimum interval between calls.
func New(interval time.Duration) *Limiter {
	if interval < 0 {
		interval = 0
	}
	return &Limiter{interval: interval}
}

// Acquire blocks until the next slot is available, then claims it.
func (l *Limiter) Acquire() {
	for {
		l.mu.Lock()
		if l.interval <= 0 {
			l.mu.Unlock()
			return
		}
		now := time.Now()
		if !now.Before(l.next) {
			l.next = now.Add(l.interval)
			l.mu.Unlock()
			return
		}
		wait := l.next.Sub(now)
		l.mu.Unlock()
		time.Sleep(wait)
	}
}

// SlowDown multiplies the interval, capped at 5s. Called when the
// remote service signals internal distress.
func (l *Limiter) SlowDown(factor float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = time.Duration(float64(l.interval) * factor)
	if l.interval > maxInterval {
		l.interval = maxInterval
	}
}

// SpeedUp divides the pacing back down, floored at 100ms.
func (l *Limiter) SpeedUp(factor float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = time.Duration(float64(l.interval) * factor)
	if l.interval < minInterval {
		l.interval = minInterval
	}
}

// Interval reports the current minimum spacing.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
