// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces out mutating collaborator calls to respect platform rate
// limits. The orchestrator calls Pace after every write; implementations
// block until the next call is allowed. Pacing must never reorder calls:
// the orchestrator only issues the next write after Pace returns.
type Pacer interface {
	Pace(ctx context.Context)
}

// fixedDelayPacer sleeps a constant duration after every write.
type fixedDelayPacer struct {
	delay time.Duration
}

// FixedDelay returns a Pacer that waits delay between consecutive writes.
func FixedDelay(delay time.Duration) Pacer {
	return &fixedDelayPacer{delay: delay}
}

func (p *fixedDelayPacer) Pace(ctx context.Context) {
	if p.delay <= 0 {
		return
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// tokenBucketPacer allows bursts of up to burst writes, refilling one token
// per interval. Calls block until a token is available.
type tokenBucketPacer struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	tokens   float64
	last     time.Time
}

// TokenBucket returns a Pacer refilling one token per interval with the
// given burst capacity.
func TokenBucket(interval time.Duration, burst int) Pacer {
	if burst < 1 {
		burst = 1
	}
	return &tokenBucketPacer{
		interval: interval,
		burst:    burst,
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

func (p *tokenBucketPacer) Pace(ctx context.Context) {
	p.mu.Lock()
	now := time.Now()
	if p.interval > 0 {
		p.tokens += float64(now.Sub(p.last)) / float64(p.interval)
		if p.tokens > float64(p.burst) {
			p.tokens = float64(p.burst)
		}
	}
	p.last = now

	if p.tokens >= 1 {
		p.tokens--
		p.mu.Unlock()
		return
	}
	wait := time.Duration((1 - p.tokens) * float64(p.interval))
	p.tokens = 0
	p.mu.Unlock()

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// nopPacer is used in tests and dry runs where pacing only adds latency.
type nopPacer struct{}

// NopPacer returns a Pacer that never waits.
func NopPacer() Pacer { return nopPacer{} }

func (nopPacer) Pace(context.Context) {}
