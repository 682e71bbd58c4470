package terminology

import (
	"context"
	"sync"
	"time"
)

// rateWindow is the sliding window for client-side throttling.
const rateWindow = time.Second

// RateLimiter caps outbound requests to max per sliding one-second
// window. When the window is full the caller blocks until it clears. This
// is cooperative self-throttling, not a server-enforced contract.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	stamps []time.Time
}

// NewRateLimiter creates a limiter allowing max requests per second.
// max <= 0 disables limiting.
func NewRateLimiter(max int) *RateLimiter {
	return &RateLimiter{max: max}
}

// Wait blocks until a request slot is available or ctx is cancelled.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.max <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-rateWindow)
		kept := l.stamps[:0]
		for _, t := range l.stamps {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		l.stamps = kept

		if len(l.stamps) < l.max {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.stamps[0].Add(rateWindow).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
