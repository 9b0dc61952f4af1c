// internal/client/backoff.go
package client

import "time"

// Backoff bounds reconnect attempts. The delay before attempt n (0-based)
// is min(Base*2^n, Max).
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff waits 1s, 2s, 4s, 8s, 10s.
var DefaultBackoff = Backoff{Base: time.Second, Max: 10 * time.Second, MaxAttempts: 5}

// Delay returns the wait before the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		if d >= b.Max {
			break
		}
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}
