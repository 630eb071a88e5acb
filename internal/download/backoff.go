package download

import "time"

// Backoff is a bounded exponential retry schedule.
type Backoff struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultBackoff retries three times after the first failure, waiting 1s, 2s
// and 4s, never more than 30s.
var DefaultBackoff = Backoff{
	MaxRetries:   3,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
}

// Delay returns how long to wait before attempt (0 is the first try).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := b.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	return min(d, b.MaxDelay)
}
