package socket

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: min(cap, base*1.5^attempt) plus a
// random jitter of at most maxJitter, so a fleet of clients does not
// reconnect in lockstep.
type Backoff struct {
	Base      time.Duration
	Cap       time.Duration
	MaxJitter time.Duration

	// Rand returns a value in [0, 1). Defaults to math/rand; tests pin it.
	Rand func() float64
}

// Delay returns the wait before reconnect attempt n (zero-based).
func (b Backoff) Delay(attempt int) time.Duration {
	randf := b.Rand
	if randf == nil {
		randf = rand.Float64
	}

	d := time.Duration(float64(b.Base) * math.Pow(1.5, float64(attempt)))
	if d > b.Cap || d < 0 {
		d = b.Cap
	}

	jitter := time.Duration(randf() * float64(b.MaxJitter))
	return d + jitter
}
