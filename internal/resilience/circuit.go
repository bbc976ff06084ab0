// Package resilience retries transient failures of external collaborators
// and stops calling them once they are clearly down.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrOpen is returned while a breaker is rejecting calls.
var ErrOpen = eris.New("resilience: circuit open")

// Breaker opens after Threshold consecutive failures and lets one trial request
// through once Cooldown has elapsed. A successful trial closes it.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow returns ErrOpen while the breaker is open and cooling down.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open && b.now().Sub(b.openedAt) < b.cooldown {
		return ErrOpen
	}
	return nil
}

// Record updates the breaker with the outcome of a call. Only failures for
// which counts returns true are tallied.
func (b *Breaker) Record(err error, counts func(error) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || (counts != nil && !counts(err)) {
		if b.open {
			zap.L().Info("resilience: circuit closed", zap.String("breaker", b.name))
		}
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.open || b.failures >= b.threshold {
		if !b.open {
			zap.L().Warn("resilience: circuit opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures),
			)
		}
		b.open = true
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	return b.Allow() != nil
}
