package extract

import (
	"errors"
	"time"

	"github.com/sells-group/comps-intel/pkg/llm"
)

// MaxAttempts bounds the calls made for one batch.
const MaxAttempts = 4

// State is threaded through the attempt loop for one batch.
type State struct {
	Model         string
	BackupActive  bool
	Attempt       int // 1-based number of the attempt that just ran
	RateLimitHits int
}

// Decision is the transition taken after a failed attempt.
type Decision struct {
	Next State
	// Retry is false when the failure is definitive.
	Retry bool
	// Wait is the pause before the next attempt.
	Wait time.Duration
	// ActivateBackup switches subsequent attempts to the backup credential.
	ActivateBackup bool
	Reason         string
}

// Policy holds the inputs of the transition table.
type Policy struct {
	FallbackModel   string
	UnavailableWait time.Duration
	HasBackup       bool
}

// Next computes the transition for err observed at state s. It never
// returns Retry once s.Attempt has reached MaxAttempts.
func (p Policy) Next(s State, err error) Decision {
	d := p.next(s, err)
	if d.Retry && s.Attempt >= MaxAttempts {
		return Decision{Next: s, Reason: "attempt limit reached"}
	}
	if d.Retry {
		d.Next.Attempt = s.Attempt + 1
	}
	return d
}

func (p Policy) next(s State, err error) Decision {
	var pe *ParseError
	if errors.As(err, &pe) {
		return Decision{Next: s, Reason: "unparseable response"}
	}

	switch llm.KindOf(err) {
	case llm.KindUnavailable:
		switch s.Attempt {
		case 1:
			return Decision{Next: s, Retry: true, Wait: p.UnavailableWait, Reason: "service unavailable, retrying same model"}
		case 2:
			n := s
			n.Model = p.fallback(s.Model)
			return Decision{Next: n, Retry: true, Wait: p.UnavailableWait, Reason: "service unavailable, switching to fallback model"}
		default:
			return Decision{Next: s, Reason: "service unavailable"}
		}

	case llm.KindRateLimited:
		n := s
		n.RateLimitHits++
		if n.RateLimitHits > 1 {
			return Decision{Next: n, Reason: "rate limited again"}
		}
		n.Model = p.fallback(s.Model)
		return Decision{Next: n, Retry: true, Reason: "rate limited, switching to fallback model"}

	case llm.KindQuotaExhausted:
		if !p.HasBackup || s.BackupActive {
			return Decision{Next: s, Reason: "daily quota exhausted"}
		}
		n := s
		n.BackupActive = true
		return Decision{Next: n, Retry: true, ActivateBackup: true, Reason: "daily quota exhausted, switching to backup credential"}

	default:
		return Decision{Next: s, Reason: "non-retryable error"}
	}
}

func (p Policy) fallback(current string) string {
	if p.FallbackModel == "" {
		return current
	}
	return p.FallbackModel
}
