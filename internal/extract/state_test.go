package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/comps-intel/pkg/llm"
)

var (
	errUnavailable = llm.NewError("test", 503, "UNAVAILABLE", errors.New("down"))
	errRateLimited = llm.NewError("test", 429, "per minute", errors.New("slow down"))
	errQuota       = llm.NewError("test", 429, "per day", errors.New("quota"))
	errOther       = llm.NewError("test", 400, "invalid argument", errors.New("bad"))
)

func testPolicy(hasBackup bool) Policy {
	return Policy{FallbackModel: "lite", UnavailableWait: 5 * time.Second, HasBackup: hasBackup}
}

func TestPolicy_Unavailable(t *testing.T) {
	p := testPolicy(false)

	d := p.Next(State{Model: "main", Attempt: 1}, errUnavailable)
	assert.True(t, d.Retry)
	assert.Equal(t, "main", d.Next.Model)
	assert.Equal(t, 2, d.Next.Attempt)
	assert.Equal(t, 5*time.Second, d.Wait)

	d = p.Next(d.Next, errUnavailable)
	assert.True(t, d.Retry)
	assert.Equal(t, "lite", d.Next.Model)
	assert.Equal(t, 3, d.Next.Attempt)
	assert.Equal(t, 5*time.Second, d.Wait)

	d = p.Next(d.Next, errUnavailable)
	assert.False(t, d.Retry)
}

func TestPolicy_RateLimited(t *testing.T) {
	p := testPolicy(false)

	d := p.Next(State{Model: "main", Attempt: 1}, errRateLimited)
	assert.True(t, d.Retry)
	assert.Equal(t, "lite", d.Next.Model)
	assert.Equal(t, 1, d.Next.RateLimitHits)
	assert.Zero(t, d.Wait)

	d = p.Next(d.Next, errRateLimited)
	assert.False(t, d.Retry)
}

func TestPolicy_QuotaExhausted(t *testing.T) {
	d := testPolicy(false).Next(State{Model: "main", Attempt: 1}, errQuota)
	assert.False(t, d.Retry)

	p := testPolicy(true)
	d = p.Next(State{Model: "main", Attempt: 1}, errQuota)
	assert.True(t, d.Retry)
	assert.True(t, d.ActivateBackup)
	assert.True(t, d.Next.BackupActive)
	assert.Equal(t, "main", d.Next.Model)

	d = p.Next(d.Next, errQuota)
	assert.False(t, d.Retry, "backup is used at most once")
}

func TestPolicy_OtherAndParseErrorsFailImmediately(t *testing.T) {
	p := testPolicy(true)
	assert.False(t, p.Next(State{Model: "main", Attempt: 1}, errOther).Retry)
	assert.False(t, p.Next(State{Model: "main", Attempt: 1}, errors.New("plain")).Retry)
	assert.False(t, p.Next(State{Model: "main", Attempt: 1}, &ParseError{Reason: "x"}).Retry)
}

func TestPolicy_AttemptCap(t *testing.T) {
	p := testPolicy(true)
	d := p.Next(State{Model: "main", Attempt: MaxAttempts}, errQuota)
	assert.False(t, d.Retry)
	assert.Equal(t, "attempt limit reached", d.Reason)
}

func TestPolicy_NoFallbackModelKeepsCurrent(t *testing.T) {
	p := Policy{}
	d := p.Next(State{Model: "main", Attempt: 1}, errRateLimited)
	assert.True(t, d.Retry)
	assert.Equal(t, "main", d.Next.Model)
}

func TestPolicy_TerminatesForAnyErrorSequence(t *testing.T) {
	errs := []error{errUnavailable, errRateLimited, errQuota}
	// Walk every sequence of length MaxAttempts+1 and check the bound.
	var walk func(s State, depth int)
	walk = func(s State, depth int) {
		assert.LessOrEqual(t, s.Attempt, MaxAttempts)
		if depth > MaxAttempts {
			return
		}
		for _, err := range errs {
			d := testPolicy(true).Next(s, err)
			if d.Retry {
				walk(d.Next, depth+1)
			}
		}
	}
	walk(State{Model: "main", Attempt: 1}, 1)
}
