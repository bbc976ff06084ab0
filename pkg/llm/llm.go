// Package llm defines the text-generation capability used by extraction and
// the error taxonomy its providers map onto.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Generator produces text for a prompt using the named model.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt, model string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt, model string) (string, error) {
	return f(ctx, prompt, model)
}

// Kind classifies a generation failure.
type Kind int

const (
	KindOther Kind = iota
	// KindUnavailable means the service is down or overloaded.
	KindUnavailable
	// KindRateLimited means a per-minute limit was hit.
	KindRateLimited
	// KindQuotaExhausted means a per-day quota was used up for the credential.
	KindQuotaExhausted
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExhausted:
		return "quota_exhausted"
	default:
		return "other"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindOther when err carries no *Error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindOther
}

// perDayMarkers appear in provider messages for daily quota exhaustion.
var perDayMarkers = []string{"per day", "perday", "daily", "per_day", "credit balance"}

// Classify maps an HTTP status and provider message onto a Kind.
func Classify(status int, message string) Kind {
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusTooManyRequests:
		for _, m := range perDayMarkers {
			if strings.Contains(lower, m) {
				return KindQuotaExhausted
			}
		}
		return KindRateLimited
	case status == http.StatusServiceUnavailable,
		status == http.StatusBadGateway,
		status == http.StatusGatewayTimeout,
		status == 529:
		return KindUnavailable
	case strings.Contains(lower, "unavailable"), strings.Contains(lower, "overloaded"):
		return KindUnavailable
	case strings.Contains(lower, "credit balance"):
		return KindQuotaExhausted
	default:
		return KindOther
	}
}

// NewError builds a classified error for a provider response.
func NewError(provider string, status int, message string, err error) *Error {
	return &Error{
		Kind:       Classify(status, message),
		Provider:   provider,
		StatusCode: status,
		Err:        err,
	}
}
