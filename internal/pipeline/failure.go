package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
)

// Length failures, detected before any gate runs
var (
	ErrClaimTooShort = model.ErrClaimTooShort
	ErrClaimTooLong  = model.ErrClaimTooLong
)

// ErrNotTriggered is returned for automatic analysis of text the trigger
// detector does not flag. It is a skip, not a failure.
var ErrNotTriggered = errors.New("text does not warrant automatic analysis")

// Scope names the gate that denied a request
type Scope string

const (
	ScopeIdentifier Scope = "identifier"
	ScopeGlobal     Scope = "global"
)

// RateLimitedError reports a gate denial
type RateLimitedError struct {
	Scope      Scope
	Identifier string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.Scope == ScopeGlobal {
		return fmt.Sprintf("global rate limit reached, retry in %s", e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("rate limit reached for %q, retry in %s", e.Identifier, e.RetryAfter.Round(time.Second))
}

// ServiceUnavailableError wraps a failed or empty provider call
type ServiceUnavailableError struct {
	Provider string
	Err      error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("analysis service %s unavailable: %v", e.Provider, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a gate denial and returns it
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// IsServiceUnavailable reports whether err came from the provider call
func IsServiceUnavailable(err error) bool {
	var su *ServiceUnavailableError
	return errors.As(err, &su)
}

// IsLengthError reports whether err is a claim length rejection
func IsLengthError(err error) bool {
	return errors.Is(err, ErrClaimTooShort) || errors.Is(err, ErrClaimTooLong)
}
