package handler

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrPolicyViolation is returned when an outbound proxy is configured
	// for a reverse handler without the override.
	ErrPolicyViolation errors.Error = "TCP connect-back payloads cannot be used with proxies; " +
		"can be overridden by setting reverse-allow-proxy to true"

	// ErrExhaustedCandidates is returned together with the last bind error
	// when none of the candidate addresses could be bound.
	ErrExhaustedCandidates errors.Error = "no candidate address could be bound"
)

// ResolutionError is returned when the handler host cannot be turned into an
// address.
type ResolutionError struct {
	// Err is the underlying error.
	Err error

	// Host is the host that failed to resolve.
	Host string
}

// type check
var _ error = (*ResolutionError)(nil)

// Error implements the error interface for *ResolutionError.
func (e *ResolutionError) Error() (msg string) {
	return fmt.Sprintf("resolving %q: %s", e.Host, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() (err error) {
	return e.Err
}

// exhaustedError wraps the last bind error.  Its message is the one of the
// last error so that the operator sees the most specific cause.
type exhaustedError struct {
	last error
}

// Error implements the error interface for *exhaustedError.
func (e *exhaustedError) Error() (msg string) {
	return e.last.Error()
}

// Is makes errors.Is(err, ErrExhaustedCandidates) true.
func (e *exhaustedError) Is(target error) (ok bool) {
	return target == ErrExhaustedCandidates
}

// Unwrap returns the last bind error.
func (e *exhaustedError) Unwrap() (err error) {
	return e.last
}
