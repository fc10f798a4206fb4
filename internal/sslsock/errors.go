package sslsock

import (
	"fmt"

	"github.com/AdguardTeam/golibs/netutil"
)

// BindError is returned when a TLS server socket could not be created on an
// address.
type BindError struct {
	// Err is the underlying error.
	Err error

	// Addr is the local address that failed.
	Addr string

	// Port is the local port that failed.
	Port uint16
}

// type check
var _ error = (*BindError)(nil)

// Error implements the error interface for *BindError.
func (e *BindError) Error() (msg string) {
	return fmt.Sprintf("binding %s: %s", netutil.JoinHostPort(e.Addr, e.Port), e.Err)
}

// Unwrap returns the underlying error.
func (e *BindError) Unwrap() (err error) {
	return e.Err
}
