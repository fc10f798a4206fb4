package route

import (
	"fmt"
	"net"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrNoPivot is returned when a tunneled route has no session to create the
// socket through.
const ErrNoPivot errors.Error = "tunnel has no pivot session"

// Pivot is a session on a compromised host that is able to listen for
// connections on behalf of the operator.  The session protocol is
// implemented elsewhere.
type Pivot interface {
	// Listen opens a listening socket on the pivot host.
	Listen(network, address string) (l net.Listener, err error)
}

// Tunnel is a route that creates sockets through a pivot session.
type Tunnel struct {
	// Pivot is the session the sockets are created through.  Must not be
	// nil.
	Pivot Pivot

	// Type is the type of the session, e.g. "meterpreter".
	Type string

	// SessionID is the identifier of the session.
	SessionID string
}

// type check
var _ Route = (*Tunnel)(nil)

// Listen implements the Route interface for *Tunnel.
func (t *Tunnel) Listen(network, address string) (l net.Listener, err error) {
	if t == nil || t.Pivot == nil {
		return nil, ErrNoPivot
	}

	l, err = t.Pivot.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", t.SessionID, err)
	}

	return l, nil
}

// Descriptor implements the Route interface for *Tunnel.
func (t *Tunnel) Descriptor() (d Descriptor) {
	if t == nil {
		return Descriptor{Kind: KindTunneled}
	}

	return Descriptor{
		Kind:     KindTunneled,
		Type:     t.Type,
		Identity: t.SessionID,
	}
}
