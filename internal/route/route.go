// Package route describes how listening sockets are created: directly on the
// local network stack or through a session on a pivot host.
package route

import (
	"fmt"
	"net"
)

// Kind is the kind of a network route.
type Kind string

// Supported route kinds.
const (
	KindDirect   Kind = "direct"
	KindTunneled Kind = "tunneled"
)

// Route is a capability that knows how to create listening sockets.  Routes
// may be shared between concurrently active listeners so implementations must
// be safe for concurrent use.
type Route interface {
	// Listen opens a listening stream socket on the given address.  The
	// address must be in the "host:port" form.
	Listen(network, address string) (l net.Listener, err error)

	// Descriptor returns the human-readable description of the route.
	Descriptor() (d Descriptor)
}

// Descriptor is the identity of a route, used for status reporting only.
type Descriptor struct {
	// Kind is either KindDirect or KindTunneled.
	Kind Kind

	// Type is the type of the session the route goes through, e.g.
	// "meterpreter".  Empty for direct routes.
	Type string

	// Identity is the identifier of the session the route goes through.
	// Empty for direct routes.
	Identity string
}

// type check
var _ fmt.Stringer = Descriptor{}

// String implements the fmt.Stringer interface for Descriptor.  It returns an
// empty string for routes that have no session identity.
func (d Descriptor) String() (s string) {
	if d.Kind != KindTunneled || d.Identity == "" {
		return ""
	}

	typ := d.Type
	if typ == "" {
		typ = string(d.Kind)
	}

	return fmt.Sprintf("via the %s on session %s", typ, d.Identity)
}
