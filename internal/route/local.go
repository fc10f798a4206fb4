package route

import "net"

// localRoute creates sockets on the local network stack.
type localRoute struct{}

// Local is the direct route.  It is used whenever no specific route to the
// target is registered.
var Local Route = localRoute{}

// Listen implements the Route interface for localRoute.
func (localRoute) Listen(network, address string) (l net.Listener, err error) {
	return net.Listen(network, address)
}

// Descriptor implements the Route interface for localRoute.
func (localRoute) Descriptor() (d Descriptor) {
	return Descriptor{Kind: KindDirect}
}
