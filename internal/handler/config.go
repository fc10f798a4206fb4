package handler

import (
	"context"
	"net/netip"
	"net/url"
	"time"

	"github.com/ameshkov/revlistener/internal/route"
	"github.com/ameshkov/revlistener/internal/sslsock"
)

// DefaultHandshakeTimeout is the default time an accepted connection has to
// complete the TLS handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// HostResolver looks up hostnames.  *net.Resolver implements it.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) (addrs []netip.Addr, err error)
}

// ServerFactory creates a bound TLS server socket.  sslsock.Create is the
// default one.
type ServerFactory func(conf *sslsock.Config) (s *sslsock.Server, err error)

// Config is the reverse TLS handler configuration.  It is read-only for the
// handler.
type Config struct {
	// Resolver resolves LHost if it is not an IP address.  If nil,
	// net.DefaultResolver is used.
	Resolver HostResolver

	// Routes is the routing table consulted when Route is nil.  If nil, the
	// direct route is used.
	Routes route.Finder

	// Route is the explicit route override.
	Route route.Route

	// Factory creates the TLS server sockets.  If nil, sslsock.Create is
	// used.
	Factory ServerFactory

	// Context is an opaque owner context threaded through to the server
	// socket for whoever handles accepted connections.
	Context any

	// LHost is the host the payload connects back to.  Must be specified.
	LHost string

	// BindAddress is the local address to bind to instead of LHost.  When
	// set, no fallback address is tried.
	BindAddress string

	// SSLCertPath is the path to the certificate and the private key in
	// unified PEM format.  Optional.
	SSLCertPath string

	// Proxies is the outbound proxy chain.  Reverse handlers refuse to start
	// when it is not empty unless AllowProxy is set.
	Proxies []*url.URL

	// HandshakeTimeout is the time an accepted connection has to complete
	// the TLS handshake.  If zero, DefaultHandshakeTimeout is used.
	HandshakeTimeout time.Duration

	// LPort is the port the payload connects back to.
	LPort uint16

	// BindPort is the local port to bind to instead of LPort if greater
	// than zero.
	BindPort uint16

	// AllowProxy allows starting the handler with Proxies set.
	AllowProxy bool
}

// bindPort returns the local port to bind to.
func (c *Config) bindPort() (port uint16) {
	if c.BindPort > 0 {
		return c.BindPort
	}

	return c.LPort
}
