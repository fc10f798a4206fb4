// Package sslsock creates TLS server sockets on top of network routes.
package sslsock

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/ameshkov/revlistener/internal/route"
)

// Config is the configuration of a single TLS server socket.
type Config struct {
	// Route creates the underlying socket.  If nil, route.Local is used.
	Route route.Route

	// Context is an opaque value that is kept with the server for whoever
	// accepts connections on it.
	Context any

	// Host is the local address to bind to.
	Host string

	// CertPath is the path to the certificate and the private key in unified
	// PEM format.  If empty, a self-signed certificate is generated.
	CertPath string

	// Port is the local port to bind to.  Zero means an ephemeral port.
	Port uint16
}

// Server is a bound TLS server socket.  It is ready to accept connections
// once returned by Create.
type Server struct {
	net.Listener

	// Context is the value from Config.Context.
	Context any

	// Route is the descriptor of the route the socket was created through.
	Route route.Descriptor
}

// Create binds a TLS server socket.  The route is not modified: TLS is
// layered over the listener it returns.  Any error is a *BindError, and no
// socket is left open in this case.
func Create(conf *Config) (s *Server, err error) {
	r := conf.Route
	if r == nil {
		r = route.Local
	}

	defer func() {
		if err != nil {
			err = &BindError{Err: err, Addr: conf.Host, Port: conf.Port}
		}
	}()

	// Load the certificate before opening the socket so that a bad
	// certificate does not require cleaning up.
	tlsConf, err := newTLSConfig(conf.CertPath)
	if err != nil {
		return nil, err
	}

	addr := netutil.JoinHostPort(conf.Host, conf.Port)
	l, err := r.Listen(network(conf.Host), addr)
	if err != nil {
		return nil, err
	}

	log.Debug("sslsock: listening on %s", l.Addr())

	return &Server{
		Listener: tls.NewListener(l, tlsConf),
		Context:  conf.Context,
		Route:    r.Descriptor(),
	}, nil
}

// newTLSConfig returns the server TLS configuration with the certificate from
// certPath or a self-signed one.
func newTLSConfig(certPath string) (conf *tls.Config, err error) {
	var cert tls.Certificate
	if certPath != "" {
		cert, err = loadPEMBundle(certPath)
	} else {
		cert, err = newSelfSignedCert()
	}

	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// network returns the network matching the family of host so that an IPv4
// address is never bound on an IPv6 socket and vice versa.  The IPv6 wildcard
// stays dual-stack.  Hostnames use the generic network.
func network(host string) (n string) {
	addr, err := netip.ParseAddr(host)
	switch {
	case err != nil:
		return "tcp"
	case addr.Is4():
		return "tcp4"
	case addr.IsUnspecified():
		return "tcp"
	default:
		return "tcp6"
	}
}
