// Package handler implements the reverse TLS handler: it binds a TLS listener
// the payload connects back to and accepts the callbacks.
package handler

import (
	"net"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/ameshkov/revlistener/internal/metrics"
	"github.com/ameshkov/revlistener/internal/route"
	"github.com/ameshkov/revlistener/internal/sslsock"
)

// Listener is a bound reverse handler listener.
type Listener struct {
	// Server is the bound TLS server socket.
	Server *sslsock.Server

	// Host is the local address the socket was bound to.
	Host string

	// Route is the descriptor of the route the socket goes through.
	Route route.Descriptor

	// Port is the local port the socket was bound to.
	Port uint16
}

// Setup binds the reverse handler listener.  It does not accept connections.
//
// Candidate addresses are tried one by one and the first one that binds wins.
// If none does, the returned error is the one of the last candidate, and
// errors.Is(err, ErrExhaustedCandidates) is true.  Setup keeps no state
// between calls.
func Setup(conf *Config) (l *Listener, err error) {
	if len(conf.Proxies) > 0 && !conf.AllowProxy {
		return nil, ErrPolicyViolation
	}

	target, err := resolveHost(conf.Resolver, conf.LHost)
	if err != nil {
		return nil, err
	}

	r := route.Select(conf.Route, conf.Routes, target)
	port := conf.bindPort()

	factory := conf.Factory
	if factory == nil {
		factory = sslsock.Create
	}

	var lastErr error
	for _, addr := range bindAddrs(target, conf.BindAddress) {
		s, bindErr := factory(&sslsock.Config{
			Route:    r,
			Context:  conf.Context,
			Host:     addr,
			CertPath: conf.SSLCertPath,
			Port:     port,
		})
		if bindErr != nil {
			metrics.BindAttemptsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			log.Error("Handler failed to bind to %s", netutil.JoinHostPort(addr, port))
			log.Debug("handler: binding %s: %s", addr, bindErr)

			lastErr = bindErr

			continue
		}

		metrics.BindAttemptsTotal.WithLabelValues(metrics.ResultSuccess).Inc()

		l = &Listener{
			Server: s,
			Host:   addr,
			Route:  r.Descriptor(),
			Port:   boundPort(s, port),
		}

		via := l.Route.String()
		if via != "" {
			via = " " + via
		}

		log.Info("Started reverse SSL handler on %s%s", netutil.JoinHostPort(l.Host, l.Port), via)

		return l, nil
	}

	return nil, &exhaustedError{last: lastErr}
}

// boundPort returns the actual port of s, which differs from the requested
// one when an ephemeral port was requested.
func boundPort(s *sslsock.Server, requested uint16) (port uint16) {
	if requested != 0 {
		return requested
	}

	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}

	return requested
}
