package handler

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/ameshkov/revlistener/internal/metrics"
)

// acceptRetryDelay is the pause after a temporary accept error.
const acceptRetryDelay = 10 * time.Millisecond

// ConnHandler handles a callback that completed the TLS handshake.  The
// connection is closed once it returns.
type ConnHandler func(conn *tls.Conn, l *Listener)

// Server binds the reverse handler listener and accepts the callbacks.
type Server struct {
	conf    *Config
	handle  ConnHandler
	wg      *sync.WaitGroup
	started bool

	listener *Listener
	conns    map[net.Conn]struct{}

	// mu protects started, listener and conns.
	mu *sync.Mutex
}

// type check.
var _ io.Closer = (*Server)(nil)

// NewServer creates a new instance of *Server.  h is called for every
// callback in its own goroutine.
func NewServer(conf *Config, h ConnHandler) (s *Server, err error) {
	if conf.LHost == "" {
		return nil, fmt.Errorf("lhost is required")
	}

	if h == nil {
		return nil, fmt.Errorf("connection handler is required")
	}

	return &Server{
		conf:   conf,
		handle: h,
		wg:     &sync.WaitGroup{},
		conns:  map[net.Conn]struct{}{},
		mu:     &sync.Mutex{},
	}, nil
}

// Addr returns the address where the server listens for callbacks or nil if
// it is not started.
func (s *Server) Addr() (addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	return s.listener.Server.Addr()
}

// Listener returns the bound listener or nil if the server is not started.
func (s *Server) Listener() (l *Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listener
}

// Start binds the listener and starts accepting callbacks.
func (s *Server) Start() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info("handler: starting")

	if s.started {
		return fmt.Errorf("server is already started")
	}

	s.listener, err = Setup(s.conf)
	if err != nil {
		return fmt.Errorf("setting up handler: %w", err)
	}

	l := s.listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		_ = s.acceptLoop(l)
	}()

	s.started = true
	metrics.ListenersActive.Inc()

	log.Info("handler: started")

	return nil
}

// acceptLoop runs the accept loop until the listener is closed.
func (s *Server) acceptLoop(l *Listener) (err error) {
	for {
		var conn net.Conn
		conn, err = l.Server.Accept()

		if errors.Is(err, net.ErrClosed) {
			log.Info("handler: exiting listener loop as it has been closed")

			return err
		}

		if err != nil {
			log.Debug("handler: accepting: %v", err)
			time.Sleep(acceptRetryDelay)

			continue
		}

		if !s.track(conn) {
			_ = conn.Close()

			return net.ErrClosed
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)

			hErr := s.handleConn(conn, l)
			if hErr != nil {
				log.Debug("handler: handling conn: %v", hErr)
			}
		}()
	}
}

// track registers conn so that Close can interrupt it.  ok is false if the
// server is already closed.
func (s *Server) track(conn net.Conn) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return false
	}

	s.conns[conn] = struct{}{}

	return true
}

// untrack closes conn and removes it from the tracked connections.
func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	log.OnCloserError(conn, log.DEBUG)
}

// handleConn completes the TLS handshake and passes the connection to the
// connection handler.
func (s *Server) handleConn(conn net.Conn, l *Listener) (err error) {
	log.Debug("handler: accepting new connection from %s", conn.RemoteAddr())

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return fmt.Errorf("handler: unexpected conn type %T", conn)
	}

	timeout := s.conf.HandshakeTimeout
	if timeout == 0 {
		timeout = DefaultHandshakeTimeout
	}

	if err = conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("handler: setting handshake deadline: %w", err)
	}

	if err = tlsConn.Handshake(); err != nil {
		metrics.HandshakeErrorsTotal.Inc()

		return fmt.Errorf("handler: handshake with %s: %w", conn.RemoteAddr(), err)
	}

	if err = conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("handler: removing deadline: %w", err)
	}

	metrics.ConnectionsTotal.Inc()

	log.Info("handler: callback from %s", conn.RemoteAddr())

	s.handle(tlsConn, l)

	return nil
}

// Close implements the io.Closer interface for *Server.  It closes the
// listener and the connections that are still being handled.
func (s *Server) Close() (err error) {
	s.mu.Lock()

	log.Info("handler: closing")

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	s.started = false
	metrics.ListenersActive.Dec()

	err = s.listener.Server.Close()

	for conn := range s.conns {
		log.OnCloserError(conn, log.DEBUG)
	}

	s.mu.Unlock()

	log.Info("handler: waiting until connections stop processing")

	s.wg.Wait()

	log.Info("handler: closed")

	return err
}
