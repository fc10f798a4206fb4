package cmd

import (
	"crypto/tls"
	"io"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/ameshkov/revlistener/internal/handler"
)

// inputChunkSize is the size of a single read from the input stream.
const inputChunkSize = 32 * 1024

// stdioSession attaches the first callback to the given streams.  Callbacks
// that arrive while a session is attached are rejected.  The input stream is
// read by a single goroutine for the whole lifetime of the process, so that
// input typed after a session ends goes to the next one.
type stdioSession struct {
	out   io.Writer
	input <-chan []byte

	// pending is the input chunk that could not be written to the previous
	// session.  It is only accessed by the attached session.
	pending []byte

	// mu protects attached.
	mu       *sync.Mutex
	attached bool
}

// newStdioSession returns a session that pipes callbacks to in and out.  It
// starts reading in right away.
func newStdioSession(in io.Reader, out io.Writer) (s *stdioSession) {
	input := make(chan []byte)
	go pumpInput(in, input)

	return &stdioSession{
		out:   out,
		input: input,
		mu:    &sync.Mutex{},
	}
}

// pumpInput reads in into ch until it fails and closes ch.
func pumpInput(in io.Reader, ch chan<- []byte) {
	defer close(ch)

	for {
		buf := make([]byte, inputChunkSize)
		n, err := in.Read(buf)
		if n > 0 {
			ch <- buf[:n]
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error("session: reading input: %v", err)
			}

			return
		}
	}
}

// attach marks the session as attached.  ok is false if it already is.
func (s *stdioSession) attach() (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return false
	}

	s.attached = true

	return true
}

// detach allows the next callback to attach.
func (s *stdioSession) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attached = false
}

// handle implements the handler.ConnHandler signature for *stdioSession.
func (s *stdioSession) handle(conn *tls.Conn, l *handler.Listener) {
	remote := conn.RemoteAddr()
	if !s.attach() {
		log.Info("session: rejecting callback from %s, a session is already attached", remote)

		return
	}
	defer s.detach()

	log.Info(
		"session: attached to %s on %s:%d (sni %q)",
		remote,
		l.Host,
		l.Port,
		conn.ConnectionState().ServerName,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)

		n, err := io.Copy(s.out, conn)
		if err != nil {
			log.Debug("session: reading from %s: %v", remote, err)
		}

		log.Info("session: %s detached after %d bytes", remote, n)
	}()

	s.forwardInput(conn, done)

	<-done
}

// forwardInput writes the input chunks to conn until done is closed.  A chunk
// that could not be written is kept for the next session.
func (s *stdioSession) forwardInput(conn *tls.Conn, done <-chan struct{}) {
	input := s.input
	for {
		chunk := s.pending
		if chunk == nil {
			var ok bool
			select {
			case <-done:
				return
			case chunk, ok = <-input:
				if !ok {
					// The input is over, keep reading the callback.
					input = nil

					continue
				}
			}
		}

		n, err := conn.Write(chunk)
		if err != nil {
			log.Debug("session: writing to %s: %v", conn.RemoteAddr(), err)
			s.pending = chunk[n:]

			// Unblock the reading goroutine.
			log.OnCloserError(conn, log.DEBUG)

			return
		}

		s.pending = nil
	}
}
