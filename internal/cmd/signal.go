package cmd

import (
	"io"
	"os"
	"os/signal"

	"github.com/AdguardTeam/golibs/log"
	"golang.org/x/sys/unix"
)

// Exit status constants.
const (
	statusSuccess = 0
	statusError   = 1
)

// signalHandler waits for a termination signal and closes the handler
// together with whatever it depends on.
type signalHandler struct {
	signal chan os.Signal

	// closers are closed in order on shutdown, so the handler goes first and
	// its resolver after it.
	closers []io.Closer
}

// newSignalHandler returns a new signalHandler that closes closers.
func newSignalHandler(closers ...io.Closer) (h *signalHandler) {
	h = &signalHandler{
		signal:  make(chan os.Signal, 1),
		closers: closers,
	}

	signal.Notify(h.signal, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM, unix.SIGHUP)

	return h
}

// handle blocks until the process must exit and returns the exit status.
func (h *signalHandler) handle() (status int) {
	defer log.OnPanic("signalHandler.handle")

	for sig := range h.signal {
		log.Info("sighdlr: received signal %q", sig)

		if sig == unix.SIGHUP {
			// The listener is bound once, there is nothing to reload.
			log.Info("sighdlr: ignoring %q", sig)

			continue
		}

		return h.shutdown()
	}

	return statusError
}

// shutdown closes everything in order.
func (h *signalHandler) shutdown() (status int) {
	signal.Stop(h.signal)

	log.Info("sighdlr: shutting down")
	for i, c := range h.closers {
		if err := c.Close(); err != nil {
			log.Error("sighdlr: closing %d of %d: %s", i+1, len(h.closers), err)
			status = statusError
		}
	}

	return status
}
