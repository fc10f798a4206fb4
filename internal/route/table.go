package route

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/AdguardTeam/golibs/log"
)

// Finder looks up the route to use for the specified address.
type Finder interface {
	// BestRouteFor returns the most specific route to addr or nil if there
	// is none.
	BestRouteFor(addr netip.Addr) (r Route)
}

// Entry is a single routing table entry.
type Entry struct {
	// Prefix is the subnet reachable through Route.
	Prefix netip.Prefix

	// Route is the route to the subnet.
	Route Route
}

// Table is the routing table that maps subnets to routes.  Sessions register
// their routes here so that listeners bound to addresses within those subnets
// are created through the session.
type Table struct {
	// mu protects entries.
	mu      *sync.RWMutex
	entries []Entry
}

// type check
var _ Finder = (*Table)(nil)

// NewTable creates a new empty *Table.
func NewTable() (t *Table) {
	return &Table{
		mu: &sync.RWMutex{},
	}
}

// Add adds a route to the subnet.  The prefix is masked before it is stored.
// It returns an error if a route for the same subnet is already registered.
func (t *Table) Add(prefix netip.Prefix, r Route) (err error) {
	if !prefix.IsValid() {
		return fmt.Errorf("invalid prefix %s", prefix)
	} else if r == nil {
		return fmt.Errorf("no route to %s", prefix)
	}

	prefix = prefix.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.Prefix == prefix {
			return fmt.Errorf("route to %s already exists", prefix)
		}
	}

	t.entries = append(t.entries, Entry{Prefix: prefix, Route: r})

	log.Debug("route: added %s %s", prefix, r.Descriptor())

	return nil
}

// Remove removes the route to the subnet.  ok is false if there was no such
// route.
func (t *Table) Remove(prefix netip.Prefix) (ok bool) {
	prefix = prefix.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Prefix == prefix {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)

			return true
		}
	}

	return false
}

// RemoveBySession removes all the routes going through the session with the
// specified identity and returns the number of removed entries.
func (t *Table) RemoveBySession(identity string) (n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.entries[:0]
	for _, e := range t.entries {
		d := e.Route.Descriptor()
		if d.Kind == KindTunneled && d.Identity == identity {
			n++

			continue
		}

		kept = append(kept, e)
	}

	// Clear the tail so that removed routes can be garbage collected.
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = Entry{}
	}

	t.entries = kept

	return n
}

// Routes returns a copy of the table entries.
func (t *Table) Routes() (entries []Entry) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]Entry(nil), t.entries...)
}

// BestRouteFor implements the Finder interface for *Table.  The entry with
// the longest matching prefix wins.
func (t *Table) BestRouteFor(addr netip.Addr) (r Route) {
	addr = addr.Unmap().WithZone("")

	t.mu.RLock()
	defer t.mu.RUnlock()

	bits := -1
	for _, e := range t.entries {
		if e.Prefix.Bits() > bits && e.Prefix.Contains(addr) {
			r, bits = e.Route, e.Prefix.Bits()
		}
	}

	return r
}
