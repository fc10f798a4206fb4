package route

import "net/netip"

// Select returns the route to use for listening on behalf of target.  An
// explicit override always wins.  Otherwise the best route from the table is
// used, and Local when the table has none or is nil.
func Select(override Route, table Finder, target netip.Addr) (r Route) {
	if override != nil {
		return override
	}

	if table != nil {
		r = table.BestRouteFor(target)
	}

	if r == nil {
		return Local
	}

	return r
}
