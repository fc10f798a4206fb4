package handler

import (
	"context"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
)

// Wildcard addresses for each family.
const (
	anyAddrIPv4 = "0.0.0.0"
	anyAddrIPv6 = "::0"
)

const (
	// errEmptyHost is returned when there is no host to resolve.
	errEmptyHost errors.Error = "empty host"

	// errNoAddresses is returned when the lookup returns nothing.
	errNoAddresses errors.Error = "no addresses"
)

// resolveHost turns host into an address.  IP literals are parsed directly,
// other hosts are looked up with res and the first address is used.  Looked up
// IPv4 addresses are always returned as IPv4, while an IPv4-mapped literal
// stays IPv6.
func resolveHost(res HostResolver, host string) (addr netip.Addr, err error) {
	if host == "" {
		return netip.Addr{}, &ResolutionError{Host: host, Err: errEmptyHost}
	}

	addr, err = netip.ParseAddr(host)
	if err == nil {
		return addr, nil
	}

	if res == nil {
		res = net.DefaultResolver
	}

	addrs, err := res.LookupNetIP(context.Background(), "ip", host)
	if err != nil {
		return netip.Addr{}, &ResolutionError{Host: host, Err: err}
	} else if len(addrs) == 0 {
		return netip.Addr{}, &ResolutionError{Host: host, Err: errNoAddresses}
	}

	// The system resolver returns IPv4 answers in the 16-byte form.
	return addrs[0].Unmap(), nil
}

// anyAddr returns the wildcard address of the family of addr.  IPv4-mapped
// IPv6 addresses are considered IPv6.
func anyAddr(addr netip.Addr) (wildcard string) {
	if addr.Is4() {
		return anyAddrIPv4
	}

	return anyAddrIPv6
}

// isWildcard returns true if addr is an operator-specified "any" address.
func isWildcard(addr string) (ok bool) {
	ip, err := netip.ParseAddr(addr)

	return err == nil && ip.IsUnspecified()
}

// bindAddrs returns the addresses to try binding to, in order.  Without an
// explicit bind address these are the target address and then the wildcard
// of the same family.  An explicit bind address is the only candidate, with
// wildcards replaced by the one matching the target family.
func bindAddrs(target netip.Addr, bindAddr string) (addrs []string) {
	wildcard := anyAddr(target)

	if bindAddr == "" {
		return []string{target.String(), wildcard}
	}

	if isWildcard(bindAddr) {
		return []string{wildcard}
	}

	return []string{bindAddr}
}
