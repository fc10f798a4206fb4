// Package dnsres resolves handler hostnames using a DNS upstream.
package dnsres

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"github.com/AdguardTeam/dnsproxy/upstream"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/miekg/dns"
)

// ErrNoAddresses is returned when the upstream has no addresses for a host.
const ErrNoAddresses errors.Error = "no addresses"

// Config is the resolver configuration.
type Config struct {
	// Upstream is the DNS upstream that answers the queries.  Must not be
	// nil.
	Upstream upstream.Upstream
}

// Resolver looks up hostnames with a DNS upstream and caches the positive
// answers.  It is safe for concurrent use.
type Resolver struct {
	ups upstream.Upstream

	cache   map[string][]netip.Addr
	cacheMu *sync.Mutex
}

// New creates a new *Resolver.
func New(conf *Config) (r *Resolver) {
	return &Resolver{
		ups:     conf.Upstream,
		cache:   map[string][]netip.Addr{},
		cacheMu: &sync.Mutex{},
	}
}

// LookupNetIP looks up host.  network is "ip", "ip4" or "ip6", like for
// [net.Resolver.LookupNetIP].  For "ip" IPv4 addresses go first.
func (r *Resolver) LookupNetIP(
	ctx context.Context,
	network string,
	host string,
) (addrs []netip.Addr, err error) {
	var qtypes []uint16
	switch network {
	case "ip":
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	key := network + " " + host

	var ok bool
	if addrs, ok = r.lookupCache(key); ok {
		return addrs, nil
	}

	for _, qt := range qtypes {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		var found []netip.Addr
		found, err = r.exchange(host, qt)
		if err != nil {
			return nil, fmt.Errorf("looking up %s %s: %w", dns.Type(qt), host, err)
		}

		addrs = append(addrs, found...)
	}

	if len(addrs) == 0 {
		return nil, fmt.Errorf("looking up %s: %w", host, ErrNoAddresses)
	}

	r.putToCache(key, addrs)

	return addrs, nil
}

// exchange sends a single question to the upstream and returns the addresses
// from the answer section.
func (r *Resolver) exchange(host string, qtype uint16) (addrs []netip.Addr, err error) {
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(host), qtype)
	req.RecursionDesired = true

	log.Debug("dnsres: %s %s via %s", dns.Type(qtype), host, r.ups.Address())

	resp, err := r.ups.Exchange(req)
	if err != nil {
		return nil, err
	}

	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("bad rcode %s", dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		var ip []byte
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A.To4()
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}

		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr)
		}
	}

	return addrs, nil
}

func (r *Resolver) lookupCache(key string) (addrs []netip.Addr, ok bool) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	addrs, ok = r.cache[key]

	return addrs, ok
}

func (r *Resolver) putToCache(key string, addrs []netip.Addr) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache[key] = addrs
}

// Close implements the io.Closer interface for *Resolver.
func (r *Resolver) Close() (err error) {
	return r.ups.Close()
}
