package config

import (
	"fmt"
	"time"

	"github.com/AdguardTeam/dnsproxy/upstream"
	"github.com/ameshkov/revlistener/internal/dnsres"
)

// defaultDNSTimeout is the upstream timeout used when none is configured.
const defaultDNSTimeout = 5 * time.Second

// DNS represents the section of the configuration file that configures
// resolving of the handler host.
type DNS struct {
	// UpstreamAddr is the address of the DNS upstream, e.g.
	// "tls://dns.google" or "8.8.8.8:53".  Must be specified.
	UpstreamAddr string `yaml:"upstream-addr"`

	// Timeout is the upstream timeout.  Optional.
	Timeout time.Duration `yaml:"timeout"`
}

// ToResolver creates the resolver for the handler host.  Note that this
// method returns nil if the DNS section was not specified in the
// configuration.
func (f *File) ToResolver() (r *dnsres.Resolver, err error) {
	if f.DNS == nil {
		return nil, nil
	}

	timeout := f.DNS.Timeout
	if timeout == 0 {
		timeout = defaultDNSTimeout
	}

	u, err := upstream.AddressToUpstream(f.DNS.UpstreamAddr, &upstream.Options{
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("parse dns upstream: %w", err)
	}

	return dnsres.New(&dnsres.Config{Upstream: u}), nil
}
