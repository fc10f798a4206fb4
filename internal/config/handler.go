package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ameshkov/revlistener/internal/handler"
	"golang.org/x/net/proxy"
)

// Handler represents the reverse TLS handler section of the configuration
// file.
type Handler struct {
	// LHost is the address or the hostname the payload connects back to.
	// Must be specified.
	LHost string `yaml:"lhost"`

	// BindAddress is the local address to bind to instead of LHost.  If
	// specified, the handler does not fall back to the wildcard address.
	BindAddress string `yaml:"reverse-listener-bind-address"`

	// SSLCertPath is the path to the certificate and the private key in
	// unified PEM format.  If not specified, a self-signed certificate is
	// generated.
	SSLCertPath string `yaml:"handler-ssl-cert"`

	// Proxies is the comma-separated list of outbound proxy URLs, e.g.
	// "socks5://10.0.0.1:1080".  Format of the URL:
	// protocol://[username:password@]host[:port]
	Proxies string `yaml:"proxies"`

	// HandshakeTimeout is the time a callback has to complete the TLS
	// handshake.
	HandshakeTimeout time.Duration `yaml:"handshake-timeout"`

	// LPort is the port the payload connects back to.
	LPort uint16 `yaml:"lport"`

	// BindPort is the local port to bind to instead of LPort.
	BindPort uint16 `yaml:"reverse-listener-bind-port"`

	// AllowProxy allows running the handler while Proxies is set.
	AllowProxy bool `yaml:"reverse-allow-proxy"`
}

// ToHandlerConfig transforms the configuration to the internal
// handler.Config.  Routes, resolver and owner context are not a part of the
// file and are set by the caller.
func (f *File) ToHandlerConfig() (conf *handler.Config, err error) {
	if f.Handler == nil {
		return nil, fmt.Errorf("handler config is empty")
	}

	h := f.Handler

	conf = &handler.Config{
		LHost:            h.LHost,
		BindAddress:      h.BindAddress,
		SSLCertPath:      h.SSLCertPath,
		HandshakeTimeout: h.HandshakeTimeout,
		LPort:            h.LPort,
		BindPort:         h.BindPort,
		AllowProxy:       h.AllowProxy,
	}

	conf.Proxies, err = parseProxies(h.Proxies)
	if err != nil {
		return nil, fmt.Errorf("parse handler proxies: %w", err)
	}

	return conf, nil
}

// parseProxies parses the comma-separated proxy chain.  Every URL must be
// supported by the proxy package.
func parseProxies(s string) (urls []*url.URL, err error) {
	var d proxy.Dialer = proxy.Direct
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		var u *url.URL
		u, err = url.Parse(raw)
		if err != nil {
			return nil, err
		}

		d, err = proxy.FromURL(u, d)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", u.Redacted(), err)
		}

		urls = append(urls, u)
	}

	return urls, nil
}
