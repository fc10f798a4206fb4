package dnsres_test

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AdguardTeam/dnsproxy/upstream"
	"github.com/ameshkov/revlistener/internal/dnsres"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

const testTTL = 60

// startServer starts a plain DNS server that knows a few hosts and returns its
// address and the counter of the received queries.
func startServer(t *testing.T) (addr string, queries *atomic.Int32) {
	t.Helper()

	queries = &atomic.Int32{}

	records := map[uint16]map[string]string{
		dns.TypeA: {
			"handler.example.": "203.0.113.5",
			"dual.example.":    "198.51.100.7",
		},
		dns.TypeAAAA: {
			"v6.example.":   "2001:db8::5",
			"dual.example.": "2001:db8::7",
		},
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		queries.Add(1)

		q := req.Question[0]
		resp := &dns.Msg{}
		resp.SetReply(req)

		ip, ok := records[q.Qtype][q.Name]
		if !ok {
			resp.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(resp)

			return
		}

		hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: testTTL}
		if q.Qtype == dns.TypeA {
			resp.Answer = append(resp.Answer, &dns.A{Hdr: hdr, A: net.ParseIP(ip)})
		} else {
			resp.Answer = append(resp.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP(ip)})
		}

		_ = w.WriteMsg(resp)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()

	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String(), queries
}

func newResolver(t *testing.T, addr string) (r *dnsres.Resolver) {
	t.Helper()

	u, err := upstream.AddressToUpstream(addr, &upstream.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)

	r = dnsres.New(&dnsres.Config{Upstream: u})
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func TestResolver_LookupNetIP(t *testing.T) {
	addr, _ := startServer(t)
	r := newResolver(t, addr)

	testCases := []struct {
		name    string
		network string
		host    string
		want    []string
		wantErr bool
	}{{
		name:    "a",
		network: "ip",
		host:    "handler.example",
		want:    []string{"203.0.113.5"},
	}, {
		name:    "aaaa",
		network: "ip",
		host:    "v6.example",
		want:    []string{"2001:db8::5"},
	}, {
		name:    "dual_ipv4_first",
		network: "ip",
		host:    "Dual.Example.",
		want:    []string{"198.51.100.7", "2001:db8::7"},
	}, {
		name:    "ip6_only",
		network: "ip6",
		host:    "dual.example",
		want:    []string{"2001:db8::7"},
	}, {
		name:    "nxdomain",
		network: "ip",
		host:    "missing.example",
		wantErr: true,
	}, {
		name:    "bad_network",
		network: "udp",
		host:    "handler.example",
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addrs, err := r.LookupNetIP(context.Background(), tc.network, tc.host)
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			var want []netip.Addr
			for _, s := range tc.want {
				want = append(want, netip.MustParseAddr(s))
			}

			require.Equal(t, want, addrs)
		})
	}
}

func TestResolver_cache(t *testing.T) {
	addr, queries := startServer(t)
	r := newResolver(t, addr)

	for range 3 {
		addrs, err := r.LookupNetIP(context.Background(), "ip4", "handler.example")
		require.NoError(t, err)
		require.Len(t, addrs, 1)
	}

	require.Equal(t, int32(1), queries.Load())

	_, err := r.LookupNetIP(context.Background(), "ip4", "missing.example")
	require.ErrorIs(t, err, dnsres.ErrNoAddresses)

	_, err = r.LookupNetIP(context.Background(), "ip4", "missing.example")
	require.ErrorIs(t, err, dnsres.ErrNoAddresses)

	// Negative answers are not cached.
	require.Equal(t, int32(3), queries.Load())
}

func TestResolver_canceled(t *testing.T) {
	addr, queries := startServer(t)
	r := newResolver(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.LookupNetIP(ctx, "ip", "handler.example")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, queries.Load())
}
