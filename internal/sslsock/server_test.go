package sslsock_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/ameshkov/revlistener/internal/route"
	"github.com/ameshkov/revlistener/internal/sslsock"
	"github.com/stretchr/testify/require"
)

const tlsServerName = "handler.example.com"

// countingRoute is a route.Route that counts the sockets it was asked to
// open.
type countingRoute struct {
	route.Route

	calls int
}

// Listen implements the route.Route interface for *countingRoute.
func (r *countingRoute) Listen(network, address string) (l net.Listener, err error) {
	r.calls++

	return r.Route.Listen(network, address)
}

func TestCreate_selfSigned(t *testing.T) {
	type owner struct{ name string }

	s, err := sslsock.Create(&sslsock.Config{
		Host:    "127.0.0.1",
		Port:    0,
		Context: &owner{name: "payload"},
	})
	require.NoError(t, err)

	defer log.OnCloserError(s, log.ERROR)

	require.Equal(t, route.KindDirect, s.Route.Kind)
	require.Equal(t, &owner{name: "payload"}, s.Context)

	state := handshake(t, s, &tls.Config{InsecureSkipVerify: true})
	require.Len(t, state.PeerCertificates, 1)
	require.NotEmpty(t, state.PeerCertificates[0].Subject.CommonName)
}

func TestCreate_certBundle(t *testing.T) {
	bundlePath, certPEM := writePEMBundle(t)

	s, err := sslsock.Create(&sslsock.Config{
		Host:     "127.0.0.1",
		CertPath: bundlePath,
	})
	require.NoError(t, err)

	defer log.OnCloserError(s, log.ERROR)

	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(certPEM))

	state := handshake(t, s, &tls.Config{RootCAs: roots, ServerName: tlsServerName})
	require.Equal(t, tlsServerName, state.PeerCertificates[0].DNSNames[0])
}

func TestCreate_errors(t *testing.T) {
	occupied, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	defer log.OnCloserError(occupied, log.ERROR)

	occupiedPort := uint16(occupied.Addr().(*net.TCPAddr).Port)

	badCert := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(badCert, []byte("not a pem"), 0o600))

	testCases := []struct {
		wantErr   error
		name      string
		host      string
		certPath  string
		port      uint16
		wantCalls int
	}{{
		wantErr:   syscall.EADDRINUSE,
		name:      "address_in_use",
		host:      "127.0.0.1",
		port:      occupiedPort,
		wantCalls: 1,
	}, {
		wantErr:   os.ErrNotExist,
		name:      "missing_cert",
		host:      "127.0.0.1",
		certPath:  filepath.Join(t.TempDir(), "missing.pem"),
		wantCalls: 0,
	}, {
		wantErr:   nil,
		name:      "bad_cert",
		host:      "127.0.0.1",
		certPath:  badCert,
		wantCalls: 0,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &countingRoute{Route: route.Local}

			s, createErr := sslsock.Create(&sslsock.Config{
				Route:    r,
				Host:     tc.host,
				Port:     tc.port,
				CertPath: tc.certPath,
			})
			require.Error(t, createErr)
			require.Nil(t, s)
			require.Equal(t, tc.wantCalls, r.calls)

			var bindErr *sslsock.BindError
			require.True(t, errors.As(createErr, &bindErr))
			require.Equal(t, tc.host, bindErr.Addr)
			require.Equal(t, tc.port, bindErr.Port)

			if tc.wantErr != nil {
				require.ErrorIs(t, createErr, tc.wantErr)
			}
		})
	}
}

// pivot is a route.Pivot that opens the sockets locally.
type pivot struct {
	addrs []string
}

// Listen implements the route.Pivot interface for *pivot.
func (p *pivot) Listen(network, address string) (l net.Listener, err error) {
	p.addrs = append(p.addrs, address)

	return net.Listen(network, address)
}

func TestCreate_tunnel(t *testing.T) {
	p := &pivot{}
	tun := &route.Tunnel{Pivot: p, Type: "meterpreter", SessionID: "2"}

	s, err := sslsock.Create(&sslsock.Config{Route: tun, Host: "127.0.0.1"})
	require.NoError(t, err)

	defer log.OnCloserError(s, log.ERROR)

	require.Equal(t, []string{"127.0.0.1:0"}, p.addrs)
	require.Equal(t, tun.Descriptor(), s.Route)

	// The route itself must still hand out plain sockets.
	plain, err := tun.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, plain.Close())

	_ = handshake(t, s, &tls.Config{InsecureSkipVerify: true})
}

func TestCreate_tunnelWithoutPivot(t *testing.T) {
	s, err := sslsock.Create(&sslsock.Config{
		Route: &route.Tunnel{Type: "meterpreter", SessionID: "3"},
		Host:  "127.0.0.1",
	})
	require.Nil(t, s)

	var bindErr *sslsock.BindError
	require.True(t, errors.As(err, &bindErr))
	require.ErrorIs(t, err, route.ErrNoPivot)
	require.Equal(t, "127.0.0.1", bindErr.Addr)
}

// handshake connects to s, completes the TLS handshake on both sides and
// returns the client-side connection state.
func handshake(t *testing.T, s *sslsock.Server, conf *tls.Config) (state tls.ConnectionState) {
	t.Helper()

	srvErr := make(chan error, 1)
	go func() {
		conn, err := s.Accept()
		if err != nil {
			srvErr <- err

			return
		}

		defer func() { _ = conn.Close() }()

		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		srvErr <- conn.(*tls.Conn).Handshake()
	}()

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", s.Addr().String(), conf)
	require.NoError(t, err)

	defer log.OnCloserError(conn, log.ERROR)

	require.NoError(t, <-srvErr)

	return conn.ConnectionState()
}

// writePEMBundle writes a self-signed certificate and its key into a single
// PEM file and returns the file path and the certificate PEM.
func writePEMBundle(t *testing.T) (path string, certPEM []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	require.NoError(t, err)

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"Revlistener Tests"}},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{tlsServerName},
	}

	derBytes, err := x509.CreateCertificate(
		rand.Reader,
		&template,
		&template,
		&privateKey.PublicKey,
		privateKey,
	)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	path = filepath.Join(t.TempDir(), "handler.pem")
	err = os.WriteFile(path, append(keyPEM, certPEM...), 0o600)
	require.NoError(t, err)

	return path, certPEM
}
