package sslsock

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"time"
)

// selfSignedValidity is the validity period of the generated certificate.
const selfSignedValidity = 365 * 24 * time.Hour

// loadPEMBundle reads a certificate with its private key from a single file
// in unified PEM format.  The certificate may be followed by intermediate
// certificates.
func loadPEMBundle(path string) (cert tls.Certificate, err error) {
	// #nosec G304 -- Trust the file path that is given in the configuration.
	b, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, err
	}

	// tls.X509KeyPair skips the blocks of the wrong type in both arguments so
	// passing the whole bundle twice works.
	cert, err = tls.X509KeyPair(b, b)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cert, nil
}

// newSelfSignedCert generates a throwaway self-signed certificate for
// listeners that were not given one.
func newSelfSignedCert() (cert tls.Certificate, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating serial number: %w", err)
	}

	notBefore := time.Now().Add(-time.Hour)
	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: randomName()},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("creating certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}

// randomName returns a random lowercase host-like name so that generated
// certificates do not share a common subject.
func randomName() (name string) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"

	b := make([]byte, 12)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}

	return string(b[:8]) + "." + string(b[8:]) + ".net"
}
