package http

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	utls "github.com/refraction-networking/utls"
)

// TLSFingerprinter dials TLS connections with a browser-like ClientHello.
//
// Only hellos that advertise no ALPN are usable: net/http speaks HTTP/1.1 over
// a custom dialer and cannot follow a server that negotiates h2.
type TLSFingerprinter struct {
	ClientID utls.ClientHelloID
	RootCAs  *x509.CertPool
	Timeout  time.Duration
}

// NewTLSFingerprinter returns a fingerprinter using a randomized hello
func NewTLSFingerprinter() *TLSFingerprinter {
	return &TLSFingerprinter{
		ClientID: utls.HelloRandomizedNoALPN,
		Timeout:  10 * time.Second,
	}
}

// DialTLSContext matches http.Transport.DialTLSContext
func (tf *TLSFingerprinter) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", addr, err)
	}

	dialer := &net.Dialer{Timeout: tf.Timeout}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	conn := utls.UClient(raw, &utls.Config{
		ServerName: host,
		RootCAs:    tf.RootCAs,
		MinVersion: utls.VersionTLS12,
	}, tf.ClientID)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	return conn, nil
}
