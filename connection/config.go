package connection

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// ProxyPreference controls how the transport reaches the server.
type ProxyPreference int

const (
	// ProxyDisabled dials the server directly
	ProxyDisabled ProxyPreference = iota

	// ProxyEnvironment honors the process's proxy environment variables
	ProxyEnvironment
)

// Config carries the immutable per-connection settings. It is supplied once
// at construction and never mutated by the connection.
type Config struct {
	Host string
	Port uint16

	// Whether a TLS connection is preferred
	UseTLS bool

	Proxy ProxyPreference

	// Allowed TLS 1.2 cipher suites; nil means the implementation default.
	// TLS 1.3 suites are not configurable and always allowed.
	CipherSuites []uint16

	// Restrict TLS 1.2 to ECDHE + AEAD suites
	ModernCiphersOnly bool

	// Optional client identity for mutual TLS
	ClientIdentity *tls.Certificate
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TLSConfig builds the tls.Config for this connection. Certificate
// verification is fully delegated to verifyPeer (the trust verifier's
// callback), which is why the builtin verification is disabled here.
func (c *Config) TLSConfig(verifyPeer func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error) *tls.Config {
	config := &tls.Config{
		ServerName:            c.Host,
		MinVersion:            tls.VersionTLS12,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPeer,
	}

	if c.CipherSuites != nil {
		config.CipherSuites = c.CipherSuites
	} else if c.ModernCiphersOnly {
		config.CipherSuites = ModernCipherSuites()
	}

	if c.ClientIdentity != nil {
		config.Certificates = []tls.Certificate{*c.ClientIdentity}
	}

	return config
}

// ModernCipherSuites returns the TLS 1.2 suites considered acceptable when
// the configuration asks for modern ciphers only: ECDHE key exchange with an
// AEAD cipher.
func ModernCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
}
