/*
The trust package owns the security-sensitive half of connection setup. The
Verifier intercepts the TLS handshake's certificate verification, retains the
presented chain, and defers the accept/reject verdict to a caller-supplied
Policy. After the handshake it answers queries about the negotiated
parameters; before a successful handshake, or after Reset, every query
reports absent.
*/
package trust

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/eshack94/Textual/logger"
)

// Metadata is the negotiated security of an established TLS connection.
type Metadata struct {
	ProtocolVersion string
	CipherSuite     string
}

// Verifier retains the most recent trust material and delegates the trust
// decision to its policy. The handshake goroutine and callers querying
// negotiated parameters may race, hence the lock.
type Verifier struct {
	logger *logger.Logger
	policy Policy

	mu       sync.Mutex
	rawChain [][]byte
	state    *tls.ConnectionState
}

func NewVerifier(logger *logger.Logger, policy Policy) *Verifier {
	return &Verifier{
		logger: logger,
		policy: policy,
	}
}

// VerifyPeerCertificate is installed as the tls.Config callback. It runs once
// per handshake; each handshake supersedes the previously retained chain.
func (v *Verifier) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	retained := make([][]byte, len(rawCerts))
	chain := make([]*x509.Certificate, len(rawCerts))
	for i, rawCert := range rawCerts {
		cert, err := x509.ParseCertificate(rawCert)
		if err != nil {
			return fmt.Errorf("failed to parse certificate %d of %d: %w", i+1, len(rawCerts), err)
		}
		chain[i] = cert

		retained[i] = make([]byte, len(rawCert))
		copy(retained[i], rawCert)
	}

	v.mu.Lock()
	v.rawChain = retained
	v.state = nil
	v.mu.Unlock()

	if err := v.policy.Evaluate(chain); err != nil {
		v.logger.Errorf("policy %s rejected the certificate chain: %s", v.policy.Name(), err)
		return err
	}

	v.logger.Debugf("policy %s accepted a chain of %d certificates", v.policy.Name(), len(chain))
	return nil
}

// RecordConnectionState is called by the transport once the handshake has
// completed, making the negotiated parameters queryable.
func (v *Verifier) RecordConnectionState(state tls.ConnectionState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = &state
}

// Metadata returns the negotiated protocol version and cipher suite, or nil
// before a successful handshake.
func (v *Verifier) Metadata() *Metadata {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == nil {
		return nil
	}
	return &Metadata{
		ProtocolVersion: protocolVersionName(v.state.Version),
		CipherSuite:     tls.CipherSuiteName(v.state.CipherSuite),
	}
}

func (v *Verifier) NegotiatedProtocol() (string, bool) {
	if metadata := v.Metadata(); metadata != nil {
		return metadata.ProtocolVersion, true
	}
	return "", false
}

func (v *Verifier) NegotiatedCipherSuite() (string, bool) {
	if metadata := v.Metadata(); metadata != nil {
		return metadata.CipherSuite, true
	}
	return "", false
}

// PeerCertificates returns the DER-encoded chain presented during the last
// handshake, leaf first, or nil if no handshake has happened since the last
// Reset.
func (v *Verifier) PeerCertificates() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rawChain == nil {
		return nil
	}
	chain := make([][]byte, len(v.rawChain))
	for i, rawCert := range v.rawChain {
		chain[i] = make([]byte, len(rawCert))
		copy(chain[i], rawCert)
	}
	return chain
}

// PolicyName reports which policy vouched for the connection; absent until a
// handshake has completed.
func (v *Verifier) PolicyName() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == nil {
		return "", false
	}
	return v.policy.Name(), true
}

// Reset clears the retained trust material ahead of the next connection
// attempt.
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rawChain = nil
	v.state = nil
}

func protocolVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLSv1.0"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("unknown (0x%04x)", version)
	}
}
