package trust

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// Policy is the caller-supplied verdict on a presented certificate chain.
// Evaluate returns nil to accept the chain; any error rejects it and aborts
// the handshake. Implementations must return promptly.
type Policy interface {
	Name() string
	Evaluate(chain []*x509.Certificate) error
}

// CAPolicy validates the chain against a root pool and checks the leaf
// against the expected server name. A nil pool means the system roots.
type CAPolicy struct {
	ServerName string
	Roots      *x509.CertPool
}

func NewCAPolicy(serverName string, roots *x509.CertPool) *CAPolicy {
	return &CAPolicy{
		ServerName: serverName,
		Roots:      roots,
	}
}

func (p *CAPolicy) Name() string { return "certificate-authority" }

func (p *CAPolicy) Evaluate(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return fmt.Errorf("server presented an empty certificate chain")
	}

	roots := p.Roots
	if roots == nil {
		systemRoots, err := x509.SystemCertPool()
		if err != nil {
			return fmt.Errorf("failed to load system roots: %w", err)
		}
		roots = systemRoots
	}

	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	_, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       p.ServerName,
		Roots:         roots,
		Intermediates: intermediates,
	})
	return err
}

// PinPolicy accepts a chain whose leaf public key matches one of the
// configured pins. Pins are base64-encoded SHA-256 digests of the leaf's
// SubjectPublicKeyInfo, the same shape HPKP used.
type PinPolicy struct {
	pins map[string]struct{}
}

func NewPinPolicy(pins []string) *PinPolicy {
	pinSet := make(map[string]struct{}, len(pins))
	for _, pin := range pins {
		pinSet[pin] = struct{}{}
	}
	return &PinPolicy{pins: pinSet}
}

func (p *PinPolicy) Name() string { return "public-key-pin" }

func (p *PinPolicy) Evaluate(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return fmt.Errorf("server presented an empty certificate chain")
	}

	if _, ok := p.pins[Fingerprint(chain[0])]; !ok {
		return fmt.Errorf("leaf certificate matches none of the %d configured pins", len(p.pins))
	}
	return nil
}

// Fingerprint computes the pin for a certificate.
func Fingerprint(cert *x509.Certificate) string {
	digest := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(digest[:])
}

// InsecurePolicy accepts any chain. It exists for tests and for an explicit
// user override after a trust prompt; never use it as a default.
type InsecurePolicy struct{}

func (p *InsecurePolicy) Name() string { return "insecure-accept-all" }

func (p *InsecurePolicy) Evaluate(chain []*x509.Certificate) error { return nil }
