package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eshack94/Textual/logger"
)

func TestTrust(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Trust Suite")
}

// generateSelfSigned produces a minimal self-signed server certificate.
// Ed25519 keeps generation cheap enough to run per spec.
func generateSelfSigned(host string) (*x509.Certificate, []byte) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	Expect(err).ToNot(HaveOccurred())

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: host},
		DNSNames:              []string{host},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pubKey, privKey)
	Expect(err).ToNot(HaveOccurred())

	cert, err := x509.ParseCertificate(der)
	Expect(err).ToNot(HaveOccurred())

	return cert, der
}

var _ = Describe("Verifier", func() {
	var verifier *Verifier
	var mockPolicy *MockPolicy

	log := logger.MockLogger(GinkgoWriter)

	BeforeEach(func() {
		mockPolicy = &MockPolicy{}
		mockPolicy.On("Name").Return("mock-policy")
		verifier = NewVerifier(log, mockPolicy)
	})

	Context("Before any handshake", func() {
		It("reports every negotiated value as absent", func() {
			Expect(verifier.Metadata()).To(BeNil())
			Expect(verifier.PeerCertificates()).To(BeNil())

			_, ok := verifier.NegotiatedProtocol()
			Expect(ok).To(BeFalse())
			_, ok = verifier.NegotiatedCipherSuite()
			Expect(ok).To(BeFalse())
			_, ok = verifier.PolicyName()
			Expect(ok).To(BeFalse())
		})
	})

	Context("Verifying a chain", func() {
		var der []byte

		BeforeEach(func() {
			_, der = generateSelfSigned("irc.example.org")
		})

		When("The policy accepts", func() {
			BeforeEach(func() {
				mockPolicy.On("Evaluate").Return(nil)
			})

			It("returns no error and retains the chain", func() {
				err := verifier.VerifyPeerCertificate([][]byte{der}, nil)

				Expect(err).ToNot(HaveOccurred())
				mockPolicy.AssertCalled(GinkgoT(), "Evaluate")

				chain := verifier.PeerCertificates()
				Expect(chain).To(HaveLen(1))
				Expect(chain[0]).To(Equal(der))
			})
		})

		When("The policy rejects", func() {
			rejection := fmt.Errorf("pin mismatch")

			BeforeEach(func() {
				mockPolicy.On("Evaluate").Return(rejection)
			})

			It("propagates the rejection to abort the handshake", func() {
				err := verifier.VerifyPeerCertificate([][]byte{der}, nil)

				Expect(err).To(MatchError(rejection))
			})
		})

		When("The chain is not parseable", func() {
			It("fails without consulting the policy", func() {
				err := verifier.VerifyPeerCertificate([][]byte{{0xde, 0xad, 0xbe, 0xef}}, nil)

				Expect(err).To(HaveOccurred())
				mockPolicy.AssertNotCalled(GinkgoT(), "Evaluate")
			})
		})
	})

	Context("After a recorded handshake", func() {
		BeforeEach(func() {
			verifier.RecordConnectionState(tls.ConnectionState{
				Version:     tls.VersionTLS13,
				CipherSuite: tls.TLS_AES_128_GCM_SHA256,
			})
		})

		It("exposes the negotiated parameters", func() {
			protocol, ok := verifier.NegotiatedProtocol()
			Expect(ok).To(BeTrue())
			Expect(protocol).To(Equal("TLSv1.3"))

			suite, ok := verifier.NegotiatedCipherSuite()
			Expect(ok).To(BeTrue())
			Expect(suite).To(Equal("TLS_AES_128_GCM_SHA256"))

			name, ok := verifier.PolicyName()
			Expect(ok).To(BeTrue())
			Expect(name).To(Equal("mock-policy"))
		})

		It("reports everything absent again after Reset", func() {
			verifier.Reset()

			Expect(verifier.Metadata()).To(BeNil())
			Expect(verifier.PeerCertificates()).To(BeNil())
			_, ok := verifier.PolicyName()
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("Policies", func() {
	Context("PinPolicy", func() {
		var cert *x509.Certificate

		BeforeEach(func() {
			cert, _ = generateSelfSigned("irc.example.org")
		})

		It("accepts a pinned leaf", func() {
			policy := NewPinPolicy([]string{Fingerprint(cert)})
			Expect(policy.Evaluate([]*x509.Certificate{cert})).To(Succeed())
		})

		It("rejects an unpinned leaf", func() {
			policy := NewPinPolicy([]string{"sha256-of-somebody-else"})
			Expect(policy.Evaluate([]*x509.Certificate{cert})).ToNot(Succeed())
		})

		It("rejects an empty chain", func() {
			policy := NewPinPolicy([]string{Fingerprint(cert)})
			Expect(policy.Evaluate(nil)).ToNot(Succeed())
		})
	})

	Context("CAPolicy", func() {
		var cert *x509.Certificate

		BeforeEach(func() {
			cert, _ = generateSelfSigned("irc.example.org")
		})

		It("accepts a chain rooted in the configured pool", func() {
			roots := x509.NewCertPool()
			roots.AddCert(cert)

			policy := NewCAPolicy("irc.example.org", roots)
			Expect(policy.Evaluate([]*x509.Certificate{cert})).To(Succeed())
		})

		It("rejects a chain for the wrong host", func() {
			roots := x509.NewCertPool()
			roots.AddCert(cert)

			policy := NewCAPolicy("irc.evil.example", roots)
			Expect(policy.Evaluate([]*x509.Certificate{cert})).ToNot(Succeed())
		})
	})

	Context("InsecurePolicy", func() {
		It("accepts anything, including an empty chain", func() {
			policy := &InsecurePolicy{}
			Expect(policy.Evaluate(nil)).To(Succeed())
		})
	})
})
