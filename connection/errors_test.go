package connection

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Connection Errors Suite")
}

var _ = Describe("Translate", func() {
	Context("POSIX errors", func() {
		When("Given a bare errno", func() {
			It("produces a PosixError carrying the platform string", func() {
				translated := Translate(syscall.ECONNRESET)

				posixErr, ok := translated.(*PosixError)
				Expect(ok).To(BeTrue(), "expected a PosixError, got %T", translated)
				Expect(posixErr.Code).To(Equal(syscall.ECONNRESET))
				Expect(posixErr.Message).To(Equal(syscall.ECONNRESET.Error()))
			})
		})

		When("The errno is buried in a net.OpError chain", func() {
			It("still finds it", func() {
				wrapped := &net.OpError{
					Op:  "read",
					Net: "tcp",
					Err: os.NewSyscallError("read", syscall.ECONNREFUSED),
				}

				translated := Translate(wrapped)

				posixErr, ok := translated.(*PosixError)
				Expect(ok).To(BeTrue(), "expected a PosixError, got %T", translated)
				Expect(posixErr.Code).To(Equal(syscall.ECONNREFUSED))
			})
		})
	})

	Context("TLS errors", func() {
		When("Given a record header error", func() {
			It("produces a TLSError with a readable reason", func() {
				recordErr := tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}

				translated := Translate(recordErr)

				tlsErr, ok := translated.(*TLSError)
				Expect(ok).To(BeTrue(), "expected a TLSError, got %T", translated)
				Expect(tlsErr.Reason).To(ContainSubstring("does not look like a TLS handshake"))
			})
		})

		When("Given a certificate verification failure", func() {
			It("produces a TLSError", func() {
				verifyErr := &tls.CertificateVerificationError{
					Err: fmt.Errorf("certificate signed by unknown authority"),
				}

				translated := Translate(verifyErr)

				_, ok := translated.(*TLSError)
				Expect(ok).To(BeTrue(), "expected a TLSError, got %T", translated)
			})
		})
	})

	Context("Everything else", func() {
		It("falls back to a GenericError wrapping the description", func() {
			translated := Translate(fmt.Errorf("the server went on holiday"))

			genericErr, ok := translated.(*GenericError)
			Expect(ok).To(BeTrue(), "expected a GenericError, got %T", translated)
			Expect(genericErr.Message).To(Equal("the server went on holiday"))
		})

		It("is total and never panics on weird inputs", func() {
			Expect(Translate(nil)).To(BeNil())
		})

		It("passes already-translated errors through unchanged", func() {
			original := NewPosixError(syscall.EPIPE)

			Expect(Translate(original)).To(BeIdenticalTo(original))
		})
	})
})
