package connection

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"syscall"
)

// The connection reports failures to its delegate exclusively through the
// three error types below, so calling code never has to match on raw
// transport errors.

// PosixError is a transport-level OS error. Message carries the platform's
// own string for the code.
type PosixError struct {
	Code    syscall.Errno
	Message string
}

func NewPosixError(code syscall.Errno) *PosixError {
	return &PosixError{
		Code:    code,
		Message: code.Error(),
	}
}

func (e *PosixError) Error() string {
	return fmt.Sprintf("posix error %d: %s", int(e.Code), e.Message)
}

func (e *PosixError) Unwrap() error { return e.Code }

// TLSError is a handshake or negotiation failure.
type TLSError struct {
	Reason string
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("tls error: %s", e.Reason)
}

func (e *TLSError) Unwrap() error { return nil }

// GenericError is the fallback for anything the translator does not
// recognize.
type GenericError struct {
	Message string
}

func (e *GenericError) Error() string { return e.Message }

func (e *GenericError) Unwrap() error { return nil }

// Translate maps any transport error into the uniform taxonomy. It is total:
// an unrecognized error still yields a usable GenericError. A nil input stays
// nil so the clean-disconnect path needs no special casing.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	// Already translated errors pass through untouched
	var posixErr *PosixError
	var tlsErr *TLSError
	var genericErr *GenericError
	if errors.As(err, &posixErr) || errors.As(err, &tlsErr) || errors.As(err, &genericErr) {
		return err
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return NewPosixError(errno)
	}

	if isTLSError(err) {
		return &TLSError{Reason: err.Error()}
	}

	return &GenericError{Message: err.Error()}
}

func isTLSError(err error) bool {
	var (
		certVerification *tls.CertificateVerificationError
		recordHeader     tls.RecordHeaderError
		alert            tls.AlertError
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		certInvalid      x509.CertificateInvalidError
	)

	return errors.As(err, &certVerification) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &alert) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &certInvalid)
}
