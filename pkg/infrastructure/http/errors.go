package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// FetchError is a transport failure. Its message ends with a parenthesized
// failure class when one could be determined, except for timeouts which read
// "timed out after <timeout>".
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func statusError(code int) *FetchError {
	text := http.StatusText(code)
	if text == "" {
		text = "Unknown"
	}
	return &FetchError{Message: fmt.Sprintf("HTTP status code %d (%s)", code, text)}
}

// describe turns a net/http error into a FetchError
func (t *Transport) describe(err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}

	if isTimeout(err) {
		return &FetchError{Message: fmt.Sprintf("timed out after %s", t.config.Timeout), Err: err}
	}

	// url.Error repeats the method and URL, keep the cause only
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}

	message := cause.Error()
	if code := failureClass(err); code != "" {
		message = fmt.Sprintf("%s (%s)", message, code)
	}
	return &FetchError{Message: message, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// failureClass maps an error onto a stable reason code
func failureClass(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return "EAI_AGAIN"
		}
		return "ENOTFOUND"
	}

	switch {
	case errors.Is(err, errTooManyRedirects):
		return "TOO_MANY_REDIRECTS"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.EHOSTUNREACH):
		return "EHOSTUNREACH"
	case errors.Is(err, syscall.ENETUNREACH):
		return "ENETUNREACH"
	case errors.Is(err, context.Canceled):
		return "ECANCELED"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "EOF"
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &unknownCA), errors.As(err, &hostnameErr), errors.As(err, &invalidErr):
		return "CERT_INVALID"
	case errors.As(err, &recordErr), errors.As(err, &alertErr), strings.Contains(err.Error(), "tls: "):
		return "TLS_HANDSHAKE"
	}
	return ""
}
