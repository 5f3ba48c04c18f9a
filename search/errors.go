package search

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

var (
	// ErrUpdateTimeout is returned when an update is not processed within the wait deadline.
	ErrUpdateTimeout = errors.New("timeout waiting for update")
)

// ErrHTTP is a wrapper on http status codes, with engine error details when provided.
type ErrHTTP struct {
	StatusCode int
	Message    string `json:"message"`
	Code       string `json:"errorCode"`
	Type       string `json:"errorType"`
}

func (e ErrHTTP) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return http.StatusText(e.StatusCode) + ": " + e.Message
}

// Temporary tells whether the same request may succeed later.
func (e ErrHTTP) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// UpdateError is a processed update, rejected by the engine.
type UpdateError struct {
	Index    string
	UpdateID UpdateID
	Message  string
	Code     string
}

func (e *UpdateError) Error() string {
	msg := "[" + e.Index + "] update failed"
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var herr ErrHTTP
	return errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound
}

// IsTemporary tells whether an operation that failed with err is worth retrying:
// network errors and throttling or server side HTTP errors are; rejected requests,
// failed updates and canceled contexts are not.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUpdateTimeout) {
		return false
	}

	var herr ErrHTTP
	if errors.As(err, &herr) {
		return herr.Temporary()
	}
	var uerr *UpdateError
	if errors.As(err, &uerr) {
		return false
	}

	return isTransient(err)
}

// isTransient tells apart connection failures, which may go away, from TLS
// verification failures and other transport errors, which will not.
func isTransient(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostname         x509.HostnameError
		recordHeader     tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &invalidCert) ||
		errors.As(err, &hostname) || errors.As(err, &recordHeader) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// connection closed by the server before the response
	var urlErr *url.Error
	return errors.As(err, &urlErr) && (errors.Is(urlErr.Err, io.EOF) || errors.Is(urlErr.Err, io.ErrUnexpectedEOF))
}
