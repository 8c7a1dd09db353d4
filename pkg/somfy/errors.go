package somfy

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Sentinel errors for gateway requests, one per failure kind.
//
// Every error returned by Execute matches exactly one of these:
//
//	if errors.Is(err, somfy.ErrAuth) {
//	    // prompt for a new API key
//	}
var (
	// ErrTransport indicates the request never produced an HTTP response
	// (DNS, connect, reset, cancelled context).
	ErrTransport = errors.New("somfy: transport failure")

	// ErrStatus indicates a non-2xx status outside the classified ranges.
	ErrStatus = errors.New("somfy: unexpected status")

	// ErrAuth indicates the gateway rejected the API key (401/403).
	ErrAuth = errors.New("somfy: authentication failed")

	// ErrNotFound indicates the addressed resource does not exist.
	ErrNotFound = errors.New("somfy: not found")

	// ErrInvalidRequest indicates any other 4xx response.
	ErrInvalidRequest = errors.New("somfy: invalid request")

	// ErrServer indicates a 5xx response or an unexpected local failure
	// such as an unusable header value.
	ErrServer = errors.New("somfy: server error")

	// ErrCert indicates the trust certificate could not be obtained or the
	// TLS handshake failed to verify the gateway.
	ErrCert = errors.New("somfy: certificate error")

	// ErrBody indicates the response body did not match the expected shape.
	ErrBody = errors.New("somfy: invalid response body")
)

// Kind classifies a RequestError.
type Kind int

// Failure kinds. Callers usually want errors.Is with the matching sentinel.
const (
	KindTransport Kind = iota
	KindStatus
	KindAuth
	KindNotFound
	KindInvalidRequest
	KindServer
	KindCert
	KindBody
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindServer:
		return "server"
	case KindCert:
		return "cert"
	case KindBody:
		return "body"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindStatus:
		return ErrStatus
	case KindAuth:
		return ErrAuth
	case KindNotFound:
		return ErrNotFound
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindServer:
		return ErrServer
	case KindCert:
		return ErrCert
	case KindBody:
		return ErrBody
	default:
		return nil
	}
}

// RequestError is the error type returned by the execution engine.
//
// StatusCode is zero when no HTTP response was received. Err holds the
// underlying cause, if any.
type RequestError struct {
	Kind       Kind
	StatusCode int
	Op         string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.sentinel().Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *RequestError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err and true if err is, or wraps, a RequestError.
func KindOf(err error) (Kind, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

func newError(kind Kind, op string, err error) *RequestError {
	return &RequestError{Kind: kind, Op: op, Err: err}
}

// BodyError wraps a decoding failure as an ErrBody RequestError.
// Custom commands use it from ParseResponse.
func BodyError(err error) error {
	return newError(KindBody, "decoding response", err)
}

// NotFoundError reports that a syntactically valid body denotes a missing
// resource.
func NotFoundError(reason string) error {
	return newError(KindNotFound, reason, nil)
}

// classifyStatus maps an HTTP status code to an error, or nil for 2xx.
func classifyStatus(code int) error {
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	var kind Kind
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = KindAuth
	case code == http.StatusNotFound:
		kind = KindNotFound
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		kind = KindInvalidRequest
	case code >= http.StatusInternalServerError:
		kind = KindServer
	default:
		kind = KindStatus
	}

	return &RequestError{Kind: kind, StatusCode: code, Op: "gateway response"}
}

// certMarkers are substrings that identify trust failures in transport
// errors which do not surface a typed TLS error.
var certMarkers = []string{"certificate", "x509", "tls", "ssl"}

// classifyTransport maps an error returned before any HTTP status was
// available to either a certificate or a transport failure.
func classifyTransport(err error) error {
	if isCertFailure(err) {
		return newError(KindCert, "tls handshake", err)
	}
	return newError(KindTransport, "sending request", err)
}

func isCertFailure(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		recordHeader tls.RecordHeaderError
	)
	if errors.As(err, &verifyErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) || errors.As(err, &invalidCert) ||
		errors.As(err, &recordHeader) {
		return true
	}

	// The request URL carries caller input, so only the cause of a
	// *url.Error is scanned.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		for _, marker := range certMarkers {
			if strings.Contains(msg, marker) {
				return true
			}
		}
	}
	return false
}
