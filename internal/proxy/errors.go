package proxy

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies forwarding failures.
type ErrorKind int

const (
	// KindTransport covers dial, DNS, TLS, timeout and refused connections.
	// There is no status to relay, so the client connection is closed.
	KindTransport ErrorKind = iota
	// KindProtocol covers an upstream that answered but broke off mid-body.
	KindProtocol
)

// String returns the metric label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// UpstreamError is returned by Forward when the upstream exchange fails.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Reason     string
	Err        error
}

func newTransportError(err error) *UpstreamError {
	return &UpstreamError{Kind: KindTransport, Err: err}
}

func newProtocolError(err error) *UpstreamError {
	return &UpstreamError{
		Kind:       KindProtocol,
		StatusCode: http.StatusBadGateway,
		Reason:     http.StatusText(http.StatusBadGateway),
		Err:        err,
	}
}

func (e *UpstreamError) Error() string {
	if e.HasStatus() {
		return fmt.Sprintf("upstream %s error (%d %s): %v", e.Kind, e.StatusCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream %s error: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HasStatus reports whether the error carries a status that can be relayed.
func (e *UpstreamError) HasStatus() bool {
	return e.StatusCode > 0
}
