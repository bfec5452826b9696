package rtc

import "errors"

// Sentinel errors returned by the peer connection layer. Errors wrapping an
// engine failure keep the sentinel as their innermost cause so callers can
// test with errors.Is.
var (
	// ErrPeerConnectionClosed is returned by every operation once Close
	// has been called.
	ErrPeerConnectionClosed = errors.New("peer connection closed")

	// ErrInvalidParameter is returned when an argument is out of range or
	// malformed.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidOperation is returned when the call is well-formed but not
	// allowed in the current state.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound is returned when a lookup names an object the peer
	// connection does not hold.
	ErrNotFound = errors.New("not found")

	// ErrUnsupported is returned when the operation is not available under
	// the session's SDP semantics.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrSCTPNotNegotiated is returned when a data channel is requested
	// after a first negotiation completed without any SCTP section.
	ErrSCTPNotNegotiated = errors.New("sctp not negotiated")
)
