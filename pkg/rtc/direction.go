// Package rtc implements a user-facing peer connection layer on top of a
// pluggable WebRTC engine. It keeps a collection of transceiver wrappers
// synchronized with the engine across SDP offer/answer rounds, emulates
// transceivers on top of plain senders and receivers when the session uses
// Plan B, and surfaces media tracks and data channels with explicit
// lifecycle events.
package rtc

import (
	"fmt"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

// Direction is the direction of an RTP transceiver, from the point of view
// of the local peer.
type Direction int

const (
	DirectionSendRecv Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
)

// OptionalDirection is a Direction that may additionally be unset, for
// state that does not exist before a first negotiation completes.
type OptionalDirection int

const (
	DirectionNotSet OptionalDirection = iota - 1
	OptionalSendRecv
	OptionalSendOnly
	OptionalRecvOnly
	OptionalInactive
)

// The wrapper enums and the engine enums convert by plain cast, so their
// values must stay aligned. Each index underflows at compile time if the
// two constants ever diverge.
var (
	_ = [1]struct{}{}[int(DirectionSendRecv)-int(engine.DirectionSendRecv)]
	_ = [1]struct{}{}[int(DirectionSendOnly)-int(engine.DirectionSendOnly)]
	_ = [1]struct{}{}[int(DirectionRecvOnly)-int(engine.DirectionRecvOnly)]
	_ = [1]struct{}{}[int(DirectionInactive)-int(engine.DirectionInactive)]
	_ = [1]struct{}{}[int(OptionalSendRecv)-int(DirectionSendRecv)]
	_ = [1]struct{}{}[int(OptionalInactive)-int(DirectionInactive)]
)

// FromSendRecv builds a direction from its two components.
func FromSendRecv(send, recv bool) Direction {
	switch {
	case send && recv:
		return DirectionSendRecv
	case send:
		return DirectionSendOnly
	case recv:
		return DirectionRecvOnly
	}
	return DirectionInactive
}

// OptionalFromSendRecv builds a set optional direction from its two
// components.
func OptionalFromSendRecv(send, recv bool) OptionalDirection {
	return FromSendRecv(send, recv).Opt()
}

// Send reports whether the direction includes a send component.
func (d Direction) Send() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// Recv reports whether the direction includes a receive component.
func (d Direction) Recv() bool {
	return d == DirectionSendRecv || d == DirectionRecvOnly
}

// Reverse returns the direction as seen from the remote peer.
func (d Direction) Reverse() Direction {
	return FromSendRecv(d.Recv(), d.Send())
}

// Intersect restricts the direction by what the remote peer offered, per
// the JSEP answer rules: sending requires the remote to receive and vice
// versa.
func (d Direction) Intersect(remote Direction) Direction {
	return FromSendRecv(d.Send() && remote.Recv(), d.Recv() && remote.Send())
}

// Opt converts the direction into its optional form.
func (d Direction) Opt() OptionalDirection {
	return OptionalDirection(d)
}

func (d Direction) valid() bool {
	return d >= DirectionSendRecv && d <= DirectionInactive
}

func (d Direction) String() string {
	switch d {
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionInactive:
		return "inactive"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Send reports whether the direction is set and includes a send component.
func (d OptionalDirection) Send() bool {
	return d == OptionalSendRecv || d == OptionalSendOnly
}

// Recv reports whether the direction is set and includes a receive
// component.
func (d OptionalDirection) Recv() bool {
	return d == OptionalSendRecv || d == OptionalRecvOnly
}

// IsSet reports whether the direction holds a value.
func (d OptionalDirection) IsSet() bool {
	return d != DirectionNotSet
}

// Direction returns the underlying direction. It must not be called when
// the value is unset.
func (d OptionalDirection) Direction() Direction {
	return Direction(d)
}

func (d OptionalDirection) String() string {
	if d == DirectionNotSet {
		return "notset"
	}
	return Direction(d).String()
}

// NewDirection parses an SDP direction attribute name.
func NewDirection(s string) (Direction, error) {
	switch s {
	case "sendrecv":
		return DirectionSendRecv, nil
	case "sendonly":
		return DirectionSendOnly, nil
	case "recvonly":
		return DirectionRecvOnly, nil
	case "inactive":
		return DirectionInactive, nil
	}
	return DirectionInactive, fmt.Errorf("unknown direction %q: %w", s, ErrInvalidParameter)
}
