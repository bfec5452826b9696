package rtc

import "github.com/mrsw/go-webrtc-interop/pkg/engine"

// TransceiverStateUpdatedReason says which operation caused a transceiver
// state update.
type TransceiverStateUpdatedReason int

const (
	// ReasonLocalDescription marks updates caused by applying a local
	// session description.
	ReasonLocalDescription TransceiverStateUpdatedReason = iota
	// ReasonRemoteDescription marks updates caused by applying a remote
	// session description.
	ReasonRemoteDescription
	// ReasonSetDirection marks updates caused by a local SetDirection
	// call.
	ReasonSetDirection
)

func (r TransceiverStateUpdatedReason) String() string {
	switch r {
	case ReasonLocalDescription:
		return "LocalDescription"
	case ReasonRemoteDescription:
		return "RemoteDescription"
	case ReasonSetDirection:
		return "SetDirection"
	}
	return "Unknown"
}

// TransceiverAddedEvent announces a transceiver that just entered the peer
// connection's collection, whether created locally or discovered while
// applying a session description.
type TransceiverAddedEvent struct {
	Transceiver *Transceiver
	Name        string
	MediaKind   engine.MediaKind
	// MlineIndex is the media line the transceiver is associated with, or
	// -1 while it awaits association.
	MlineIndex int
	// EncodedStreamIDs is the semicolon-joined list of stream IDs the
	// transceiver was created with.
	EncodedStreamIDs string
	DesiredDirection Direction
}

// TransceiverStateUpdatedEvent reports a change of a transceiver's desired
// or negotiated direction.
type TransceiverStateUpdatedEvent struct {
	Transceiver         *Transceiver
	Reason              TransceiverStateUpdatedReason
	NegotiatedDirection OptionalDirection
	DesiredDirection    Direction
}

// TrackAddedEvent announces a new remote track paired with the transceiver
// receiving it.
type TrackAddedEvent struct {
	Track       *RemoteTrack
	Transceiver *Transceiver
}

// TrackRemovedEvent announces a remote track that stopped receiving.
type TrackRemovedEvent struct {
	Track       *RemoteTrack
	Transceiver *Transceiver
}
