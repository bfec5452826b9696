// Package engine defines the boundary between the user-facing negotiation
// layer and the WebRTC engine that actually implements sessions. Any engine
// (a native binding, a remote bridge, or the in-process emulation under
// pkg/mock) is plugged in by implementing Factory and the interfaces it
// hands out.
//
// All methods on PeerConnection are synchronous. Observer methods are
// invoked serially on a single signaling goroutine owned by the engine;
// implementations must not call back into the engine from an observer
// method while holding locks that engine calls may need.
package engine

import "github.com/pion/webrtc/v3"

// SdpSemantics selects the SDP dialect a peer connection negotiates with.
type SdpSemantics int

const (
	// SdpSemanticsUnifiedPlan is the standard dialect, one m-line per
	// transceiver.
	SdpSemanticsUnifiedPlan SdpSemantics = iota
	// SdpSemanticsPlanB is the legacy dialect, one m-line per media kind
	// with senders and receivers managed directly.
	SdpSemanticsPlanB
)

func (s SdpSemantics) String() string {
	switch s {
	case SdpSemanticsUnifiedPlan:
		return "unified-plan"
	case SdpSemanticsPlanB:
		return "plan-b"
	}
	return "unknown"
}

// MediaKind is the kind of media an RTP endpoint carries.
type MediaKind int

const (
	MediaKindAudio MediaKind = iota
	MediaKindVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindAudio:
		return "audio"
	case MediaKindVideo:
		return "video"
	}
	return "unknown"
}

// Direction is an RTP transceiver direction. The values follow the SDP
// direction attributes.
type Direction int

const (
	DirectionSendRecv Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
)

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
	return "unknown"
}

// Send reports whether the direction includes a send component.
func (d Direction) Send() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// Recv reports whether the direction includes a receive component.
func (d Direction) Recv() bool {
	return d == DirectionSendRecv || d == DirectionRecvOnly
}

// SignalingState mirrors the JSEP signaling state machine.
type SignalingState int

const (
	SignalingStateStable SignalingState = iota
	SignalingStateHaveLocalOffer
	SignalingStateHaveLocalPranswer
	SignalingStateHaveRemoteOffer
	SignalingStateHaveRemotePranswer
	SignalingStateClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStateStable:
		return "stable"
	case SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case SignalingStateHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingStateHaveRemotePranswer:
		return "have-remote-pranswer"
	case SignalingStateClosed:
		return "closed"
	}
	return "unknown"
}

// IceState is the ICE connection state of a peer connection.
type IceState int

const (
	IceStateNew IceState = iota
	IceStateChecking
	IceStateConnected
	IceStateCompleted
	IceStateFailed
	IceStateDisconnected
	IceStateClosed
)

func (s IceState) String() string {
	switch s {
	case IceStateNew:
		return "new"
	case IceStateChecking:
		return "checking"
	case IceStateConnected:
		return "connected"
	case IceStateCompleted:
		return "completed"
	case IceStateFailed:
		return "failed"
	case IceStateDisconnected:
		return "disconnected"
	case IceStateClosed:
		return "closed"
	}
	return "unknown"
}

// DataChannelState is the lifecycle state of a data channel.
type DataChannelState int

const (
	DataChannelConnecting DataChannelState = iota
	DataChannelOpen
	DataChannelClosing
	DataChannelClosed
)

func (s DataChannelState) String() string {
	switch s {
	case DataChannelConnecting:
		return "connecting"
	case DataChannelOpen:
		return "open"
	case DataChannelClosing:
		return "closing"
	case DataChannelClosed:
		return "closed"
	}
	return "unknown"
}

// Config configures a new engine peer connection.
type Config struct {
	SdpSemantics SdpSemantics
	ICEServers   []webrtc.ICEServer
}

// OfferOptions carries the legacy receive hints a Plan B offer needs. Both
// flags are ignored under Unified Plan where transceivers express intent.
type OfferOptions struct {
	OfferToReceiveAudio bool
	OfferToReceiveVideo bool
}

// TransceiverInit seeds a transceiver added through AddTransceiver.
type TransceiverInit struct {
	Direction Direction
	StreamIDs []string
}

// DataChannelInit configures a new data channel. When Negotiated is set the
// channel is bound out-of-band to ID and no in-band open handshake runs.
type DataChannelInit struct {
	Ordered    bool
	Reliable   bool
	Negotiated bool
	ID         int
}

// Observer receives engine events. The engine delivers all calls serially
// on its signaling goroutine, in the order the events occurred.
type Observer interface {
	OnSignalingChange(state SignalingState)
	OnRenegotiationNeeded()
	OnAddTrack(receiver RTPReceiver, streamIDs []string)
	OnRemoveTrack(receiver RTPReceiver)
	OnDataChannel(channel DataChannel)
	OnIceCandidate(candidate webrtc.ICECandidateInit)
	OnIceStateChange(state IceState)
}

// Factory creates peer connections and media tracks for one engine
// instance. Closing the factory stops the signaling goroutine; no observer
// method is invoked afterwards.
type Factory interface {
	CreatePeerConnection(cfg Config, observer Observer) (PeerConnection, error)
	CreateAudioTrack(trackID string) (LocalMediaTrack, error)
	CreateVideoTrack(trackID string) (LocalMediaTrack, error)
	Close() error
}

// PeerConnection is a single engine-side session.
//
// AddTransceiver, GetTransceivers and RTPTransceiver methods are only
// meaningful under Unified Plan; CreateSender and RemoveSender only under
// Plan B.
type PeerConnection interface {
	CreateOffer(opts OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddIceCandidate(candidate webrtc.ICECandidateInit) error

	AddTransceiver(kind MediaKind, init TransceiverInit) (RTPTransceiver, error)
	GetTransceivers() []RTPTransceiver

	CreateSender(kind MediaKind, streamID string) (RTPSender, error)
	RemoveSender(sender RTPSender) error

	CreateDataChannel(label string, init DataChannelInit) (DataChannel, error)

	SignalingState() SignalingState
	Close() error
}

// RTPTransceiver is an engine transceiver under Unified Plan.
type RTPTransceiver interface {
	// Mid returns the negotiated media ID, or "" before association.
	Mid() string
	// MlineIndex returns the index of the m-line the transceiver is
	// associated with, or -1 before association.
	MlineIndex() int
	MediaKind() MediaKind
	// Direction returns the desired direction.
	Direction() Direction
	SetDirection(d Direction) error
	// CurrentDirection returns the negotiated direction. The second value
	// is false until a first negotiation completes.
	CurrentDirection() (Direction, bool)
	Sender() RTPSender
	Receiver() RTPReceiver
}

// RTPSender sends one local media track.
type RTPSender interface {
	SetTrack(track LocalMediaTrack) error
	Track() LocalMediaTrack
}

// RTPReceiver receives one remote media track.
type RTPReceiver interface {
	Track() RemoteMediaTrack
	MediaKind() MediaKind
	// StreamIDs returns the media stream IDs announced for the receiver.
	StreamIDs() []string
}

// DataChannel is an engine data channel. Message and state callbacks are
// delivered on the engine signaling goroutine.
type DataChannel interface {
	Label() string
	// ID returns the SCTP stream ID, or -1 while an in-band channel is
	// still waiting for assignment.
	ID() int
	Ordered() bool
	Reliable() bool
	State() DataChannelState
	Send(payload []byte, binary bool) error
	OnMessage(fn func(payload []byte, binary bool))
	OnStateChange(fn func(state DataChannelState))
	Close() error
}
