package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
	"github.com/mrsw/go-webrtc-interop/pkg/sdputil"
	"github.com/mrsw/go-webrtc-interop/pkg/utils"
)

// Config configures a peer connection.
type Config struct {
	// Name tags the connection in logs. Defaults to "peer".
	Name string
	// SdpSemantics selects the SDP dialect. The zero value is Unified
	// Plan.
	SdpSemantics engine.SdpSemantics
	ICEServers   []webrtc.ICEServer
}

// TransceiverInit seeds a transceiver created with AddTransceiver. The zero
// value asks for a send and receive transceiver with a random name and no
// stream IDs.
type TransceiverInit struct {
	Name             string
	StreamIDs        []string
	DesiredDirection Direction
}

// PeerConnection wraps one engine session behind a transceiver-based API
// that behaves identically under Unified Plan and Plan B.
//
// Methods are safe for concurrent use. Event callbacks run either on the
// engine signaling goroutine or on the goroutine that called the operation
// that produced the event; callbacks must not block and may call back into
// the peer connection.
type PeerConnection struct {
	name    string
	sem     engine.SdpSemantics
	factory engine.Factory
	peer    engine.PeerConnection
	log     *logrus.Entry
	closed  *abool.AtomicBool

	mu           sync.Mutex
	transceivers []*Transceiver

	dcMu           sync.Mutex
	dataChannels   []*DataChannel
	sctpNegotiated bool

	localDescMu sync.Mutex
	onLocalDesc func(desc webrtc.SessionDescription)

	iceCandMu      sync.Mutex
	onIceCandidate func(candidate webrtc.ICECandidateInit)

	iceStateMu        sync.Mutex
	onIceStateChanged func(state engine.IceState)

	signalingMu        sync.Mutex
	onSignalingChanged func(state engine.SignalingState)

	connectedMu sync.Mutex
	onConnected func()

	renegMu             sync.Mutex
	onRenegotiationNeed func()

	trAddedMu           sync.Mutex
	onTransceiverAdded  func(ev TransceiverAddedEvent)
	trUpdatedMu         sync.Mutex
	onTransceiverUpdate func(ev TransceiverStateUpdatedEvent)

	trackAddedMu   sync.Mutex
	onTrackAdded   func(ev TrackAddedEvent)
	trackRemovedMu sync.Mutex
	onTrackRemoved func(ev TrackRemovedEvent)

	dcAddedMu        sync.Mutex
	onDataChannelAdd func(dc *DataChannel)
	dcRemovedMu      sync.Mutex
	onDataChannelRem func(dc *DataChannel)
}

// NewPeerConnection creates a peer connection on the given engine.
func NewPeerConnection(factory engine.Factory, cfg Config) (*PeerConnection, error) {
	if factory == nil {
		return nil, fmt.Errorf("nil engine factory: %w", ErrInvalidParameter)
	}
	name := cfg.Name
	if name == "" {
		name = "peer"
	}
	pc := &PeerConnection{
		name:    name,
		sem:     cfg.SdpSemantics,
		factory: factory,
		log:     utils.NewLogger("rtc").WithField("peer", name),
		closed:  abool.New(),
		// A fresh connection may create data channels; the latch only
		// drops once a negotiation completes without SCTP.
		sctpNegotiated: true,
	}
	peer, err := factory.CreatePeerConnection(engine.Config{
		SdpSemantics: cfg.SdpSemantics,
		ICEServers:   cfg.ICEServers,
	}, &engineObserver{pc: pc})
	if err != nil {
		return nil, fmt.Errorf("create engine peer connection: %w", err)
	}
	pc.peer = peer
	pc.log.WithField("semantics", cfg.SdpSemantics).Info("peer connection created")
	return pc, nil
}

// Name returns the configured connection name.
func (pc *PeerConnection) Name() string {
	return pc.name
}

// SdpSemantics returns the SDP dialect the connection negotiates with.
func (pc *PeerConnection) SdpSemantics() engine.SdpSemantics {
	return pc.sem
}

// Engine returns the underlying engine session, for engine-specific
// plumbing such as wiring two emulated connections together.
func (pc *PeerConnection) Engine() engine.PeerConnection {
	return pc.peer
}

// SignalingState returns the JSEP signaling state.
func (pc *PeerConnection) SignalingState() engine.SignalingState {
	if pc.closed.IsSet() {
		return engine.SignalingStateClosed
	}
	return pc.peer.SignalingState()
}

// AddTransceiver adds a transceiver for the given media kind. The
// transceiver added event fires before the call returns, and a
// renegotiation is requested under Plan B where the engine cannot notice
// the change itself.
func (pc *PeerConnection) AddTransceiver(kind engine.MediaKind, init TransceiverInit) (*Transceiver, error) {
	if pc.closed.IsSet() {
		return nil, ErrPeerConnectionClosed
	}
	if kind != engine.MediaKindAudio && kind != engine.MediaKindVideo {
		return nil, fmt.Errorf("unknown media kind %d: %w", int(kind), ErrInvalidParameter)
	}
	if !init.DesiredDirection.valid() {
		return nil, fmt.Errorf("unknown direction %d: %w", int(init.DesiredDirection), ErrInvalidParameter)
	}
	name := init.Name
	if name == "" {
		name = sdputil.RandomToken()
	} else if !sdputil.IsValidToken(name) {
		return nil, fmt.Errorf("transceiver name %q is not a valid SDP token: %w", name, ErrInvalidParameter)
	}
	streamIDs := append([]string(nil), init.StreamIDs...)

	var tr *Transceiver
	switch pc.sem {
	case engine.SdpSemanticsPlanB:
		tr = newPlanBTransceiver(pc, kind, -1, name, streamIDs, init.DesiredDirection)
	default:
		impl, err := pc.peer.AddTransceiver(kind, engine.TransceiverInit{
			Direction: engine.Direction(init.DesiredDirection),
			StreamIDs: streamIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("engine add transceiver: %w", err)
		}
		tr = newUnifiedTransceiver(pc, kind, impl.MlineIndex(), name, streamIDs, impl, init.DesiredDirection)
	}

	pc.mu.Lock()
	pc.transceivers = append(pc.transceivers, tr)
	pc.mu.Unlock()

	pc.log.WithFields(logrus.Fields{"name": name, "kind": kind, "direction": init.DesiredDirection}).
		Debug("transceiver added")
	if pc.sem == engine.SdpSemanticsPlanB {
		pc.fireRenegotiationNeeded()
	}
	pc.fireTransceiverAdded(TransceiverAddedEvent{
		Transceiver:      tr,
		Name:             name,
		MediaKind:        kind,
		MlineIndex:       tr.MlineIndex(),
		EncodedStreamIDs: encodeStreamIDs(streamIDs),
		DesiredDirection: init.DesiredDirection,
	})
	return tr, nil
}

// Transceivers returns a snapshot of the transceiver collection in the
// order the transceivers were added.
func (pc *PeerConnection) Transceivers() []*Transceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]*Transceiver(nil), pc.transceivers...)
}

// CreateOffer creates an offer, applies it as the local description and
// returns it. Under Plan B the engine senders are first synchronized with
// the desired directions, and the offer asks to receive a media kind if
// any transceiver of that kind wants to receive.
func (pc *PeerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	if pc.closed.IsSet() {
		return webrtc.SessionDescription{}, ErrPeerConnectionClosed
	}
	pc.dropSCTPLatchIfUnused()

	var opts engine.OfferOptions
	if pc.sem == engine.SdpSemanticsPlanB {
		for i, tr := range pc.Transceivers() {
			desired := tr.prepareOfferPlanB(i)
			if desired.Recv() {
				switch tr.MediaKind() {
				case engine.MediaKindAudio:
					opts.OfferToReceiveAudio = true
				case engine.MediaKindVideo:
					opts.OfferToReceiveVideo = true
				}
			}
		}
	}
	desc, err := pc.peer.CreateOffer(opts)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	return pc.applyLocalDescription(desc)
}

// CreateAnswer creates an answer to the pending remote offer, applies it
// as the local description and returns it. Under Plan B the engine senders
// are synchronized with the desired directions first, so a direction
// change made while answering takes effect in the same round.
func (pc *PeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	if pc.closed.IsSet() {
		return webrtc.SessionDescription{}, ErrPeerConnectionClosed
	}
	if pc.sem == engine.SdpSemanticsPlanB {
		for i, tr := range pc.Transceivers() {
			tr.prepareOfferPlanB(i)
		}
	}
	desc, err := pc.peer.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return pc.applyLocalDescription(desc)
}

func (pc *PeerConnection) applyLocalDescription(desc webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := pc.peer.SetLocalDescription(desc); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	if pc.sem == engine.SdpSemanticsUnifiedPlan {
		pc.synchronizeTransceiversUnifiedPlan(false)
	}
	pc.log.WithFields(logrus.Fields{"type": desc.Type, "media": sdputil.Summarize(desc.SDP)}).
		Debug("local description applied")
	pc.fireLocalDescription(desc)
	return desc, nil
}

// SetRemoteDescription applies a description received from the remote
// peer. Transceiver wrappers are synchronized with the engine before the
// call returns; remote tracks are announced asynchronously through the
// track added callback.
func (pc *PeerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if pc.closed.IsSet() {
		return ErrPeerConnectionClosed
	}
	if desc.SDP == "" {
		return fmt.Errorf("empty session description: %w", ErrInvalidParameter)
	}
	pc.dropSCTPLatchIfUnused()

	if err := pc.peer.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	switch pc.sem {
	case engine.SdpSemanticsUnifiedPlan:
		pc.synchronizeTransceiversUnifiedPlan(true)
	case engine.SdpSemanticsPlanB:
		// Plan B wrappers cannot detect changes, so every one re-reads
		// its sender and receiver and reports unconditionally.
		for _, tr := range pc.Transceivers() {
			tr.onSessionDescriptionUpdated(true, true)
		}
	}
	pc.log.WithFields(logrus.Fields{"type": desc.Type, "media": sdputil.Summarize(desc.SDP)}).
		Debug("remote description applied")
	return nil
}

// AddIceCandidate feeds one remote ICE candidate to the engine.
func (pc *PeerConnection) AddIceCandidate(candidate webrtc.ICECandidateInit) error {
	if pc.closed.IsSet() {
		return ErrPeerConnectionClosed
	}
	if candidate.Candidate == "" {
		return fmt.Errorf("empty candidate: %w", ErrInvalidParameter)
	}
	if err := pc.peer.AddIceCandidate(candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// AddDataChannel creates a data channel. A negative id opens the channel
// in-band; an id between 0 and 65535 binds it out-of-band, in which case
// the remote peer must create a channel with the same id. Once a
// negotiation completed without any data channel the SCTP transport is
// absent and further channels are refused until the next negotiation.
func (pc *PeerConnection) AddDataChannel(id int, label string, ordered, reliable bool) (*DataChannel, error) {
	if pc.closed.IsSet() {
		return nil, ErrPeerConnectionClosed
	}
	if id > 0xFFFF {
		return nil, fmt.Errorf("data channel id %d out of range: %w", id, ErrInvalidParameter)
	}
	pc.dcMu.Lock()
	negotiated := pc.sctpNegotiated
	pc.dcMu.Unlock()
	if !negotiated {
		return nil, fmt.Errorf("data channel %q: %w", label, ErrSCTPNotNegotiated)
	}
	init := engine.DataChannelInit{Ordered: ordered, Reliable: reliable}
	if id >= 0 {
		init.Negotiated = true
		init.ID = id
	}
	impl, err := pc.peer.CreateDataChannel(label, init)
	if err != nil {
		return nil, fmt.Errorf("create data channel %q: %w", label, err)
	}
	dc := newDataChannel(pc, impl)
	pc.dcMu.Lock()
	pc.dataChannels = append(pc.dataChannels, dc)
	pc.dcMu.Unlock()
	pc.log.WithFields(logrus.Fields{"label": label, "id": id}).Debug("data channel added")
	pc.fireDataChannelAdded(dc)
	return dc, nil
}

// DataChannels returns a snapshot of the open and pending data channels.
func (pc *PeerConnection) DataChannels() []*DataChannel {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	return append([]*DataChannel(nil), pc.dataChannels...)
}

// FindDataChannelByID returns the data channel with the given SCTP stream
// ID.
func (pc *PeerConnection) FindDataChannelByID(id int) (*DataChannel, error) {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	for _, dc := range pc.dataChannels {
		if dc.ID() == id {
			return dc, nil
		}
	}
	return nil, fmt.Errorf("data channel id %d: %w", id, ErrNotFound)
}

// FindDataChannelByLabel returns the first data channel with the given
// label. Labels are not unique.
func (pc *PeerConnection) FindDataChannelByLabel(label string) (*DataChannel, error) {
	pc.dcMu.Lock()
	defer pc.dcMu.Unlock()
	for _, dc := range pc.dataChannels {
		if dc.Label() == label {
			return dc, nil
		}
	}
	return nil, fmt.Errorf("data channel label %q: %w", label, ErrNotFound)
}

// Close shuts the connection down. The engine fires no removal events
// during teardown, so Close itself reports every live remote track as
// removed and every data channel as removed before returning. Close is
// idempotent.
func (pc *PeerConnection) Close() error {
	if !pc.closed.SetToIf(false, true) {
		return nil
	}
	if err := pc.peer.Close(); err != nil {
		pc.log.WithError(err).Warn("engine close failed")
	}

	pc.mu.Lock()
	trs := pc.transceivers
	pc.transceivers = nil
	pc.mu.Unlock()
	for _, tr := range trs {
		if track := tr.takeRemoteTrack(); track != nil {
			track.invalidate()
			pc.fireTrackRemoved(TrackRemovedEvent{Track: track, Transceiver: tr})
		}
		tr.detachForClose()
	}

	pc.dcMu.Lock()
	dcs := pc.dataChannels
	pc.dataChannels = nil
	pc.dcMu.Unlock()
	for _, dc := range dcs {
		if dc.markRemoved() {
			pc.fireDataChannelRemoved(dc)
		}
	}
	pc.log.Info("peer connection closed")
	return nil
}

// dropSCTPLatchIfUnused re-arms SCTP refusal ahead of a negotiation that
// will not include a data section.
func (pc *PeerConnection) dropSCTPLatchIfUnused() {
	pc.dcMu.Lock()
	if len(pc.dataChannels) == 0 {
		pc.sctpNegotiated = false
	}
	pc.dcMu.Unlock()
}

func (pc *PeerConnection) removeDataChannel(dc *DataChannel) {
	pc.dcMu.Lock()
	for i, cur := range pc.dataChannels {
		if cur == dc {
			pc.dataChannels = append(pc.dataChannels[:i], pc.dataChannels[i+1:]...)
			break
		}
	}
	pc.dcMu.Unlock()
	pc.fireDataChannelRemoved(dc)
}

// OnLocalDescription registers a callback fired after a local description
// was created and applied, with the description to send to the remote
// peer.
func (pc *PeerConnection) OnLocalDescription(fn func(desc webrtc.SessionDescription)) {
	pc.localDescMu.Lock()
	pc.onLocalDesc = fn
	pc.localDescMu.Unlock()
}

// OnIceCandidate registers a callback fired for each local ICE candidate
// to send to the remote peer.
func (pc *PeerConnection) OnIceCandidate(fn func(candidate webrtc.ICECandidateInit)) {
	pc.iceCandMu.Lock()
	pc.onIceCandidate = fn
	pc.iceCandMu.Unlock()
}

// OnIceStateChanged registers a callback fired when the ICE connection
// state changes.
func (pc *PeerConnection) OnIceStateChanged(fn func(state engine.IceState)) {
	pc.iceStateMu.Lock()
	pc.onIceStateChanged = fn
	pc.iceStateMu.Unlock()
}

// OnSignalingStateChanged registers a callback fired when the signaling
// state changes.
func (pc *PeerConnection) OnSignalingStateChanged(fn func(state engine.SignalingState)) {
	pc.signalingMu.Lock()
	pc.onSignalingChanged = fn
	pc.signalingMu.Unlock()
}

// OnConnected registers a callback fired every time a negotiation round
// completes, that is on every transition of the signaling state back to
// stable.
func (pc *PeerConnection) OnConnected(fn func()) {
	pc.connectedMu.Lock()
	pc.onConnected = fn
	pc.connectedMu.Unlock()
}

// OnRenegotiationNeeded registers a callback fired when a local change
// requires a new offer.
func (pc *PeerConnection) OnRenegotiationNeeded(fn func()) {
	pc.renegMu.Lock()
	pc.onRenegotiationNeed = fn
	pc.renegMu.Unlock()
}

// OnTransceiverAdded registers a callback fired for every transceiver
// entering the collection, locally added or discovered during
// negotiation.
func (pc *PeerConnection) OnTransceiverAdded(fn func(ev TransceiverAddedEvent)) {
	pc.trAddedMu.Lock()
	pc.onTransceiverAdded = fn
	pc.trAddedMu.Unlock()
}

// OnTransceiverStateUpdated registers a callback fired when a
// transceiver's desired or negotiated direction changes.
func (pc *PeerConnection) OnTransceiverStateUpdated(fn func(ev TransceiverStateUpdatedEvent)) {
	pc.trUpdatedMu.Lock()
	pc.onTransceiverUpdate = fn
	pc.trUpdatedMu.Unlock()
}

// OnTrackAdded registers a callback fired when a remote track starts
// receiving.
func (pc *PeerConnection) OnTrackAdded(fn func(ev TrackAddedEvent)) {
	pc.trackAddedMu.Lock()
	pc.onTrackAdded = fn
	pc.trackAddedMu.Unlock()
}

// OnTrackRemoved registers a callback fired when a remote track stops
// receiving.
func (pc *PeerConnection) OnTrackRemoved(fn func(ev TrackRemovedEvent)) {
	pc.trackRemovedMu.Lock()
	pc.onTrackRemoved = fn
	pc.trackRemovedMu.Unlock()
}

// OnDataChannelAdded registers a callback fired when a data channel enters
// the connection, created locally or announced in-band by the remote peer.
func (pc *PeerConnection) OnDataChannelAdded(fn func(dc *DataChannel)) {
	pc.dcAddedMu.Lock()
	pc.onDataChannelAdd = fn
	pc.dcAddedMu.Unlock()
}

// OnDataChannelRemoved registers a callback fired when a data channel
// leaves the connection.
func (pc *PeerConnection) OnDataChannelRemoved(fn func(dc *DataChannel)) {
	pc.dcRemovedMu.Lock()
	pc.onDataChannelRem = fn
	pc.dcRemovedMu.Unlock()
}

func (pc *PeerConnection) fireLocalDescription(desc webrtc.SessionDescription) {
	pc.localDescMu.Lock()
	fn := pc.onLocalDesc
	pc.localDescMu.Unlock()
	if fn != nil {
		fn(desc)
	}
}

func (pc *PeerConnection) fireRenegotiationNeeded() {
	pc.renegMu.Lock()
	fn := pc.onRenegotiationNeed
	pc.renegMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (pc *PeerConnection) fireTransceiverAdded(ev TransceiverAddedEvent) {
	pc.trAddedMu.Lock()
	fn := pc.onTransceiverAdded
	pc.trAddedMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (pc *PeerConnection) fireTransceiverStateUpdated(tr *Transceiver, reason TransceiverStateUpdatedReason,
	negotiated OptionalDirection, desired Direction) {
	pc.trUpdatedMu.Lock()
	fn := pc.onTransceiverUpdate
	pc.trUpdatedMu.Unlock()
	if fn != nil {
		fn(TransceiverStateUpdatedEvent{
			Transceiver:         tr,
			Reason:              reason,
			NegotiatedDirection: negotiated,
			DesiredDirection:    desired,
		})
	}
}

func (pc *PeerConnection) fireTrackAdded(ev TrackAddedEvent) {
	pc.trackAddedMu.Lock()
	fn := pc.onTrackAdded
	pc.trackAddedMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (pc *PeerConnection) fireTrackRemoved(ev TrackRemovedEvent) {
	pc.trackRemovedMu.Lock()
	fn := pc.onTrackRemoved
	pc.trackRemovedMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (pc *PeerConnection) fireDataChannelAdded(dc *DataChannel) {
	pc.dcAddedMu.Lock()
	fn := pc.onDataChannelAdd
	pc.dcAddedMu.Unlock()
	if fn != nil {
		fn(dc)
	}
}

func (pc *PeerConnection) fireDataChannelRemoved(dc *DataChannel) {
	pc.dcRemovedMu.Lock()
	fn := pc.onDataChannelRem
	pc.dcRemovedMu.Unlock()
	if fn != nil {
		fn(dc)
	}
}

// engineObserver adapts engine events onto the peer connection without
// exposing the Observer methods on the public type.
type engineObserver struct {
	pc *PeerConnection
}

func (o *engineObserver) OnSignalingChange(state engine.SignalingState) {
	pc := o.pc
	if pc.closed.IsSet() {
		return
	}
	pc.log.WithField("state", state).Debug("signaling state changed")
	pc.signalingMu.Lock()
	fn := pc.onSignalingChanged
	pc.signalingMu.Unlock()
	if fn != nil {
		fn(state)
	}
	// Every return to stable means an offer/answer round just completed.
	if state == engine.SignalingStateStable {
		pc.connectedMu.Lock()
		connected := pc.onConnected
		pc.connectedMu.Unlock()
		if connected != nil {
			connected()
		}
	}
}

func (o *engineObserver) OnRenegotiationNeeded() {
	if o.pc.closed.IsSet() {
		return
	}
	o.pc.fireRenegotiationNeeded()
}

func (o *engineObserver) OnAddTrack(receiver engine.RTPReceiver, streamIDs []string) {
	pc := o.pc
	if pc.closed.IsSet() {
		return
	}
	tr, err := pc.getOrCreateTransceiverForNewRemoteTrack(receiver)
	if err != nil {
		pc.log.WithError(err).Error("cannot place remote track")
		return
	}
	track := newRemoteTrack(receiver.Track(), tr)
	tr.setRemoteTrack(track)
	// The engine may deliver the track after the description pass already
	// ran, so refresh the negotiated direction here as well.
	tr.onSessionDescriptionUpdated(true, false)
	pc.log.WithFields(logrus.Fields{"track": track.ID(), "transceiver": tr.Name()}).
		Debug("remote track added")
	pc.fireTrackAdded(TrackAddedEvent{Track: track, Transceiver: tr})
}

func (o *engineObserver) OnRemoveTrack(receiver engine.RTPReceiver) {
	pc := o.pc
	if pc.closed.IsSet() {
		return
	}
	var owner *Transceiver
	pc.mu.Lock()
	for _, tr := range pc.transceivers {
		if tr.hasReceiver(receiver) {
			owner = tr
			break
		}
	}
	pc.mu.Unlock()
	if owner == nil {
		pc.log.Debug("remove for unknown receiver ignored")
		return
	}
	owner.setReceiverPlanB(nil)
	owner.onSessionDescriptionUpdated(true, false)
	track := owner.takeRemoteTrack()
	if track == nil {
		return
	}
	track.invalidate()
	pc.log.WithFields(logrus.Fields{"track": track.ID(), "transceiver": owner.Name()}).
		Debug("remote track removed")
	pc.fireTrackRemoved(TrackRemovedEvent{Track: track, Transceiver: owner})
}

func (o *engineObserver) OnDataChannel(channel engine.DataChannel) {
	pc := o.pc
	if pc.closed.IsSet() {
		return
	}
	pc.dcMu.Lock()
	// An in-band channel proves the SCTP transport exists.
	pc.sctpNegotiated = true
	pc.dcMu.Unlock()
	dc := newDataChannel(pc, channel)
	pc.dcMu.Lock()
	pc.dataChannels = append(pc.dataChannels, dc)
	pc.dcMu.Unlock()
	pc.log.WithFields(logrus.Fields{"label": channel.Label(), "id": channel.ID()}).
		Debug("remote data channel announced")
	pc.fireDataChannelAdded(dc)
}

func (o *engineObserver) OnIceCandidate(candidate webrtc.ICECandidateInit) {
	pc := o.pc
	if pc.closed.IsSet() {
		return
	}
	pc.iceCandMu.Lock()
	fn := pc.onIceCandidate
	pc.iceCandMu.Unlock()
	if fn != nil {
		fn(candidate)
	}
}

func (o *engineObserver) OnIceStateChange(state engine.IceState) {
	pc := o.pc
	if pc.closed.IsSet() {
		return
	}
	pc.iceStateMu.Lock()
	fn := pc.onIceStateChanged
	pc.iceStateMu.Unlock()
	if fn != nil {
		fn(state)
	}
}
