package rtc

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

// Transceiver is a user-facing RTP transceiver. Under Unified Plan it wraps
// an engine transceiver one to one; under Plan B it emulates the
// transceiver API on top of a plain sender and receiver pair, since the
// engine exposes none.
//
// A transceiver starts unassociated (m-line index -1) and gets bound to an
// m-line the first time a local description that includes it is applied.
// Association is permanent.
type Transceiver struct {
	pc   *PeerConnection
	kind engine.MediaKind
	name string
	log  *logrus.Entry

	mu          sync.Mutex
	mlineIndex  int
	streamIDs   []string
	desired     Direction
	negotiated  OptionalDirection
	localTrack  *LocalTrack
	remoteTrack *RemoteTrack
	backing     transceiverBacking
}

// transceiverBacking is the per-dialect half of a transceiver. The variant
// is fixed at construction; only the fields inside planBBacking mutate.
type transceiverBacking interface {
	isTransceiverBacking()
}

type unifiedBacking struct {
	tr engine.RTPTransceiver
}

func (*unifiedBacking) isTransceiverBacking() {}

type planBBacking struct {
	sender   engine.RTPSender
	receiver engine.RTPReceiver
	// senderTrack holds the engine track to attach once a sender exists,
	// so SetLocalTrack works before the first negotiation.
	senderTrack engine.LocalMediaTrack
}

func (*planBBacking) isTransceiverBacking() {}

func newUnifiedTransceiver(pc *PeerConnection, kind engine.MediaKind, mlineIndex int, name string,
	streamIDs []string, impl engine.RTPTransceiver, desired Direction) *Transceiver {
	return &Transceiver{
		pc:         pc,
		kind:       kind,
		name:       name,
		log:        pc.log,
		mlineIndex: mlineIndex,
		streamIDs:  streamIDs,
		desired:    desired,
		negotiated: DirectionNotSet,
		backing:    &unifiedBacking{tr: impl},
	}
}

func newPlanBTransceiver(pc *PeerConnection, kind engine.MediaKind, mlineIndex int, name string,
	streamIDs []string, desired Direction) *Transceiver {
	return &Transceiver{
		pc:         pc,
		kind:       kind,
		name:       name,
		log:        pc.log,
		mlineIndex: mlineIndex,
		streamIDs:  streamIDs,
		desired:    desired,
		negotiated: DirectionNotSet,
		backing:    &planBBacking{},
	}
}

// Name returns the transceiver name. The name has no role in negotiation
// under Unified Plan; under Plan B it rides inside the sender stream ID so
// both peers can pair their wrappers.
func (t *Transceiver) Name() string {
	return t.name
}

// MediaKind returns the kind of media the transceiver transports.
func (t *Transceiver) MediaKind() engine.MediaKind {
	return t.kind
}

// MlineIndex returns the index of the m-line the transceiver is associated
// with, or -1 before association.
func (t *Transceiver) MlineIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mlineIndex
}

// StreamIDs returns the media stream IDs the transceiver was created with.
func (t *Transceiver) StreamIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.streamIDs...)
}

// DesiredDirection returns the direction the local peer wants.
func (t *Transceiver) DesiredDirection() Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desired
}

// NegotiatedDirection returns the direction the last completed negotiation
// settled on, or an unset value before the first one.
func (t *Transceiver) NegotiatedDirection() OptionalDirection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.negotiated
}

// LocalTrack returns the attached local track, or nil.
func (t *Transceiver) LocalTrack() *LocalTrack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localTrack
}

// RemoteTrack returns the remote track currently received, or nil.
func (t *Transceiver) RemoteTrack() *RemoteTrack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteTrack
}

// SetDirection changes the desired direction. The change takes effect on
// the wire with the next negotiation; a renegotiation needed event fires if
// the new direction differs from the current one. The transceiver state
// updated event fires with the SetDirection reason.
func (t *Transceiver) SetDirection(dir Direction) error {
	if !dir.valid() {
		return fmt.Errorf("unknown direction %d: %w", int(dir), ErrInvalidParameter)
	}
	t.mu.Lock()
	if dir == t.desired {
		t.mu.Unlock()
		return nil
	}
	_, planB := t.backing.(*planBBacking)
	if ub, ok := t.backing.(*unifiedBacking); ok {
		// The engine fires renegotiation needed itself on success.
		if err := ub.tr.SetDirection(engine.Direction(dir)); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("engine rejected direction %s: %s: %w", dir, err, ErrInvalidOperation)
		}
	}
	t.desired = dir
	negotiated := t.negotiated
	t.mu.Unlock()

	if planB {
		// No engine object backs the wrapper, so the wrapper itself asks
		// for the renegotiation.
		t.pc.fireRenegotiationNeeded()
	}
	t.pc.fireTransceiverStateUpdated(t, ReasonSetDirection, negotiated, dir)
	return nil
}

// SetLocalTrack attaches a local track for sending, or detaches the current
// one when track is nil. Attaching does not by itself change the desired
// direction. Under Plan B the engine sender may not exist yet; the track is
// then held and attached when the next offer creates the sender.
func (t *Transceiver) SetLocalTrack(track *LocalTrack) error {
	t.mu.Lock()
	if track == t.localTrack {
		t.mu.Unlock()
		return nil
	}
	if track != nil && track.Kind() != t.kind {
		kind := t.kind
		t.mu.Unlock()
		return fmt.Errorf("cannot attach %s track to %s transceiver %q: %w",
			track.Kind(), kind, t.name, ErrInvalidParameter)
	}
	var engineTrack engine.LocalMediaTrack
	if track != nil {
		engineTrack = track.impl
	}
	switch b := t.backing.(type) {
	case *unifiedBacking:
		if err := b.tr.Sender().SetTrack(engineTrack); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("engine sender rejected track: %s: %w", err, ErrInvalidOperation)
		}
	case *planBBacking:
		if b.sender != nil {
			if err := b.sender.SetTrack(engineTrack); err != nil {
				t.mu.Unlock()
				return fmt.Errorf("engine sender rejected track: %s: %w", err, ErrInvalidOperation)
			}
		}
		b.senderTrack = engineTrack
	}
	old := t.localTrack
	t.localTrack = track
	t.mu.Unlock()

	if old != nil {
		old.attachTo(nil)
	}
	if track != nil {
		track.attachTo(t)
	}
	return nil
}

// onSessionDescriptionUpdated refreshes the cached directions from the
// engine after a description was applied and fires a state updated event
// if anything changed, or unconditionally when forced.
func (t *Transceiver) onSessionDescriptionUpdated(remote, forced bool) {
	t.mu.Lock()
	changed := false
	switch b := t.backing.(type) {
	case *unifiedBacking:
		if cur, ok := b.tr.CurrentDirection(); ok {
			if nd := Direction(cur).Opt(); nd != t.negotiated {
				t.negotiated = nd
				changed = true
			}
		}
		if dd := Direction(b.tr.Direction()); dd != t.desired {
			t.desired = dd
			changed = true
		}
	case *planBBacking:
		// Negotiated state is whatever sender and receiver currently
		// exist, since Plan B reveals nothing else.
		if nd := OptionalFromSendRecv(b.sender != nil, b.receiver != nil); nd != t.negotiated {
			t.negotiated = nd
			changed = true
		}
	}
	negotiated, desired := t.negotiated, t.desired
	t.mu.Unlock()

	if !changed && !forced {
		return
	}
	reason := ReasonLocalDescription
	if remote {
		reason = ReasonRemoteDescription
	}
	t.pc.fireTransceiverStateUpdated(t, reason, negotiated, desired)
}

// onAssociated records the m-line the local description bound the
// transceiver to. Only an unassociated transceiver can be associated, and
// only with a valid index.
func (t *Transceiver) onAssociated(mlineIndex int) {
	t.mu.Lock()
	prev := t.mlineIndex
	if mlineIndex < 0 || prev >= 0 {
		t.mu.Unlock()
		t.log.WithFields(logrus.Fields{"name": t.name, "mline": mlineIndex, "prev": prev}).
			Error("rejecting transceiver association")
		return
	}
	t.mlineIndex = mlineIndex
	t.mu.Unlock()
	t.log.WithFields(logrus.Fields{"name": t.name, "mline": mlineIndex}).
		Debug("transceiver associated with m-line")
}

// prepareOfferPlanB creates or destroys the engine sender to match the
// desired direction before a description is created, and returns the
// desired direction for the offer's receive hints. mlineIndex is the
// position the wrapper holds in the local collection for this offer.
func (t *Transceiver) prepareOfferPlanB(mlineIndex int) Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.backing.(*planBBacking)
	if !ok {
		return t.desired
	}
	encoded := encodePlanBStreamID(mlineIndex, t.streamIDs)
	switch {
	case t.desired.Send() && b.sender == nil:
		sender, err := t.pc.peer.CreateSender(t.kind, encoded)
		if err != nil {
			t.log.WithError(err).WithField("name", t.name).Error("failed to create sender")
			return t.desired
		}
		b.sender = sender
		if b.senderTrack != nil {
			if err := sender.SetTrack(b.senderTrack); err != nil {
				t.log.WithError(err).WithField("name", t.name).Error("failed to attach pending track")
			}
		}
	case !t.desired.Send() && b.sender != nil:
		if err := t.pc.peer.RemoveSender(b.sender); err != nil {
			t.log.WithError(err).WithField("name", t.name).Error("failed to remove sender")
		}
		b.sender = nil
	}
	return t.desired
}

// setReceiverPlanB records the engine receiver paired with the wrapper. A
// nil receiver clears the pairing when the remote stops sending.
func (t *Transceiver) setReceiverPlanB(receiver engine.RTPReceiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.backing.(*planBBacking); ok {
		b.receiver = receiver
	}
}

// hasReceiver reports whether the given engine receiver feeds this
// transceiver, under either dialect.
func (t *Transceiver) hasReceiver(receiver engine.RTPReceiver) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch b := t.backing.(type) {
	case *unifiedBacking:
		return b.tr.Receiver() == receiver
	case *planBBacking:
		return b.receiver != nil && b.receiver == receiver
	}
	return false
}

// engineTransceiver returns the backing engine transceiver, or nil under
// Plan B. The backing reference is immutable, so this needs no lock.
func (t *Transceiver) engineTransceiver() engine.RTPTransceiver {
	if ub, ok := t.backing.(*unifiedBacking); ok {
		return ub.tr
	}
	return nil
}

func (t *Transceiver) setRemoteTrack(track *RemoteTrack) {
	t.mu.Lock()
	t.remoteTrack = track
	t.mu.Unlock()
}

// takeRemoteTrack detaches and returns the current remote track, or nil.
func (t *Transceiver) takeRemoteTrack() *RemoteTrack {
	t.mu.Lock()
	track := t.remoteTrack
	t.remoteTrack = nil
	t.mu.Unlock()
	return track
}

// detachForClose drops track references without touching the engine, which
// is already closed by the time this runs.
func (t *Transceiver) detachForClose() {
	t.mu.Lock()
	local := t.localTrack
	t.localTrack = nil
	if b, ok := t.backing.(*planBBacking); ok {
		b.sender = nil
		b.receiver = nil
		b.senderTrack = nil
	}
	t.mu.Unlock()
	if local != nil {
		local.attachTo(nil)
	}
}
