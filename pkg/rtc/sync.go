package rtc

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

// synchronizeTransceiversUnifiedPlan walks the engine transceivers after a
// description was applied and brings the wrapper collection in line:
// wrappers missing for an engine transceiver are created, every wrapper
// refreshes its directions, and wrappers whose m-line the local description
// just fixed get associated. Engine transceivers are matched to wrappers by
// identity of the backing object.
func (pc *PeerConnection) synchronizeTransceiversUnifiedPlan(remote bool) {
	impls := pc.peer.GetTransceivers()
	pc.log.WithFields(logrus.Fields{"engine": len(impls), "wrappers": len(pc.Transceivers()), "remote": remote}).
		Debug("synchronizing transceivers")
	for _, impl := range impls {
		wrapper := pc.findWrapperForEngineTransceiver(impl)
		if wrapper == nil {
			wrapper = pc.createTransceiverUnifiedPlan(impl)
		}
		wrapper.onSessionDescriptionUpdated(remote, false)
		mlineIndex := impl.MlineIndex()
		if wrapper.MlineIndex() != mlineIndex {
			if mlineIndex < 0 || remote {
				// Wrappers discovered while applying a remote description
				// are created already associated; an index moving or
				// vanishing afterwards means the engine misbehaves.
				pc.log.WithFields(logrus.Fields{"mid": impl.Mid(), "mline": mlineIndex, "remote": remote}).
					Error("unexpected m-line change on engine transceiver")
				continue
			}
			wrapper.onAssociated(mlineIndex)
		}
	}
}

func (pc *PeerConnection) findWrapperForEngineTransceiver(impl engine.RTPTransceiver) *Transceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.findWrapperLocked(impl)
}

func (pc *PeerConnection) findWrapperLocked(impl engine.RTPTransceiver) *Transceiver {
	for _, tr := range pc.transceivers {
		if tr.engineTransceiver() == impl {
			return tr
		}
	}
	return nil
}

// createTransceiverUnifiedPlan wraps an engine transceiver discovered
// during negotiation. The wrapper takes the engine's mid as its name, the
// receiver's stream IDs and the engine's desired direction, and fires the
// transceiver added event.
func (pc *PeerConnection) createTransceiverUnifiedPlan(impl engine.RTPTransceiver) *Transceiver {
	name := impl.Mid()
	mlineIndex := impl.MlineIndex()
	streamIDs := impl.Receiver().StreamIDs()
	desired := Direction(impl.Direction())
	tr := newUnifiedTransceiver(pc, impl.MediaKind(), mlineIndex, name, streamIDs, impl, desired)

	pc.mu.Lock()
	// The sync pass and the remote track path can race to wrap the same
	// engine transceiver; the first append wins.
	if existing := pc.findWrapperLocked(impl); existing != nil {
		pc.mu.Unlock()
		return existing
	}
	pc.transceivers = append(pc.transceivers, tr)
	pc.mu.Unlock()

	pc.log.WithFields(logrus.Fields{"name": name, "mline": mlineIndex, "direction": desired}).
		Debug("wrapped engine transceiver")
	pc.fireTransceiverAdded(TransceiverAddedEvent{
		Transceiver:      tr,
		Name:             name,
		MediaKind:        impl.MediaKind(),
		MlineIndex:       mlineIndex,
		EncodedStreamIDs: encodeStreamIDs(streamIDs),
		DesiredDirection: desired,
	})
	return tr
}

// getOrCreateTransceiverForNewRemoteTrack returns the transceiver that
// receives the given engine receiver, creating one if the remote peer just
// added the media. Under Plan B the pairing information rides in the first
// stream ID announced for the receiver.
func (pc *PeerConnection) getOrCreateTransceiverForNewRemoteTrack(receiver engine.RTPReceiver) (*Transceiver, error) {
	pc.mu.Lock()
	for _, tr := range pc.transceivers {
		if tr.hasReceiver(receiver) {
			pc.mu.Unlock()
			return tr, nil
		}
	}
	pc.mu.Unlock()

	if pc.sem == engine.SdpSemanticsUnifiedPlan {
		// Applying the remote description created the engine transceiver
		// already; only the wrapper is missing.
		for _, impl := range pc.peer.GetTransceivers() {
			if impl.Receiver() == receiver {
				return pc.createTransceiverUnifiedPlan(impl), nil
			}
		}
		return nil, fmt.Errorf("no engine transceiver owns the new receiver: %w", ErrNotFound)
	}

	ids := receiver.StreamIDs()
	if len(ids) == 0 {
		return nil, fmt.Errorf("remote track announces no stream ID: %w", ErrInvalidParameter)
	}
	name, mlineIndex, streamIDs, err := decodePlanBStreamID(ids[0])
	if err != nil {
		return nil, err
	}
	tr := newPlanBTransceiver(pc, receiver.MediaKind(), mlineIndex, name, streamIDs, DirectionRecvOnly)
	tr.setReceiverPlanB(receiver)

	pc.mu.Lock()
	for _, existing := range pc.transceivers {
		if existing.hasReceiver(receiver) {
			pc.mu.Unlock()
			return existing, nil
		}
	}
	pc.transceivers = append(pc.transceivers, tr)
	pc.mu.Unlock()

	pc.log.WithFields(logrus.Fields{"name": name, "mline": mlineIndex}).
		Debug("created transceiver for remote track")
	pc.fireTransceiverAdded(TransceiverAddedEvent{
		Transceiver:      tr,
		Name:             name,
		MediaKind:        receiver.MediaKind(),
		MlineIndex:       mlineIndex,
		EncodedStreamIDs: encodeStreamIDs(streamIDs),
		DesiredDirection: DirectionRecvOnly,
	})
	return tr, nil
}
