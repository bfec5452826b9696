package mock

import (
	"errors"
	"sync"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

// wireMu serializes data channel pairing and connectivity checks across
// wired peer connection pairs.
var wireMu sync.Mutex

// Wire links two mock peer connections back to back. Media written to one
// side's senders lands on the other side's receivers, data channels pair
// once both sides negotiated a data section, and ICE reaches connected
// once both sides are stable with at least one candidate applied each.
// The first argument takes the even in-band channel IDs, like a DTLS
// client would.
func Wire(a, b engine.PeerConnection) error {
	pa, okA := a.(*PeerConnection)
	pb, okB := b.(*PeerConnection)
	if !okA || !okB {
		return errors.New("wire requires mock peer connections")
	}
	if pa == pb {
		return errors.New("cannot wire a peer connection to itself")
	}
	wireMu.Lock()
	pa.mu.Lock()
	pa.peer = pb
	pa.dtlsRole = 0
	pa.mu.Unlock()
	pb.mu.Lock()
	pb.peer = pa
	pb.dtlsRole = 1
	pb.mu.Unlock()
	wireMu.Unlock()
	pa.settle()
	return nil
}

// settle runs after anything that may complete a negotiation round: a
// description reaching stable, a new data channel, a fresh candidate, or
// the wiring itself.
func (pc *PeerConnection) settle() {
	wireMu.Lock()
	defer wireMu.Unlock()
	peer := pc.getPeer()
	if peer == nil {
		return
	}
	if pc.SignalingState() != engine.SignalingStateStable ||
		peer.SignalingState() != engine.SignalingStateStable {
		return
	}
	if pc.sctpEstablished() && peer.sctpEstablished() {
		pairInBand(pc, peer)
		pairInBand(peer, pc)
		pairNegotiated(pc, peer)
	}
	connect(pc, peer)
}

// pairInBand opens every unlinked in-band channel of from by creating its
// mirror on to. The announcement posts before the open transitions so the
// remote application can register handlers while the channel still reads
// connecting.
func pairInBand(from, to *PeerConnection) {
	from.mu.Lock()
	channels := append([]*dataChannel(nil), from.channels...)
	from.mu.Unlock()
	for _, ch := range channels {
		if ch.negotiated || ch.isLinked() {
			continue
		}
		if ch.ID() < 0 {
			ch.setID(from.nextInBandID())
		}
		mirror := &dataChannel{
			pc:       to,
			label:    ch.label,
			ordered:  ch.ordered,
			reliable: ch.reliable,
			id:       ch.ID(),
			state:    engine.DataChannelConnecting,
		}
		ch.link(mirror)
		mirror.link(ch)
		to.mu.Lock()
		to.channels = append(to.channels, mirror)
		to.mu.Unlock()
		obs := to.obs
		announced := mirror
		to.factory.post(func() {
			obs.OnDataChannel(announced)
		})
		ch.setState(engine.DataChannelOpen)
		mirror.setState(engine.DataChannelOpen)
	}
}

// pairNegotiated links out-of-band negotiated channels by matching stream
// IDs. No announcement fires; both applications created their end
// themselves.
func pairNegotiated(a, b *PeerConnection) {
	b.mu.Lock()
	chansB := append([]*dataChannel(nil), b.channels...)
	b.mu.Unlock()
	byID := make(map[int]*dataChannel)
	for _, ch := range chansB {
		if ch.negotiated && !ch.isLinked() {
			byID[ch.ID()] = ch
		}
	}
	a.mu.Lock()
	chansA := append([]*dataChannel(nil), a.channels...)
	a.mu.Unlock()
	for _, ch := range chansA {
		if !ch.negotiated || ch.isLinked() {
			continue
		}
		match, ok := byID[ch.ID()]
		if !ok {
			continue
		}
		delete(byID, ch.ID())
		ch.link(match)
		match.link(ch)
		ch.setState(engine.DataChannelOpen)
		match.setState(engine.DataChannelOpen)
	}
}

func connect(a, b *PeerConnection) {
	if a.candidateCount() == 0 || b.candidateCount() == 0 {
		return
	}
	a.mu.Lock()
	state := a.iceState
	a.mu.Unlock()
	if state != engine.IceStateNew {
		return
	}
	for _, st := range []engine.IceState{engine.IceStateChecking, engine.IceStateConnected} {
		a.setIceState(st)
		b.setIceState(st)
	}
}
