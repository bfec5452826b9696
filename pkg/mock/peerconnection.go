package mock

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/transport/packetio"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

var pcSeq uint32

var _ engine.PeerConnection = (*PeerConnection)(nil)

// PeerConnection emulates one engine session. Descriptions are real SDP;
// the offer/answer state machine follows JSEP closely enough for the
// negotiation layer not to tell the difference: associations commit when
// the local offer is applied, directions intersect when the answer
// lands, and remote tracks are announced while applying a remote
// description that declares sending.
type PeerConnection struct {
	factory     *Factory
	sem         engine.SdpSemantics
	obs         engine.Observer
	log         *logrus.Entry
	interceptor interceptor.Interceptor
	closed      *abool.AtomicBool

	mu        sync.Mutex
	signaling engine.SignalingState
	iceState  engine.IceState
	peer      *PeerConnection
	dtlsRole  int

	sessionID  uint64
	sessionVer uint64

	// Unified Plan: every transceiver, plus the associated ones in
	// m-line order. The data section always marshals last.
	transceivers []*rtpTransceiver
	slots        []*rtpTransceiver
	appSlot      bool

	// Plan B: flat sender and receiver lists, one receiver per announced
	// remote stream.
	planSenders    []*rtpSender
	planReceivers  []*rtpReceiver
	offerToReceive map[engine.MediaKind]bool
	remoteKindDir  map[engine.MediaKind]engine.Direction

	remoteMedias []parsedMedia

	channels  []*dataChannel
	inBandSeq int
	// sctpLocal and sctpRemote track whether each side's last description
	// carried a data section; sctpActive commits when a round completes
	// with both set.
	sctpLocal  bool
	sctpRemote bool
	sctpActive bool

	candidates   int
	candidateSeq int
}

func newPeerConnection(f *Factory, cfg engine.Config, obs engine.Observer, chain interceptor.Interceptor) *PeerConnection {
	seq := atomic.AddUint32(&pcSeq, 1)
	return &PeerConnection{
		factory:        f,
		sem:            cfg.SdpSemantics,
		obs:            obs,
		log:            f.log.WithField("pc", seq),
		interceptor:    chain,
		closed:         abool.New(),
		signaling:      engine.SignalingStateStable,
		iceState:       engine.IceStateNew,
		sessionID:      uint64(time.Now().UnixNano()),
		sessionVer:     1,
		offerToReceive: make(map[engine.MediaKind]bool),
		remoteKindDir:  make(map[engine.MediaKind]engine.Direction),
	}
}

func fromSendRecv(send, recv bool) engine.Direction {
	switch {
	case send && recv:
		return engine.DirectionSendRecv
	case send:
		return engine.DirectionSendOnly
	case recv:
		return engine.DirectionRecvOnly
	}
	return engine.DirectionInactive
}

func streamIDsOf(m parsedMedia) []string {
	ids := make([]string, 0, len(m.streams))
	for _, stream := range m.streams {
		ids = append(ids, stream.id)
	}
	return ids
}

func senderStreams(s *rtpSender) []mediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	trackID := ""
	if s.track != nil {
		trackID = s.track.id
	}
	ids := s.streamIDs
	if len(ids) == 0 {
		if trackID == "" {
			return nil
		}
		ids = []string{trackID}
	}
	streams := make([]mediaStream, 0, len(ids))
	for _, id := range ids {
		tid := trackID
		if tid == "" {
			tid = id
		}
		streams = append(streams, mediaStream{id: id, trackID: tid})
	}
	return streams
}

// CreateOffer builds an offer without changing any state; the layout
// commits when the offer is applied as the local description.
func (pc *PeerConnection) CreateOffer(opts engine.OfferOptions) (webrtc.SessionDescription, error) {
	if pc.closed.IsSet() {
		return webrtc.SessionDescription{}, errors.New("peer connection closed")
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.signaling != engine.SignalingStateStable {
		return webrtc.SessionDescription{}, fmt.Errorf("cannot offer in state %s", pc.signaling)
	}
	if pc.sem == engine.SdpSemanticsPlanB {
		pc.offerToReceive[engine.MediaKindAudio] = opts.OfferToReceiveAudio
		pc.offerToReceive[engine.MediaKindVideo] = opts.OfferToReceiveVideo
	}
	raw, err := marshalDescription(pc.offerSectionsLocked(), pc.sessionID, pc.sessionVer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: raw}, nil
}

// CreateAnswer builds an answer mirroring the pending remote offer's
// m-lines.
func (pc *PeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	if pc.closed.IsSet() {
		return webrtc.SessionDescription{}, errors.New("peer connection closed")
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.signaling != engine.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, fmt.Errorf("cannot answer in state %s", pc.signaling)
	}
	raw, err := marshalDescription(pc.answerSectionsLocked(), pc.sessionID, pc.sessionVer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: raw}, nil
}

// layoutLocked returns the transceivers of the next local offer in m-line
// order: associated ones keep their slot, unassociated ones append in
// creation order.
func (pc *PeerConnection) layoutLocked() []*rtpTransceiver {
	layout := append([]*rtpTransceiver(nil), pc.slots...)
	for _, tr := range pc.transceivers {
		if tr.MlineIndex() < 0 {
			layout = append(layout, tr)
		}
	}
	return layout
}

func (pc *PeerConnection) offerSectionsLocked() []mediaSection {
	var sections []mediaSection
	if pc.sem == engine.SdpSemanticsUnifiedPlan {
		layout := pc.layoutLocked()
		for i, tr := range layout {
			mid := tr.Mid()
			if mid == "" {
				mid = strconv.Itoa(i)
			}
			sections = append(sections, mediaSection{
				kind:      tr.kind,
				mid:       mid,
				direction: tr.Direction(),
				streams:   senderStreams(tr.sender),
			})
		}
		if pc.appSlot || len(pc.channels) > 0 {
			sections = append(sections, mediaSection{app: true, mid: strconv.Itoa(len(layout))})
		}
		return sections
	}
	for _, kind := range []engine.MediaKind{engine.MediaKindAudio, engine.MediaKindVideo} {
		senders := pc.planSendersOfLocked(kind)
		recv := pc.offerToReceive[kind]
		if len(senders) == 0 && !recv {
			continue
		}
		sec := mediaSection{kind: kind, mid: kind.String(), direction: fromSendRecv(len(senders) > 0, recv)}
		for _, s := range senders {
			sec.streams = append(sec.streams, senderStreams(s)...)
		}
		sections = append(sections, sec)
	}
	if pc.appSlot || len(pc.channels) > 0 {
		sections = append(sections, mediaSection{app: true, mid: "data"})
	}
	return sections
}

func (pc *PeerConnection) answerSectionsLocked() []mediaSection {
	var sections []mediaSection
	mediaIdx := 0
	for _, m := range pc.remoteMedias {
		if m.app {
			sections = append(sections, mediaSection{app: true, mid: m.mid})
			continue
		}
		if pc.sem == engine.SdpSemanticsUnifiedPlan {
			if mediaIdx >= len(pc.slots) {
				continue
			}
			tr := pc.slots[mediaIdx]
			mediaIdx++
			dir := tr.Direction()
			answered := fromSendRecv(dir.Send() && m.direction.Recv(), dir.Recv() && m.direction.Send())
			sections = append(sections, mediaSection{
				kind:      tr.kind,
				mid:       m.mid,
				direction: answered,
				streams:   senderStreams(tr.sender),
			})
			continue
		}
		senders := pc.planSendersOfLocked(m.kind)
		answered := fromSendRecv(len(senders) > 0 && m.direction.Recv(), m.direction.Send())
		sec := mediaSection{kind: m.kind, mid: m.mid, direction: answered}
		for _, s := range senders {
			sec.streams = append(sec.streams, senderStreams(s)...)
		}
		sections = append(sections, sec)
	}
	return sections
}

// SetLocalDescription applies a description this connection created. An
// offer commits m-line associations; an answer completes the round.
func (pc *PeerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	if pc.closed.IsSet() {
		return errors.New("peer connection closed")
	}
	pc.mu.Lock()
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		if pc.signaling != engine.SignalingStateStable {
			state := pc.signaling
			pc.mu.Unlock()
			return fmt.Errorf("local offer in state %s", state)
		}
		pc.commitLocalOfferLocked()
		pc.signaling = engine.SignalingStateHaveLocalOffer
		pc.sessionVer++
		pc.postSignalingLocked()
		pc.postCandidateLocked()
		pc.mu.Unlock()
		return nil
	case webrtc.SDPTypeAnswer:
		if pc.signaling != engine.SignalingStateHaveRemoteOffer {
			state := pc.signaling
			pc.mu.Unlock()
			return fmt.Errorf("local answer in state %s", state)
		}
		pc.commitAnswerLocked()
		pc.signaling = engine.SignalingStateStable
		pc.sessionVer++
		pc.postSignalingLocked()
		pc.postCandidateLocked()
		pc.mu.Unlock()
		pc.settle()
		return nil
	default:
		pc.mu.Unlock()
		return fmt.Errorf("unsupported description type %s", desc.Type)
	}
}

func (pc *PeerConnection) commitLocalOfferLocked() {
	if pc.sem == engine.SdpSemanticsUnifiedPlan {
		layout := pc.layoutLocked()
		for i, tr := range layout {
			if tr.MlineIndex() < 0 {
				tr.associate(strconv.Itoa(i), i)
			}
		}
		pc.slots = layout
	}
	if len(pc.channels) > 0 {
		pc.appSlot = true
	}
	pc.sctpLocal = pc.appSlot
}

func (pc *PeerConnection) commitAnswerLocked() {
	appAnswered := false
	mediaIdx := 0
	for _, m := range pc.remoteMedias {
		if m.app {
			appAnswered = true
			continue
		}
		if pc.sem == engine.SdpSemanticsUnifiedPlan {
			if mediaIdx >= len(pc.slots) {
				continue
			}
			tr := pc.slots[mediaIdx]
			mediaIdx++
			dir := tr.Direction()
			current := fromSendRecv(dir.Send() && m.direction.Recv(), dir.Recv() && m.direction.Send())
			tr.setCurrent(current)
			tr.sender.setActive(current.Send())
			continue
		}
		for _, s := range pc.planSendersOfLocked(m.kind) {
			s.setActive(m.direction.Recv())
		}
	}
	if appAnswered {
		pc.appSlot = true
	}
	pc.sctpLocal = appAnswered
	pc.sctpActive = pc.sctpRemote && appAnswered
}

// SetRemoteDescription applies a description received from the peer.
// Remote tracks are announced or retired according to the sending intent
// the description declares.
func (pc *PeerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if pc.closed.IsSet() {
		return errors.New("peer connection closed")
	}
	medias, err := parseDescription(desc.SDP)
	if err != nil {
		return err
	}
	appSeen := false
	for _, m := range medias {
		if m.app {
			appSeen = true
		}
	}
	pc.mu.Lock()
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		if pc.signaling != engine.SignalingStateStable {
			state := pc.signaling
			pc.mu.Unlock()
			return fmt.Errorf("remote offer in state %s", state)
		}
		pc.remoteMedias = medias
		pc.sctpRemote = appSeen
		if pc.sem == engine.SdpSemanticsUnifiedPlan {
			pc.applyRemoteOfferUnifiedLocked(medias)
		} else {
			pc.applyRemotePlanBLocked(medias, false)
		}
		pc.signaling = engine.SignalingStateHaveRemoteOffer
		pc.postSignalingLocked()
		pc.mu.Unlock()
		return nil
	case webrtc.SDPTypeAnswer:
		if pc.signaling != engine.SignalingStateHaveLocalOffer {
			state := pc.signaling
			pc.mu.Unlock()
			return fmt.Errorf("remote answer in state %s", state)
		}
		pc.remoteMedias = medias
		pc.sctpRemote = appSeen
		if pc.sem == engine.SdpSemanticsUnifiedPlan {
			pc.applyRemoteAnswerUnifiedLocked(medias)
		} else {
			pc.applyRemotePlanBLocked(medias, true)
		}
		pc.sctpActive = pc.sctpLocal && pc.sctpRemote
		pc.signaling = engine.SignalingStateStable
		pc.postSignalingLocked()
		pc.mu.Unlock()
		pc.settle()
		return nil
	default:
		pc.mu.Unlock()
		return fmt.Errorf("unsupported description type %s", desc.Type)
	}
}

func (pc *PeerConnection) applyRemoteOfferUnifiedLocked(medias []parsedMedia) {
	mediaIdx := 0
	for i, m := range medias {
		if m.app {
			pc.appSlot = true
			continue
		}
		if mediaIdx < len(pc.slots) {
			tr := pc.slots[mediaIdx]
			mediaIdx++
			tr.setRemote(m.direction)
			tr.receiver.setStreamIDs(streamIDsOf(m))
			pc.updateReceiveState(tr.receiver, m)
			continue
		}
		mediaIdx++
		// A brand new remote m-line: create the transceiver already
		// associated. Sending back is not desired until the application
		// asks for it.
		dir := engine.DirectionInactive
		if m.direction.Send() {
			dir = engine.DirectionRecvOnly
		}
		tr := newRtpTransceiver(pc, m.kind, dir, nil)
		tr.associate(m.mid, i)
		tr.setRemote(m.direction)
		tr.receiver.setStreamIDs(streamIDsOf(m))
		pc.transceivers = append(pc.transceivers, tr)
		pc.slots = append(pc.slots, tr)
		pc.updateReceiveState(tr.receiver, m)
	}
}

func (pc *PeerConnection) applyRemoteAnswerUnifiedLocked(medias []parsedMedia) {
	mediaIdx := 0
	for _, m := range medias {
		if m.app {
			continue
		}
		if mediaIdx >= len(pc.slots) {
			break
		}
		tr := pc.slots[mediaIdx]
		mediaIdx++
		tr.setRemote(m.direction)
		tr.receiver.setStreamIDs(streamIDsOf(m))
		dir := tr.Direction()
		current := fromSendRecv(dir.Send() && m.direction.Recv(), dir.Recv() && m.direction.Send())
		tr.setCurrent(current)
		tr.sender.setActive(current.Send())
		pc.updateReceiveState(tr.receiver, m)
	}
}

// applyRemotePlanBLocked diffs the announced streams of each media kind
// against the known receivers: new streams announce a track, vanished
// ones retire it.
func (pc *PeerConnection) applyRemotePlanBLocked(medias []parsedMedia, answer bool) {
	seen := make(map[string]bool)
	for _, m := range medias {
		if m.app {
			continue
		}
		pc.remoteKindDir[m.kind] = m.direction
		for _, stream := range m.streams {
			seen[stream.id] = true
			if pc.findPlanReceiverLocked(m.kind, stream.id) != nil {
				continue
			}
			r := &rtpReceiver{pc: pc, kind: m.kind}
			r.setStreamIDs([]string{stream.id})
			pc.planReceivers = append(pc.planReceivers, r)
			pc.announceReceiver(r, stream.trackID)
		}
		if answer {
			for _, s := range pc.planSendersOfLocked(m.kind) {
				s.setActive(m.direction.Recv())
			}
		}
	}
	var kept []*rtpReceiver
	for _, r := range pc.planReceivers {
		ids := r.StreamIDs()
		if len(ids) > 0 && !seen[ids[0]] {
			pc.retireReceiver(r)
			continue
		}
		kept = append(kept, r)
	}
	pc.planReceivers = kept
}

func (pc *PeerConnection) updateReceiveState(r *rtpReceiver, m parsedMedia) {
	if m.direction.Send() {
		trackID := ""
		if len(m.streams) > 0 {
			trackID = m.streams[0].trackID
		}
		pc.announceReceiver(r, trackID)
	} else {
		pc.retireReceiver(r)
	}
}

func (pc *PeerConnection) announceReceiver(r *rtpReceiver, trackID string) {
	r.mu.Lock()
	if r.announced {
		r.mu.Unlock()
		return
	}
	if trackID == "" {
		trackID = uuid.NewString()
	}
	r.track = newRemoteTrack(trackID, r.kind, r)
	r.announced = true
	ids := append([]string(nil), r.streamIDs...)
	r.mu.Unlock()
	obs := pc.obs
	pc.factory.post(func() {
		obs.OnAddTrack(r, ids)
	})
}

func (pc *PeerConnection) retireReceiver(r *rtpReceiver) {
	r.mu.Lock()
	if !r.announced {
		r.mu.Unlock()
		return
	}
	track := r.track
	r.announced = false
	r.mu.Unlock()
	if track != nil {
		track.close()
	}
	obs := pc.obs
	pc.factory.post(func() {
		obs.OnRemoveTrack(r)
	})
}

// AddIceCandidate counts remote candidates; connectivity establishes once
// both wired sides are stable and fed at least one candidate each.
func (pc *PeerConnection) AddIceCandidate(candidate webrtc.ICECandidateInit) error {
	if pc.closed.IsSet() {
		return errors.New("peer connection closed")
	}
	if candidate.Candidate == "" {
		return errors.New("empty candidate")
	}
	pc.mu.Lock()
	pc.candidates++
	pc.mu.Unlock()
	pc.settle()
	return nil
}

// AddTransceiver creates a Unified Plan transceiver and requests a
// renegotiation, like a real engine.
func (pc *PeerConnection) AddTransceiver(kind engine.MediaKind, init engine.TransceiverInit) (engine.RTPTransceiver, error) {
	if pc.closed.IsSet() {
		return nil, errors.New("peer connection closed")
	}
	if pc.sem != engine.SdpSemanticsUnifiedPlan {
		return nil, errors.New("transceivers require unified plan")
	}
	if kind != engine.MediaKindAudio && kind != engine.MediaKindVideo {
		return nil, errors.New("unknown media kind")
	}
	tr := newRtpTransceiver(pc, kind, init.Direction, init.StreamIDs)
	pc.mu.Lock()
	pc.transceivers = append(pc.transceivers, tr)
	pc.mu.Unlock()
	pc.postRenegotiationNeeded()
	return tr, nil
}

func (pc *PeerConnection) GetTransceivers() []engine.RTPTransceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	out := make([]engine.RTPTransceiver, 0, len(pc.transceivers))
	for _, tr := range pc.transceivers {
		out = append(out, tr)
	}
	return out
}

// CreateSender creates a Plan B sender announcing the given stream ID.
// No renegotiation event fires; the caller churns senders while preparing
// an offer.
func (pc *PeerConnection) CreateSender(kind engine.MediaKind, streamID string) (engine.RTPSender, error) {
	if pc.closed.IsSet() {
		return nil, errors.New("peer connection closed")
	}
	if pc.sem != engine.SdpSemanticsPlanB {
		return nil, errors.New("plain senders require plan b")
	}
	s := newRtpSender(pc, kind, []string{streamID})
	pc.mu.Lock()
	pc.planSenders = append(pc.planSenders, s)
	pc.mu.Unlock()
	return s, nil
}

func (pc *PeerConnection) RemoveSender(sender engine.RTPSender) error {
	s, ok := sender.(*rtpSender)
	if !ok {
		return errors.New("sender from a different engine")
	}
	pc.mu.Lock()
	found := false
	var kept []*rtpSender
	for _, cur := range pc.planSenders {
		if cur == s {
			found = true
			continue
		}
		kept = append(kept, cur)
	}
	pc.planSenders = kept
	pc.mu.Unlock()
	if !found {
		return errors.New("unknown sender")
	}
	s.detach()
	return nil
}

func (pc *PeerConnection) CreateDataChannel(label string, init engine.DataChannelInit) (engine.DataChannel, error) {
	if pc.closed.IsSet() {
		return nil, errors.New("peer connection closed")
	}
	id := -1
	if init.Negotiated {
		if init.ID < 0 || init.ID > 0xFFFF {
			return nil, errors.New("negotiated channel id out of range")
		}
		id = init.ID
	}
	ch := &dataChannel{
		pc:         pc,
		label:      label,
		ordered:    init.Ordered,
		reliable:   init.Reliable,
		negotiated: init.Negotiated,
		id:         id,
		state:      engine.DataChannelConnecting,
	}
	pc.mu.Lock()
	pc.channels = append(pc.channels, ch)
	pc.mu.Unlock()
	// Channels added to an already established session open right away.
	pc.settle()
	return ch, nil
}

func (pc *PeerConnection) SignalingState() engine.SignalingState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.signaling
}

func (pc *PeerConnection) Close() error {
	if !pc.closed.SetToIf(false, true) {
		return nil
	}
	pc.mu.Lock()
	pc.signaling = engine.SignalingStateClosed
	pc.iceState = engine.IceStateClosed
	var receivers []*rtpReceiver
	for _, tr := range pc.transceivers {
		receivers = append(receivers, tr.receiver)
	}
	receivers = append(receivers, pc.planReceivers...)
	channels := pc.channels
	pc.channels = nil
	pc.mu.Unlock()

	for _, r := range receivers {
		r.mu.Lock()
		track := r.track
		r.mu.Unlock()
		if track != nil {
			track.close()
		}
	}
	for _, ch := range channels {
		ch.Close()
	}
	if pc.interceptor != nil {
		pc.interceptor.Close()
	}
	pc.log.Debug("closed")
	return nil
}

func (pc *PeerConnection) postSignalingLocked() {
	state := pc.signaling
	obs := pc.obs
	pc.factory.post(func() {
		obs.OnSignalingChange(state)
	})
}

func (pc *PeerConnection) postCandidateLocked() {
	pc.candidateSeq++
	seq := pc.candidateSeq
	mid := "0"
	if pc.sem == engine.SdpSemanticsPlanB {
		mid = "audio"
	}
	candidate := fmt.Sprintf("candidate:%d 1 udp 2130706431 127.0.0.1 %d typ host", seq, 50000+seq)
	idx := uint16(0)
	init := webrtc.ICECandidateInit{Candidate: candidate, SDPMid: &mid, SDPMLineIndex: &idx}
	obs := pc.obs
	pc.factory.post(func() {
		obs.OnIceCandidate(init)
	})
}

func (pc *PeerConnection) postRenegotiationNeeded() {
	if pc.closed.IsSet() {
		return
	}
	obs := pc.obs
	pc.factory.post(func() {
		obs.OnRenegotiationNeeded()
	})
}

func (pc *PeerConnection) setIceState(state engine.IceState) {
	pc.mu.Lock()
	if pc.iceState == state {
		pc.mu.Unlock()
		return
	}
	pc.iceState = state
	obs := pc.obs
	pc.mu.Unlock()
	pc.factory.post(func() {
		obs.OnIceStateChange(state)
	})
}

func (pc *PeerConnection) getPeer() *PeerConnection {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.peer
}

func (pc *PeerConnection) sctpEstablished() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.sctpActive
}

func (pc *PeerConnection) candidateCount() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.candidates
}

func (pc *PeerConnection) nextInBandID() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	id := pc.inBandSeq*2 + pc.dtlsRole
	pc.inBandSeq++
	return id
}

func (pc *PeerConnection) planSendersOfLocked(kind engine.MediaKind) []*rtpSender {
	var out []*rtpSender
	for _, s := range pc.planSenders {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (pc *PeerConnection) findPlanReceiverLocked(kind engine.MediaKind, streamID string) *rtpReceiver {
	for _, r := range pc.planReceivers {
		if r.kind != kind {
			continue
		}
		ids := r.StreamIDs()
		if len(ids) > 0 && ids[0] == streamID {
			return r
		}
	}
	return nil
}

func (pc *PeerConnection) transceiverByMid(mid string) *rtpTransceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for _, tr := range pc.transceivers {
		if tr.Mid() == mid {
			return tr
		}
	}
	return nil
}

func (pc *PeerConnection) planReceiverByStream(kind engine.MediaKind, streamID string) *rtpReceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.findPlanReceiverLocked(kind, streamID)
}

// lookupPeerTrackBuffer resolves where a sender's packets land on the
// wired peer: by mid under Unified Plan, by encoded stream ID under Plan
// B. A nil return drops the packet.
func (pc *PeerConnection) lookupPeerTrackBuffer(s *rtpSender) *packetio.Buffer {
	if pc.closed.IsSet() {
		return nil
	}
	peer := pc.getPeer()
	if peer == nil || peer.closed.IsSet() {
		return nil
	}
	if s.tr != nil {
		mid := s.tr.Mid()
		if mid == "" {
			return nil
		}
		tr := peer.transceiverByMid(mid)
		if tr == nil {
			return nil
		}
		return tr.receiver.trackBuffer()
	}
	streamID := s.firstStreamID()
	if streamID == "" {
		return nil
	}
	r := peer.planReceiverByStream(s.kind, streamID)
	if r == nil {
		return nil
	}
	return r.trackBuffer()
}

// requestKeyFrame routes a picture loss indication to the peer sender
// feeding the given receiver.
func (pc *PeerConnection) requestKeyFrame(r *rtpReceiver) error {
	peer := pc.getPeer()
	if peer == nil {
		return errors.New("no connected peer")
	}
	var sender *rtpSender
	if pc.sem == engine.SdpSemanticsUnifiedPlan {
		mid := ""
		pc.mu.Lock()
		for _, tr := range pc.transceivers {
			if tr.receiver == r {
				mid = tr.Mid()
				break
			}
		}
		pc.mu.Unlock()
		if mid != "" {
			if tr := peer.transceiverByMid(mid); tr != nil {
				sender = tr.sender
			}
		}
	} else {
		ids := r.StreamIDs()
		if len(ids) > 0 {
			peer.mu.Lock()
			for _, s := range peer.planSenders {
				if s.kind == r.kind && s.firstStreamID() == ids[0] {
					sender = s
					break
				}
			}
			peer.mu.Unlock()
		}
	}
	if sender == nil {
		return errors.New("no sender feeds this track")
	}
	feedback := sender
	peer.factory.post(func() {
		feedback.deliverRTCP(&rtcp.PictureLossIndication{MediaSSRC: feedback.ssrc})
	})
	return nil
}
