package mock

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/transport/packetio"
	"github.com/pion/webrtc/v3"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

var ssrcSeq uint32

func nextSSRC() uint32 {
	return 0x10000000 + atomic.AddUint32(&ssrcSeq, 1)
}

var (
	_ engine.RTPTransceiver = (*rtpTransceiver)(nil)
	_ engine.RTPSender      = (*rtpSender)(nil)
	_ engine.RTPReceiver    = (*rtpReceiver)(nil)
)

// rtpTransceiver is an emulated Unified Plan transceiver. It always owns a
// sender and a receiver, like the transceivers of a real engine.
type rtpTransceiver struct {
	pc   *PeerConnection
	kind engine.MediaKind

	mu         sync.Mutex
	mid        string
	mline      int
	direction  engine.Direction
	current    engine.Direction
	hasCurrent bool
	// remoteDir is the direction the remote peer last declared for the
	// m-line, from the remote's perspective.
	remoteDir engine.Direction
	hasRemote bool

	sender   *rtpSender
	receiver *rtpReceiver
}

func newRtpTransceiver(pc *PeerConnection, kind engine.MediaKind, direction engine.Direction, streamIDs []string) *rtpTransceiver {
	tr := &rtpTransceiver{
		pc:        pc,
		kind:      kind,
		mline:     -1,
		direction: direction,
	}
	tr.sender = newRtpSender(pc, kind, streamIDs)
	tr.sender.tr = tr
	tr.receiver = &rtpReceiver{pc: pc, kind: kind}
	return tr
}

func (tr *rtpTransceiver) Mid() string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.mid
}

func (tr *rtpTransceiver) MlineIndex() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.mline
}

func (tr *rtpTransceiver) MediaKind() engine.MediaKind {
	return tr.kind
}

func (tr *rtpTransceiver) Direction() engine.Direction {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.direction
}

func (tr *rtpTransceiver) SetDirection(d engine.Direction) error {
	if d < engine.DirectionSendRecv || d > engine.DirectionInactive {
		return errors.New("unknown direction")
	}
	tr.mu.Lock()
	if tr.direction == d {
		tr.mu.Unlock()
		return nil
	}
	tr.direction = d
	pc := tr.pc
	tr.mu.Unlock()
	pc.postRenegotiationNeeded()
	return nil
}

func (tr *rtpTransceiver) CurrentDirection() (engine.Direction, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.current, tr.hasCurrent
}

func (tr *rtpTransceiver) Sender() engine.RTPSender {
	return tr.sender
}

func (tr *rtpTransceiver) Receiver() engine.RTPReceiver {
	return tr.receiver
}

func (tr *rtpTransceiver) associate(mid string, mline int) {
	tr.mu.Lock()
	tr.mid = mid
	tr.mline = mline
	tr.mu.Unlock()
}

func (tr *rtpTransceiver) setRemote(d engine.Direction) {
	tr.mu.Lock()
	tr.remoteDir = d
	tr.hasRemote = true
	tr.mu.Unlock()
}

func (tr *rtpTransceiver) setCurrent(d engine.Direction) {
	tr.mu.Lock()
	tr.current = d
	tr.hasCurrent = true
	tr.mu.Unlock()
}

// rtpSender pushes one local track's packets to the peer the connection is
// wired to, once negotiation activated its send component.
type rtpSender struct {
	pc          *PeerConnection
	kind        engine.MediaKind
	ssrc        uint32
	payloadType uint8
	mimeType    string
	clockRate   uint32
	tr          *rtpTransceiver

	mu        sync.Mutex
	track     *localTrack
	streamIDs []string
	active    bool
	bound     bool
	info      *interceptor.StreamInfo
	writer    interceptor.RTPWriter
}

func newRtpSender(pc *PeerConnection, kind engine.MediaKind, streamIDs []string) *rtpSender {
	s := &rtpSender{
		pc:        pc,
		kind:      kind,
		ssrc:      nextSSRC(),
		streamIDs: append([]string(nil), streamIDs...),
	}
	switch kind {
	case engine.MediaKindVideo:
		s.payloadType = 96
		s.mimeType = webrtc.MimeTypeVP8
		s.clockRate = 90000
	default:
		s.payloadType = 111
		s.mimeType = webrtc.MimeTypeOpus
		s.clockRate = 48000
	}
	return s
}

func (s *rtpSender) SetTrack(track engine.LocalMediaTrack) error {
	var lt *localTrack
	if track != nil {
		cast, ok := track.(*localTrack)
		if !ok {
			return errors.New("track from a different engine")
		}
		if cast.kind != s.kind {
			return errors.New("track kind does not match sender")
		}
		lt = cast
	}
	s.mu.Lock()
	old := s.track
	s.track = lt
	s.mu.Unlock()
	if old != nil && old != lt {
		old.attach(nil)
	}
	if lt != nil {
		lt.attach(s)
	}
	s.rebind()
	return nil
}

func (s *rtpSender) Track() engine.LocalMediaTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return nil
	}
	return s.track
}

func (s *rtpSender) firstStreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streamIDs) == 0 {
		return ""
	}
	return s.streamIDs[0]
}

func (s *rtpSender) setActive(active bool) {
	s.mu.Lock()
	changed := s.active != active
	s.active = active
	s.mu.Unlock()
	if changed {
		s.rebind()
	}
}

// rebind updates the interceptor binding to reflect whether the sender is
// currently able to produce a stream.
func (s *rtpSender) rebind() {
	chain := s.pc.interceptor
	if chain == nil {
		return
	}
	s.mu.Lock()
	want := s.active && s.track != nil
	if want == s.bound {
		s.mu.Unlock()
		return
	}
	if !want {
		info := s.info
		s.bound = false
		s.info = nil
		s.writer = nil
		s.mu.Unlock()
		chain.UnbindLocalStream(info)
		return
	}
	info := &interceptor.StreamInfo{
		ID:          s.track.id,
		SSRC:        s.ssrc,
		PayloadType: s.payloadType,
		MimeType:    s.mimeType,
		ClockRate:   s.clockRate,
	}
	s.bound = true
	s.info = info
	s.mu.Unlock()
	writer := chain.BindLocalStream(info, interceptor.RTPWriterFunc(
		func(header *rtp.Header, payload []byte, _ interceptor.Attributes) (int, error) {
			return s.deliver(header, payload)
		}))
	s.mu.Lock()
	if s.bound {
		s.writer = writer
	}
	s.mu.Unlock()
}

func (s *rtpSender) writeRTP(p *rtp.Packet) error {
	s.mu.Lock()
	active := s.active
	writer := s.writer
	s.mu.Unlock()
	if !active {
		return nil
	}
	header := p.Header
	header.SSRC = s.ssrc
	header.PayloadType = s.payloadType
	if writer != nil {
		_, err := writer.Write(&header, p.Payload, nil)
		return err
	}
	_, err := s.deliver(&header, p.Payload)
	return err
}

func (s *rtpSender) deliver(header *rtp.Header, payload []byte) (int, error) {
	buffer := s.pc.lookupPeerTrackBuffer(s)
	if buffer == nil {
		return len(payload), nil
	}
	pkt := rtp.Packet{Header: *header, Payload: payload}
	raw, err := pkt.Marshal()
	if err != nil {
		return 0, err
	}
	return buffer.Write(raw)
}

func (s *rtpSender) deliverRTCP(pkt rtcp.Packet) {
	s.mu.Lock()
	track := s.track
	s.mu.Unlock()
	if track != nil {
		track.deliverRTCP(pkt)
	}
}

func (s *rtpSender) detach() {
	s.setActive(false)
	s.mu.Lock()
	track := s.track
	s.track = nil
	s.mu.Unlock()
	if track != nil {
		track.attach(nil)
	}
}

// rtpReceiver holds the receiving side of one announced remote stream.
type rtpReceiver struct {
	pc   *PeerConnection
	kind engine.MediaKind

	mu        sync.Mutex
	streamIDs []string
	track     *remoteTrack
	announced bool
}

func (r *rtpReceiver) Track() engine.RemoteMediaTrack {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.track == nil {
		return nil
	}
	return r.track
}

func (r *rtpReceiver) MediaKind() engine.MediaKind {
	return r.kind
}

func (r *rtpReceiver) StreamIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.streamIDs...)
}

func (r *rtpReceiver) setStreamIDs(ids []string) {
	r.mu.Lock()
	r.streamIDs = append([]string(nil), ids...)
	r.mu.Unlock()
}

func (r *rtpReceiver) trackBuffer() *packetio.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.announced || r.track == nil {
		return nil
	}
	return r.track.buf
}
