package mock

import (
	"io"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/transport/packetio"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

var (
	_ engine.LocalMediaTrack  = (*localTrack)(nil)
	_ engine.RemoteMediaTrack = (*remoteTrack)(nil)
)

// localTrack is a factory-created media source. It knows at most one
// sender at a time; packets written while detached are dropped.
type localTrack struct {
	id   string
	kind engine.MediaKind

	mu     sync.Mutex
	sender *rtpSender
	onRTCP func(pkt rtcp.Packet)
	closed bool
}

func (t *localTrack) ID() string {
	return t.id
}

func (t *localTrack) Kind() engine.MediaKind {
	return t.kind
}

func (t *localTrack) WriteRTP(p *rtp.Packet) error {
	t.mu.Lock()
	closed := t.closed
	sender := t.sender
	t.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	if sender == nil {
		return nil
	}
	return sender.writeRTP(p)
}

func (t *localTrack) OnRTCP(fn func(pkt rtcp.Packet)) {
	t.mu.Lock()
	t.onRTCP = fn
	t.mu.Unlock()
}

func (t *localTrack) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sender := t.sender
	t.mu.Unlock()
	if sender != nil {
		return sender.SetTrack(nil)
	}
	return nil
}

func (t *localTrack) attach(sender *rtpSender) {
	t.mu.Lock()
	t.sender = sender
	t.mu.Unlock()
}

func (t *localTrack) deliverRTCP(pkt rtcp.Packet) {
	t.mu.Lock()
	fn := t.onRTCP
	t.mu.Unlock()
	if fn != nil {
		fn(pkt)
	}
}

// remoteTrack buffers packets delivered by the wired peer until the
// application reads them. Closing the buffer ends the track with io.EOF.
type remoteTrack struct {
	id   string
	kind engine.MediaKind
	buf  *packetio.Buffer
	recv *rtpReceiver
}

func newRemoteTrack(id string, kind engine.MediaKind, recv *rtpReceiver) *remoteTrack {
	return &remoteTrack{id: id, kind: kind, buf: packetio.NewBuffer(), recv: recv}
}

func (t *remoteTrack) ID() string {
	return t.id
}

func (t *remoteTrack) Kind() engine.MediaKind {
	return t.kind
}

func (t *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	raw := make([]byte, 1600)
	n, err := t.buf.Read(raw)
	if err != nil {
		return nil, err
	}
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(raw[:n]); err != nil {
		return nil, err
	}
	return pkt, nil
}

func (t *remoteTrack) RequestKeyFrame() error {
	return t.recv.pc.requestKeyFrame(t.recv)
}

func (t *remoteTrack) close() {
	t.buf.Close()
}
