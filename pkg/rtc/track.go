package rtc

import (
	"fmt"
	"io"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/tevino/abool"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
	"github.com/mrsw/go-webrtc-interop/pkg/sdputil"
)

// LocalTrack is a media source the application feeds and attaches to a
// transceiver for sending.
type LocalTrack struct {
	impl engine.LocalMediaTrack
	kind engine.MediaKind

	mu sync.Mutex
	tr *Transceiver
}

// NewLocalAudioTrack creates an audio track backed by the given engine. An
// empty trackID gets a random one.
func NewLocalAudioTrack(factory engine.Factory, trackID string) (*LocalTrack, error) {
	return newLocalTrack(factory, engine.MediaKindAudio, trackID)
}

// NewLocalVideoTrack creates a video track backed by the given engine. An
// empty trackID gets a random one.
func NewLocalVideoTrack(factory engine.Factory, trackID string) (*LocalTrack, error) {
	return newLocalTrack(factory, engine.MediaKindVideo, trackID)
}

func newLocalTrack(factory engine.Factory, kind engine.MediaKind, trackID string) (*LocalTrack, error) {
	if trackID == "" {
		trackID = sdputil.RandomToken()
	}
	if !sdputil.IsValidToken(trackID) {
		return nil, fmt.Errorf("invalid track ID %q: %w", trackID, ErrInvalidParameter)
	}
	var impl engine.LocalMediaTrack
	var err error
	switch kind {
	case engine.MediaKindAudio:
		impl, err = factory.CreateAudioTrack(trackID)
	case engine.MediaKindVideo:
		impl, err = factory.CreateVideoTrack(trackID)
	default:
		return nil, fmt.Errorf("unknown media kind %d: %w", int(kind), ErrInvalidParameter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}
	return &LocalTrack{impl: impl, kind: kind}, nil
}

// ID returns the track ID.
func (t *LocalTrack) ID() string {
	return t.impl.ID()
}

// Kind returns the media kind of the track.
func (t *LocalTrack) Kind() engine.MediaKind {
	return t.kind
}

// Transceiver returns the transceiver the track is attached to, or nil.
func (t *LocalTrack) Transceiver() *Transceiver {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tr
}

// WriteRTP pushes one packet into the track. Packets written while the
// track is detached, or attached to a transceiver that is not negotiated to
// send, are dropped by the engine.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	return t.impl.WriteRTP(p)
}

// OnRTCP registers a callback for RTCP feedback addressed to the track.
func (t *LocalTrack) OnRTCP(fn func(pkt rtcp.Packet)) {
	t.impl.OnRTCP(fn)
}

// Close releases the track. A track still attached to a transceiver is
// detached first.
func (t *LocalTrack) Close() error {
	t.mu.Lock()
	tr := t.tr
	t.mu.Unlock()
	if tr != nil {
		if err := tr.SetLocalTrack(nil); err != nil {
			return err
		}
	}
	return t.impl.Close()
}

func (t *LocalTrack) attachTo(tr *Transceiver) {
	t.mu.Lock()
	t.tr = tr
	t.mu.Unlock()
}

// RemoteTrack is a media track received from the remote peer. It stays
// readable until the remote stops sending or the peer connection closes,
// after which ReadRTP returns io.EOF.
type RemoteTrack struct {
	impl engine.RemoteMediaTrack
	tr   *Transceiver
	live *abool.AtomicBool
}

func newRemoteTrack(impl engine.RemoteMediaTrack, tr *Transceiver) *RemoteTrack {
	return &RemoteTrack{impl: impl, tr: tr, live: abool.NewBool(true)}
}

// ID returns the track ID.
func (t *RemoteTrack) ID() string {
	return t.impl.ID()
}

// Kind returns the media kind of the track.
func (t *RemoteTrack) Kind() engine.MediaKind {
	return t.impl.Kind()
}

// Transceiver returns the transceiver receiving the track.
func (t *RemoteTrack) Transceiver() *Transceiver {
	return t.tr
}

// ReadRTP blocks until the next packet arrives and returns io.EOF once the
// track ends.
func (t *RemoteTrack) ReadRTP() (*rtp.Packet, error) {
	if t.live.IsNotSet() {
		return nil, io.EOF
	}
	return t.impl.ReadRTP()
}

// RequestKeyFrame asks the remote sender for a keyframe.
func (t *RemoteTrack) RequestKeyFrame() error {
	if t.live.IsNotSet() {
		return fmt.Errorf("track ended: %w", ErrInvalidOperation)
	}
	return t.impl.RequestKeyFrame()
}

func (t *RemoteTrack) invalidate() {
	t.live.UnSet()
}
