package mock_test

import (
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
	"github.com/mrsw/go-webrtc-interop/pkg/mock"
)

const eventTimeout = 3 * time.Second

// testObserver funnels engine events into buffered channels.
type testObserver struct {
	signaling  chan engine.SignalingState
	reneg      chan struct{}
	tracks     chan engine.RTPReceiver
	removals   chan engine.RTPReceiver
	channels   chan engine.DataChannel
	candidates chan webrtc.ICECandidateInit
	ice        chan engine.IceState
}

func newTestObserver() *testObserver {
	return &testObserver{
		signaling:  make(chan engine.SignalingState, 32),
		reneg:      make(chan struct{}, 32),
		tracks:     make(chan engine.RTPReceiver, 32),
		removals:   make(chan engine.RTPReceiver, 32),
		channels:   make(chan engine.DataChannel, 32),
		candidates: make(chan webrtc.ICECandidateInit, 32),
		ice:        make(chan engine.IceState, 32),
	}
}

func (o *testObserver) OnSignalingChange(state engine.SignalingState) { o.signaling <- state }
func (o *testObserver) OnRenegotiationNeeded()                        { o.reneg <- struct{}{} }
func (o *testObserver) OnAddTrack(receiver engine.RTPReceiver, streamIDs []string) {
	o.tracks <- receiver
}
func (o *testObserver) OnRemoveTrack(receiver engine.RTPReceiver) { o.removals <- receiver }
func (o *testObserver) OnDataChannel(channel engine.DataChannel)  { o.channels <- channel }
func (o *testObserver) OnIceCandidate(candidate webrtc.ICECandidateInit) {
	o.candidates <- candidate
}
func (o *testObserver) OnIceStateChange(state engine.IceState) { o.ice <- state }

func wantSignaling(t *testing.T, obs *testObserver, want engine.SignalingState) {
	t.Helper()
	select {
	case got := <-obs.signaling:
		if got != want {
			t.Errorf("signaling state = %s; want %s", got, want)
		}
	case <-time.After(eventTimeout):
		t.Fatalf("timed out waiting for signaling state %s", want)
	}
}

type enginePair struct {
	factory *mock.Factory
	a, b    engine.PeerConnection
	obsA    *testObserver
	obsB    *testObserver
}

func newEnginePair(t *testing.T, sem engine.SdpSemantics) *enginePair {
	t.Helper()
	f := mock.NewFactory()
	obsA, obsB := newTestObserver(), newTestObserver()
	a, err := f.CreatePeerConnection(engine.Config{SdpSemantics: sem}, obsA)
	require.NoError(t, err)
	b, err := f.CreatePeerConnection(engine.Config{SdpSemantics: sem}, obsB)
	require.NoError(t, err)
	require.NoError(t, mock.Wire(a, b))
	t.Cleanup(func() {
		f.Close()
	})
	return &enginePair{factory: f, a: a, b: b, obsA: obsA, obsB: obsB}
}

func (p *enginePair) round(t *testing.T) {
	t.Helper()
	offer, err := p.a.CreateOffer(engine.OfferOptions{})
	require.NoError(t, err)
	require.NoError(t, p.a.SetLocalDescription(offer))
	require.NoError(t, p.b.SetRemoteDescription(offer))
	answer, err := p.b.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, p.b.SetLocalDescription(answer))
	require.NoError(t, p.a.SetRemoteDescription(answer))
}

func TestOfferAnswerStateMachine(t *testing.T) {
	p := newEnginePair(t, engine.SdpSemanticsUnifiedPlan)

	_, err := p.a.AddTransceiver(engine.MediaKindAudio, engine.TransceiverInit{
		Direction: engine.DirectionSendRecv,
	})
	require.NoError(t, err)
	select {
	case <-p.obsA.reneg:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for renegotiation needed")
	}

	if _, err := p.a.CreateAnswer(); err == nil {
		t.Error("CreateAnswer without a remote offer succeeded")
	}

	offer, err := p.a.CreateOffer(engine.OfferOptions{})
	require.NoError(t, err)
	require.NoError(t, p.a.SetLocalDescription(offer))
	wantSignaling(t, p.obsA, engine.SignalingStateHaveLocalOffer)
	if _, err := p.a.CreateOffer(engine.OfferOptions{}); err == nil {
		t.Error("CreateOffer while awaiting an answer succeeded")
	}

	require.NoError(t, p.b.SetRemoteDescription(offer))
	wantSignaling(t, p.obsB, engine.SignalingStateHaveRemoteOffer)
	if _, err := p.b.CreateOffer(engine.OfferOptions{}); err == nil {
		t.Error("CreateOffer with a pending remote offer succeeded")
	}

	answer, err := p.b.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, p.b.SetLocalDescription(answer))
	wantSignaling(t, p.obsB, engine.SignalingStateStable)

	require.NoError(t, p.a.SetRemoteDescription(answer))
	wantSignaling(t, p.obsA, engine.SignalingStateStable)

	trs := p.a.GetTransceivers()
	if len(trs) != 1 {
		t.Fatalf("transceivers = %d; want 1", len(trs))
	}
	if got := trs[0].Mid(); got != "0" {
		t.Errorf("mid = %q; want %q", got, "0")
	}
	if got := trs[0].MlineIndex(); got != 0 {
		t.Errorf("m-line = %d; want 0", got)
	}
	if cur, ok := trs[0].CurrentDirection(); !ok || cur != engine.DirectionSendOnly {
		t.Errorf("current direction = %v/%v; want sendonly/true", cur, ok)
	}
}

func TestIceConnectivity(t *testing.T) {
	p := newEnginePair(t, engine.SdpSemanticsUnifiedPlan)
	_, err := p.a.AddTransceiver(engine.MediaKindAudio, engine.TransceiverInit{
		Direction: engine.DirectionSendRecv,
	})
	require.NoError(t, err)
	p.round(t)

	// Candidates cross only when the test forwards them.
	select {
	case c := <-p.obsA.candidates:
		require.NoError(t, p.b.AddIceCandidate(c))
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for a's candidate")
	}
	select {
	case c := <-p.obsB.candidates:
		require.NoError(t, p.a.AddIceCandidate(c))
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for b's candidate")
	}

	for _, obs := range []*testObserver{p.obsA, p.obsB} {
		for _, want := range []engine.IceState{engine.IceStateChecking, engine.IceStateConnected} {
			select {
			case got := <-obs.ice:
				if got != want {
					t.Errorf("ice state = %s; want %s", got, want)
				}
			case <-time.After(eventTimeout):
				t.Fatalf("timed out waiting for ice state %s", want)
			}
		}
	}
}

func TestKeyFrameRequestFeedback(t *testing.T) {
	p := newEnginePair(t, engine.SdpSemanticsUnifiedPlan)

	tr, err := p.a.AddTransceiver(engine.MediaKindVideo, engine.TransceiverInit{
		Direction: engine.DirectionSendOnly,
	})
	require.NoError(t, err)
	track, err := p.factory.CreateVideoTrack("cam0")
	require.NoError(t, err)
	require.NoError(t, tr.Sender().SetTrack(track))
	feedback := make(chan rtcp.Packet, 4)
	track.OnRTCP(func(pkt rtcp.Packet) {
		feedback <- pkt
	})

	p.round(t)

	var receiver engine.RTPReceiver
	select {
	case receiver = <-p.obsB.tracks:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for remote track")
	}
	require.NoError(t, receiver.Track().RequestKeyFrame())
	select {
	case pkt := <-feedback:
		if _, ok := pkt.(*rtcp.PictureLossIndication); !ok {
			t.Errorf("feedback packet = %T; want *rtcp.PictureLossIndication", pkt)
		}
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for keyframe feedback")
	}
}

func TestInterceptorChainPassesMedia(t *testing.T) {
	f := mock.NewFactory()
	t.Cleanup(func() {
		f.Close()
	})
	f.SetInterceptorRegistry(&interceptor.Registry{})

	obsA, obsB := newTestObserver(), newTestObserver()
	a, err := f.CreatePeerConnection(engine.Config{}, obsA)
	require.NoError(t, err)
	b, err := f.CreatePeerConnection(engine.Config{}, obsB)
	require.NoError(t, err)
	require.NoError(t, mock.Wire(a, b))

	tr, err := a.AddTransceiver(engine.MediaKindAudio, engine.TransceiverInit{
		Direction: engine.DirectionSendOnly,
	})
	require.NoError(t, err)
	track, err := f.CreateAudioTrack("a0")
	require.NoError(t, err)
	require.NoError(t, tr.Sender().SetTrack(track))

	offer, err := a.CreateOffer(engine.OfferOptions{})
	require.NoError(t, err)
	require.NoError(t, a.SetLocalDescription(offer))
	require.NoError(t, b.SetRemoteDescription(offer))
	answer, err := b.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, b.SetLocalDescription(answer))
	require.NoError(t, a.SetRemoteDescription(answer))

	var receiver engine.RTPReceiver
	select {
	case receiver = <-obsB.tracks:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for remote track")
	}
	require.NoError(t, track.WriteRTP(&rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: 42},
		Payload: []byte("data"),
	}))
	pkt, err := receiver.Track().ReadRTP()
	require.NoError(t, err)
	if pkt.SequenceNumber != 42 {
		t.Errorf("sequence = %d; want 42", pkt.SequenceNumber)
	}
}

func TestFactoryClose(t *testing.T) {
	f := mock.NewFactory()
	obs := newTestObserver()
	pc, err := f.CreatePeerConnection(engine.Config{}, obs)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	if _, err := f.CreatePeerConnection(engine.Config{}, obs); err == nil {
		t.Error("CreatePeerConnection on closed factory succeeded")
	}
	if _, err := f.CreateAudioTrack(""); err == nil {
		t.Error("CreateAudioTrack on closed factory succeeded")
	}
	if _, err := pc.CreateOffer(engine.OfferOptions{}); err == nil {
		t.Error("CreateOffer on closed connection succeeded")
	}
	// Closing again is a no-op.
	require.NoError(t, f.Close())
}
