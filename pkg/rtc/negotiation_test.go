package rtc_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
	"github.com/mrsw/go-webrtc-interop/pkg/mock"
	"github.com/mrsw/go-webrtc-interop/pkg/rtc"
	"github.com/mrsw/go-webrtc-interop/pkg/utils"
)

const eventTimeout = 3 * time.Second

func init() {
	utils.SetLogLevel("debug")
}

// sessionPair runs two peer connections against one emulated engine, with
// ICE candidates pumped both ways.
type sessionPair struct {
	factory *mock.Factory
	caller  *rtc.PeerConnection
	callee  *rtc.PeerConnection
}

func newSessionPair(t *testing.T, sem engine.SdpSemantics) *sessionPair {
	t.Helper()
	f := mock.NewFactory()
	caller, err := rtc.NewPeerConnection(f, rtc.Config{Name: "caller", SdpSemantics: sem})
	require.NoError(t, err)
	callee, err := rtc.NewPeerConnection(f, rtc.Config{Name: "callee", SdpSemantics: sem})
	require.NoError(t, err)
	require.NoError(t, mock.Wire(caller.Engine(), callee.Engine()))
	caller.OnIceCandidate(func(c webrtc.ICECandidateInit) {
		callee.AddIceCandidate(c)
	})
	callee.OnIceCandidate(func(c webrtc.ICECandidateInit) {
		caller.AddIceCandidate(c)
	})
	t.Cleanup(func() {
		caller.Close()
		callee.Close()
		f.Close()
	})
	return &sessionPair{factory: f, caller: caller, callee: callee}
}

// negotiate drives one full offer/answer round caller to callee.
func (p *sessionPair) negotiate(t *testing.T) {
	t.Helper()
	offer, err := p.caller.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, p.callee.SetRemoteDescription(offer))
	answer, err := p.callee.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, p.caller.SetRemoteDescription(answer))
}

func TestUnifiedPlanNegotiation(t *testing.T) {
	p := newSessionPair(t, engine.SdpSemanticsUnifiedPlan)

	calleeAdded := make(chan rtc.TransceiverAddedEvent, 16)
	p.callee.OnTransceiverAdded(func(ev rtc.TransceiverAddedEvent) {
		calleeAdded <- ev
	})
	calleeTracks := make(chan rtc.TrackAddedEvent, 16)
	p.callee.OnTrackAdded(func(ev rtc.TrackAddedEvent) {
		calleeTracks <- ev
	})

	tr, err := p.caller.AddTransceiver(engine.MediaKindAudio, rtc.TransceiverInit{
		Name:             "mic",
		StreamIDs:        []string{"stream0"},
		DesiredDirection: rtc.DirectionSendRecv,
	})
	require.NoError(t, err)
	if got := tr.MlineIndex(); got != -1 {
		t.Errorf("MlineIndex before offer = %d; want -1", got)
	}
	if tr.NegotiatedDirection().IsSet() {
		t.Error("NegotiatedDirection set before first negotiation")
	}

	p.negotiate(t)

	if got := tr.MlineIndex(); got != 0 {
		t.Errorf("MlineIndex after offer = %d; want 0", got)
	}
	// Callee answered recvonly, so the caller settles on sendonly.
	if got := tr.NegotiatedDirection(); got != rtc.OptionalSendOnly {
		t.Errorf("caller NegotiatedDirection = %s; want sendonly", got)
	}
	if got := tr.DesiredDirection(); got != rtc.DirectionSendRecv {
		t.Errorf("caller DesiredDirection = %s; want sendrecv", got)
	}

	var calleeEv rtc.TransceiverAddedEvent
	select {
	case calleeEv = <-calleeAdded:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for callee transceiver")
	}
	calleeTr := calleeEv.Transceiver
	if calleeTr.Name() != "0" {
		t.Errorf("callee transceiver name = %q; want mid %q", calleeTr.Name(), "0")
	}
	if got := calleeTr.MlineIndex(); got != 0 {
		t.Errorf("callee MlineIndex = %d; want 0", got)
	}
	if got := calleeTr.DesiredDirection(); got != rtc.DirectionRecvOnly {
		t.Errorf("callee DesiredDirection = %s; want recvonly", got)
	}
	if got := calleeTr.NegotiatedDirection(); got != rtc.OptionalRecvOnly {
		t.Errorf("callee NegotiatedDirection = %s; want recvonly", got)
	}

	var trackEv rtc.TrackAddedEvent
	select {
	case trackEv = <-calleeTracks:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for remote track")
	}
	if trackEv.Transceiver != calleeTr {
		t.Error("remote track paired with a different transceiver")
	}
	if got := trackEv.Track.Kind(); got != engine.MediaKindAudio {
		t.Errorf("remote track kind = %s; want audio", got)
	}

	// Media flows caller to callee once a local track is attached.
	local, err := rtc.NewLocalAudioTrack(p.factory, "mic0")
	require.NoError(t, err)
	require.NoError(t, tr.SetLocalTrack(local))
	if local.Transceiver() != tr {
		t.Error("local track not attached to the transceiver")
	}
	for seq := uint16(1); seq <= 3; seq++ {
		require.NoError(t, local.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Version: 2, SequenceNumber: seq, Timestamp: uint32(seq) * 960},
			Payload: []byte("opus"),
		}))
	}
	for seq := uint16(1); seq <= 3; seq++ {
		pkt, err := trackEv.Track.ReadRTP()
		require.NoError(t, err)
		if pkt.SequenceNumber != seq {
			t.Errorf("packet %d sequence = %d", seq, pkt.SequenceNumber)
		}
		if string(pkt.Payload) != "opus" {
			t.Errorf("packet payload = %q; want %q", pkt.Payload, "opus")
		}
	}
}

func TestUnifiedPlanDirectionChange(t *testing.T) {
	p := newSessionPair(t, engine.SdpSemanticsUnifiedPlan)

	reneg := make(chan struct{}, 16)
	p.caller.OnRenegotiationNeeded(func() {
		reneg <- struct{}{}
	})
	calleeTracks := make(chan rtc.TrackAddedEvent, 16)
	p.callee.OnTrackAdded(func(ev rtc.TrackAddedEvent) {
		calleeTracks <- ev
	})
	calleeRemovals := make(chan rtc.TrackRemovedEvent, 16)
	p.callee.OnTrackRemoved(func(ev rtc.TrackRemovedEvent) {
		calleeRemovals <- ev
	})
	callerUpdates := make(chan rtc.TransceiverStateUpdatedEvent, 16)
	p.caller.OnTransceiverStateUpdated(func(ev rtc.TransceiverStateUpdatedEvent) {
		callerUpdates <- ev
	})

	tr, err := p.caller.AddTransceiver(engine.MediaKindVideo, rtc.TransceiverInit{
		Name:             "cam",
		DesiredDirection: rtc.DirectionSendOnly,
	})
	require.NoError(t, err)
	select {
	case <-reneg:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for renegotiation request after add")
	}

	p.negotiate(t)
	var trackEv rtc.TrackAddedEvent
	select {
	case trackEv = <-calleeTracks:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for remote track")
	}

	// Drain the updates of the first round, then stop sending.
	for len(callerUpdates) > 0 {
		<-callerUpdates
	}
	require.NoError(t, tr.SetDirection(rtc.DirectionInactive))
	select {
	case <-reneg:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for renegotiation request after direction change")
	}
	var updateEv rtc.TransceiverStateUpdatedEvent
	select {
	case updateEv = <-callerUpdates:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for state update")
	}
	if updateEv.Reason != rtc.ReasonSetDirection {
		t.Errorf("update reason = %s; want SetDirection", updateEv.Reason)
	}
	if updateEv.DesiredDirection != rtc.DirectionInactive {
		t.Errorf("update desired = %s; want inactive", updateEv.DesiredDirection)
	}

	p.negotiate(t)

	if got := tr.NegotiatedDirection(); got != rtc.OptionalInactive {
		t.Errorf("caller NegotiatedDirection = %s; want inactive", got)
	}
	var removedEv rtc.TrackRemovedEvent
	select {
	case removedEv = <-calleeRemovals:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for track removal")
	}
	if removedEv.Track != trackEv.Track {
		t.Error("removal names a different track")
	}
	if _, err := removedEv.Track.ReadRTP(); err != io.EOF {
		t.Errorf("ReadRTP on removed track = %v; want io.EOF", err)
	}
}

func TestPlanBNegotiation(t *testing.T) {
	p := newSessionPair(t, engine.SdpSemanticsPlanB)

	reneg := make(chan struct{}, 16)
	p.caller.OnRenegotiationNeeded(func() {
		reneg <- struct{}{}
	})
	calleeAdded := make(chan rtc.TransceiverAddedEvent, 16)
	p.callee.OnTransceiverAdded(func(ev rtc.TransceiverAddedEvent) {
		calleeAdded <- ev
	})
	calleeTracks := make(chan rtc.TrackAddedEvent, 16)
	p.callee.OnTrackAdded(func(ev rtc.TrackAddedEvent) {
		calleeTracks <- ev
	})
	calleeRemovals := make(chan rtc.TrackRemovedEvent, 16)
	p.callee.OnTrackRemoved(func(ev rtc.TrackRemovedEvent) {
		calleeRemovals <- ev
	})

	tr, err := p.caller.AddTransceiver(engine.MediaKindAudio, rtc.TransceiverInit{
		Name:             "voice",
		StreamIDs:        []string{"local_av"},
		DesiredDirection: rtc.DirectionSendOnly,
	})
	require.NoError(t, err)
	// Plan B has no engine transceiver to notice the change, so the
	// wrapper itself must have requested the renegotiation.
	select {
	case <-reneg:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for renegotiation request")
	}

	local, err := rtc.NewLocalAudioTrack(p.factory, "voice0")
	require.NoError(t, err)
	require.NoError(t, tr.SetLocalTrack(local))

	p.negotiate(t)

	if got := tr.NegotiatedDirection(); got != rtc.OptionalSendOnly {
		t.Errorf("caller NegotiatedDirection = %s; want sendonly", got)
	}

	// The callee pairs the remote track through the encoded stream ID.
	var calleeEv rtc.TransceiverAddedEvent
	select {
	case calleeEv = <-calleeAdded:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for callee transceiver")
	}
	calleeTr := calleeEv.Transceiver
	if got := calleeTr.Name(); got != "mrsw#0" {
		t.Errorf("callee transceiver name = %q; want %q", got, "mrsw#0")
	}
	if got := calleeTr.MlineIndex(); got != 0 {
		t.Errorf("callee MlineIndex = %d; want 0", got)
	}
	ids := calleeTr.StreamIDs()
	if len(ids) != 1 || ids[0] != "local_av" {
		t.Errorf("callee StreamIDs = %v; want [local_av]", ids)
	}

	var trackEv rtc.TrackAddedEvent
	select {
	case trackEv = <-calleeTracks:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for remote track")
	}
	if got := calleeTr.NegotiatedDirection(); got != rtc.OptionalRecvOnly {
		t.Errorf("callee NegotiatedDirection = %s; want recvonly", got)
	}

	require.NoError(t, local.WriteRTP(&rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: 9},
		Payload: []byte("pcm"),
	}))
	pkt, err := trackEv.Track.ReadRTP()
	require.NoError(t, err)
	if pkt.SequenceNumber != 9 || string(pkt.Payload) != "pcm" {
		t.Errorf("received %d/%q; want 9/pcm", pkt.SequenceNumber, pkt.Payload)
	}

	// Going inactive removes the sender and with it the announced stream.
	require.NoError(t, tr.SetDirection(rtc.DirectionInactive))
	p.negotiate(t)

	if got := tr.NegotiatedDirection(); got != rtc.OptionalInactive {
		t.Errorf("caller NegotiatedDirection after stop = %s; want inactive", got)
	}
	select {
	case <-calleeRemovals:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for track removal")
	}
	if _, err := trackEv.Track.ReadRTP(); err != io.EOF {
		t.Errorf("ReadRTP on removed track = %v; want io.EOF", err)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	p := newSessionPair(t, engine.SdpSemanticsUnifiedPlan)
	require.NoError(t, p.caller.Close())

	if got := p.caller.SignalingState(); got != engine.SignalingStateClosed {
		t.Errorf("SignalingState = %s; want closed", got)
	}
	if _, err := p.caller.AddTransceiver(engine.MediaKindAudio, rtc.TransceiverInit{}); !errors.Is(err, rtc.ErrPeerConnectionClosed) {
		t.Errorf("AddTransceiver error = %v; want ErrPeerConnectionClosed", err)
	}
	if _, err := p.caller.CreateOffer(); !errors.Is(err, rtc.ErrPeerConnectionClosed) {
		t.Errorf("CreateOffer error = %v; want ErrPeerConnectionClosed", err)
	}
	if _, err := p.caller.CreateAnswer(); !errors.Is(err, rtc.ErrPeerConnectionClosed) {
		t.Errorf("CreateAnswer error = %v; want ErrPeerConnectionClosed", err)
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	if err := p.caller.SetRemoteDescription(desc); !errors.Is(err, rtc.ErrPeerConnectionClosed) {
		t.Errorf("SetRemoteDescription error = %v; want ErrPeerConnectionClosed", err)
	}
	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"}
	if err := p.caller.AddIceCandidate(candidate); !errors.Is(err, rtc.ErrPeerConnectionClosed) {
		t.Errorf("AddIceCandidate error = %v; want ErrPeerConnectionClosed", err)
	}
	if _, err := p.caller.AddDataChannel(-1, "x", true, true); !errors.Is(err, rtc.ErrPeerConnectionClosed) {
		t.Errorf("AddDataChannel error = %v; want ErrPeerConnectionClosed", err)
	}
	// Close is idempotent.
	require.NoError(t, p.caller.Close())
}

func TestCloseReportsLiveObjects(t *testing.T) {
	p := newSessionPair(t, engine.SdpSemanticsUnifiedPlan)

	calleeTracks := make(chan rtc.TrackAddedEvent, 16)
	p.callee.OnTrackAdded(func(ev rtc.TrackAddedEvent) {
		calleeTracks <- ev
	})
	removed := make(chan rtc.TrackRemovedEvent, 16)
	p.callee.OnTrackRemoved(func(ev rtc.TrackRemovedEvent) {
		removed <- ev
	})
	dcRemoved := make(chan *rtc.DataChannel, 16)
	p.callee.OnDataChannelRemoved(func(dc *rtc.DataChannel) {
		dcRemoved <- dc
	})
	announced := make(chan *rtc.DataChannel, 16)
	p.callee.OnDataChannelAdded(func(dc *rtc.DataChannel) {
		announced <- dc
	})

	_, err := p.caller.AddTransceiver(engine.MediaKindAudio, rtc.TransceiverInit{
		DesiredDirection: rtc.DirectionSendOnly,
	})
	require.NoError(t, err)
	_, err = p.caller.AddDataChannel(-1, "chat", true, true)
	require.NoError(t, err)
	p.negotiate(t)

	var trackEv rtc.TrackAddedEvent
	select {
	case trackEv = <-calleeTracks:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for remote track")
	}
	select {
	case <-announced:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for data channel announcement")
	}

	// Closing reports everything still live as removed.
	require.NoError(t, p.callee.Close())
	select {
	case ev := <-removed:
		if ev.Track != trackEv.Track {
			t.Error("close removed a different track")
		}
	default:
		t.Error("close fired no track removal")
	}
	select {
	case <-dcRemoved:
	default:
		t.Error("close fired no data channel removal")
	}
	if _, err := trackEv.Track.ReadRTP(); err != io.EOF {
		t.Errorf("ReadRTP after close = %v; want io.EOF", err)
	}
}
