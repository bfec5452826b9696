// Package mock implements the engine boundary in-process, without any
// media stack or network. It runs a JSEP-style offer/answer state machine
// over real SDP bodies, delivers RTP between wired peer connections
// through per-track buffers, surfaces keyframe requests as RTCP feedback
// on the sending track, and announces in-band data channels like a real
// SCTP transport would. Tests and examples drive the negotiation layer
// against it.
package mock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
	"github.com/mrsw/go-webrtc-interop/pkg/utils"
)

var _ engine.Factory = (*Factory)(nil)

// Factory creates emulated peer connections and tracks. All observer
// events from every connection of one factory are delivered serially on a
// single signaling goroutine, like a real engine's signaling thread.
type Factory struct {
	log    *logrus.Entry
	sig    *signalingThread
	closed *abool.AtomicBool

	mu       sync.Mutex
	registry *interceptor.Registry
	pcs      []*PeerConnection
}

// NewFactory creates a factory with a running signaling goroutine.
func NewFactory() *Factory {
	return &Factory{
		log:    utils.NewLogger("mock"),
		sig:    newSignalingThread(),
		closed: abool.New(),
	}
}

// SetInterceptorRegistry installs the registry used to build one RTP
// interceptor chain per peer connection. It must be called before the
// connections it should apply to are created.
func (f *Factory) SetInterceptorRegistry(registry *interceptor.Registry) {
	f.mu.Lock()
	f.registry = registry
	f.mu.Unlock()
}

// CreatePeerConnection creates an emulated peer connection delivering its
// events to observer.
func (f *Factory) CreatePeerConnection(cfg engine.Config, observer engine.Observer) (engine.PeerConnection, error) {
	if f.closed.IsSet() {
		return nil, errors.New("factory closed")
	}
	if observer == nil {
		return nil, errors.New("nil observer")
	}
	f.mu.Lock()
	registry := f.registry
	f.mu.Unlock()
	var chain interceptor.Interceptor
	if registry != nil {
		built, err := registry.Build(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("build interceptor chain: %w", err)
		}
		chain = built
	}
	pc := newPeerConnection(f, cfg, observer, chain)
	f.mu.Lock()
	f.pcs = append(f.pcs, pc)
	f.mu.Unlock()
	f.log.WithField("semantics", cfg.SdpSemantics).Debug("peer connection created")
	return pc, nil
}

// CreateAudioTrack creates a standalone audio track.
func (f *Factory) CreateAudioTrack(trackID string) (engine.LocalMediaTrack, error) {
	return f.newTrack(engine.MediaKindAudio, trackID)
}

// CreateVideoTrack creates a standalone video track.
func (f *Factory) CreateVideoTrack(trackID string) (engine.LocalMediaTrack, error) {
	return f.newTrack(engine.MediaKindVideo, trackID)
}

func (f *Factory) newTrack(kind engine.MediaKind, trackID string) (engine.LocalMediaTrack, error) {
	if f.closed.IsSet() {
		return nil, errors.New("factory closed")
	}
	if trackID == "" {
		trackID = uuid.NewString()
	}
	return &localTrack{id: trackID, kind: kind}, nil
}

// Close closes every remaining peer connection and stops the signaling
// goroutine. Queued events are drained first.
func (f *Factory) Close() error {
	if !f.closed.SetToIf(false, true) {
		return nil
	}
	f.mu.Lock()
	pcs := f.pcs
	f.pcs = nil
	f.mu.Unlock()
	for _, pc := range pcs {
		pc.Close()
	}
	f.sig.stop()
	return nil
}

func (f *Factory) post(task func()) {
	f.sig.post(task)
}

// signalingThread serializes event delivery on one goroutine, draining a
// FIFO task queue.
type signalingThread struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   deque.Deque
	stopped bool
	done    chan struct{}
}

func newSignalingThread() *signalingThread {
	st := &signalingThread{done: make(chan struct{})}
	st.cond = sync.NewCond(&st.mu)
	go st.loop()
	return st
}

func (st *signalingThread) post(task func()) {
	st.mu.Lock()
	if st.stopped {
		st.mu.Unlock()
		return
	}
	st.tasks.PushBack(task)
	st.cond.Signal()
	st.mu.Unlock()
}

func (st *signalingThread) loop() {
	for {
		st.mu.Lock()
		for st.tasks.Len() == 0 && !st.stopped {
			st.cond.Wait()
		}
		if st.tasks.Len() == 0 {
			st.mu.Unlock()
			close(st.done)
			return
		}
		task := st.tasks.PopFront().(func())
		st.mu.Unlock()
		task()
	}
}

func (st *signalingThread) stop() {
	st.mu.Lock()
	st.stopped = true
	st.cond.Signal()
	st.mu.Unlock()
	<-st.done
}
