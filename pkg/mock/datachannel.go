package mock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

var _ engine.DataChannel = (*dataChannel)(nil)

// dataChannel is an emulated SCTP channel. Two channels get linked by the
// wire once both peer connections completed a negotiation carrying a data
// section; messages then hop to the linked channel through the receiving
// factory's signaling goroutine.
type dataChannel struct {
	pc         *PeerConnection
	label      string
	ordered    bool
	reliable   bool
	negotiated bool

	mu        sync.Mutex
	id        int
	state     engine.DataChannelState
	linked    *dataChannel
	onMessage func(payload []byte, binary bool)
	onState   func(state engine.DataChannelState)
}

func (ch *dataChannel) Label() string {
	return ch.label
}

func (ch *dataChannel) ID() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.id
}

func (ch *dataChannel) Ordered() bool {
	return ch.ordered
}

func (ch *dataChannel) Reliable() bool {
	return ch.reliable
}

func (ch *dataChannel) State() engine.DataChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

func (ch *dataChannel) Send(payload []byte, binary bool) error {
	ch.mu.Lock()
	state := ch.state
	linked := ch.linked
	ch.mu.Unlock()
	if state != engine.DataChannelOpen {
		return fmt.Errorf("data channel %q is %s", ch.label, state)
	}
	if linked == nil {
		return errors.New("data channel has no transport")
	}
	copied := append([]byte(nil), payload...)
	linked.pc.factory.post(func() {
		linked.deliver(copied, binary)
	})
	return nil
}

func (ch *dataChannel) OnMessage(fn func(payload []byte, binary bool)) {
	ch.mu.Lock()
	ch.onMessage = fn
	ch.mu.Unlock()
}

func (ch *dataChannel) OnStateChange(fn func(state engine.DataChannelState)) {
	ch.mu.Lock()
	ch.onState = fn
	ch.mu.Unlock()
}

func (ch *dataChannel) Close() error {
	ch.mu.Lock()
	linked := ch.linked
	ch.linked = nil
	ch.mu.Unlock()
	ch.setState(engine.DataChannelClosing)
	ch.setState(engine.DataChannelClosed)
	if linked != nil {
		linked.unlink()
		linked.setState(engine.DataChannelClosing)
		linked.setState(engine.DataChannelClosed)
	}
	return nil
}

func (ch *dataChannel) deliver(payload []byte, binary bool) {
	ch.mu.Lock()
	fn := ch.onMessage
	ch.mu.Unlock()
	if fn != nil {
		fn(payload, binary)
	}
}

// setState transitions the channel and posts the callback. The callback
// reference is read at delivery time, so a handler registered while the
// event is still queued is not missed.
func (ch *dataChannel) setState(state engine.DataChannelState) {
	ch.mu.Lock()
	if ch.state == state {
		ch.mu.Unlock()
		return
	}
	ch.state = state
	ch.mu.Unlock()
	ch.pc.factory.post(func() {
		ch.mu.Lock()
		fn := ch.onState
		ch.mu.Unlock()
		if fn != nil {
			fn(state)
		}
	})
}

func (ch *dataChannel) setID(id int) {
	ch.mu.Lock()
	ch.id = id
	ch.mu.Unlock()
}

func (ch *dataChannel) isLinked() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.linked != nil
}

func (ch *dataChannel) link(other *dataChannel) {
	ch.mu.Lock()
	ch.linked = other
	ch.mu.Unlock()
}

func (ch *dataChannel) unlink() {
	ch.mu.Lock()
	ch.linked = nil
	ch.mu.Unlock()
}
