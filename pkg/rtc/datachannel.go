package rtc

import (
	"fmt"
	"sync"

	"github.com/tevino/abool"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

// DataChannel is a bidirectional message pipe over SCTP. Channels created
// locally with a negative ID open in-band; channels created with an
// explicit ID are negotiated out-of-band and both peers must create them
// with the same ID.
type DataChannel struct {
	pc      *PeerConnection
	impl    engine.DataChannel
	removed *abool.AtomicBool

	msgMu     sync.Mutex
	onMessage func(payload []byte, binary bool)

	stateMu       sync.Mutex
	onStateChange func(state engine.DataChannelState)
}

func newDataChannel(pc *PeerConnection, impl engine.DataChannel) *DataChannel {
	dc := &DataChannel{pc: pc, impl: impl, removed: abool.New()}
	impl.OnMessage(func(payload []byte, binary bool) {
		dc.msgMu.Lock()
		fn := dc.onMessage
		dc.msgMu.Unlock()
		if fn != nil {
			fn(payload, binary)
		}
	})
	impl.OnStateChange(func(state engine.DataChannelState) {
		dc.stateMu.Lock()
		fn := dc.onStateChange
		dc.stateMu.Unlock()
		if fn != nil {
			fn(state)
		}
	})
	return dc
}

// Label returns the channel label. Labels are not required to be unique.
func (dc *DataChannel) Label() string {
	return dc.impl.Label()
}

// ID returns the SCTP stream ID, or -1 while an in-band channel awaits
// assignment.
func (dc *DataChannel) ID() int {
	return dc.impl.ID()
}

// Ordered reports whether messages are delivered in order.
func (dc *DataChannel) Ordered() bool {
	return dc.impl.Ordered()
}

// Reliable reports whether delivery is retransmitted until acknowledged.
func (dc *DataChannel) Reliable() bool {
	return dc.impl.Reliable()
}

// State returns the current channel state.
func (dc *DataChannel) State() engine.DataChannelState {
	return dc.impl.State()
}

// Send queues one binary message. The channel must be open.
func (dc *DataChannel) Send(payload []byte) error {
	return dc.send(payload, true)
}

// SendText queues one text message. The channel must be open.
func (dc *DataChannel) SendText(text string) error {
	return dc.send([]byte(text), false)
}

func (dc *DataChannel) send(payload []byte, binary bool) error {
	if dc.removed.IsSet() {
		return fmt.Errorf("data channel %q removed: %w", dc.Label(), ErrInvalidOperation)
	}
	if err := dc.impl.Send(payload, binary); err != nil {
		return fmt.Errorf("send on data channel %q: %w", dc.Label(), err)
	}
	return nil
}

// OnMessage registers the callback invoked for each received message.
func (dc *DataChannel) OnMessage(fn func(payload []byte, binary bool)) {
	dc.msgMu.Lock()
	dc.onMessage = fn
	dc.msgMu.Unlock()
}

// OnStateChange registers the callback invoked when the channel changes
// state.
func (dc *DataChannel) OnStateChange(fn func(state engine.DataChannelState)) {
	dc.stateMu.Lock()
	dc.onStateChange = fn
	dc.stateMu.Unlock()
}

// Close closes the channel and removes it from the peer connection. The
// data channel removed event fires once.
func (dc *DataChannel) Close() error {
	if !dc.removed.SetToIf(false, true) {
		return nil
	}
	err := dc.impl.Close()
	dc.pc.removeDataChannel(dc)
	return err
}

func (dc *DataChannel) markRemoved() bool {
	return dc.removed.SetToIf(false, true)
}
