package engine

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// LocalMediaTrack is a media source owned by the application and handed to
// the engine for sending. A track is independent of any peer connection
// until it is attached to a sender.
type LocalMediaTrack interface {
	ID() string
	Kind() MediaKind
	// WriteRTP pushes one packet into the track. Packets written while the
	// track is not attached to an active sender are dropped.
	WriteRTP(p *rtp.Packet) error
	// OnRTCP registers a callback for RTCP feedback addressed to the
	// track, such as picture loss indications.
	OnRTCP(fn func(pkt rtcp.Packet))
	Close() error
}

// RemoteMediaTrack is a media source received from the remote peer.
type RemoteMediaTrack interface {
	ID() string
	Kind() MediaKind
	// ReadRTP blocks until the next packet arrives. It returns io.EOF once
	// the track ends.
	ReadRTP() (*rtp.Packet, error)
	// RequestKeyFrame asks the remote sender for a keyframe. Only
	// meaningful for video tracks.
	RequestKeyFrame() error
}
