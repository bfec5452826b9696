package mock

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/mrsw/go-webrtc-interop/pkg/engine"
)

// mediaSection is one m-line of a description the emulation is about to
// marshal.
type mediaSection struct {
	app       bool
	kind      engine.MediaKind
	mid       string
	direction engine.Direction
	streams   []mediaStream
}

// parsedMedia is one m-line of a description received from the remote
// peer. The direction is the remote's own perspective.
type parsedMedia struct {
	app       bool
	kind      engine.MediaKind
	mid       string
	direction engine.Direction
	streams   []mediaStream
}

type mediaStream struct {
	id      string
	trackID string
}

func marshalDescription(sections []mediaSection, sessionID, sessionVersion uint64) (string, error) {
	desc := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName:      "-",
		TimeDescriptions: []sdp.TimeDescription{{}},
	}
	desc.Attributes = append(desc.Attributes, sdp.NewAttribute("msid-semantic", "WMS *"))
	for _, sec := range sections {
		md := &sdp.MediaDescription{
			ConnectionInformation: &sdp.ConnectionInformation{
				NetworkType: "IN",
				AddressType: "IP4",
				Address:     &sdp.Address{Address: "0.0.0.0"},
			},
		}
		md.Attributes = append(md.Attributes, sdp.NewAttribute(sdp.AttrKeyMID, sec.mid))
		if sec.app {
			md.MediaName = sdp.MediaName{
				Media:   "application",
				Port:    sdp.RangedPort{Value: 9},
				Protos:  []string{"UDP", "DTLS", "SCTP"},
				Formats: []string{"webrtc-datachannel"},
			}
			md.Attributes = append(md.Attributes, sdp.NewAttribute("sctp-port", "5000"))
		} else {
			format, rtpmap := "111", "111 opus/48000/2"
			if sec.kind == engine.MediaKindVideo {
				format, rtpmap = "96", "96 VP8/90000"
			}
			md.MediaName = sdp.MediaName{
				Media:   sec.kind.String(),
				Port:    sdp.RangedPort{Value: 9},
				Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
				Formats: []string{format},
			}
			md.Attributes = append(md.Attributes, sdp.NewAttribute("rtpmap", rtpmap))
			md.Attributes = append(md.Attributes, sdp.NewPropertyAttribute(sec.direction.String()))
			for _, stream := range sec.streams {
				md.Attributes = append(md.Attributes, sdp.NewAttribute("msid", stream.id+" "+stream.trackID))
			}
		}
		desc.MediaDescriptions = append(desc.MediaDescriptions, md)
	}
	raw, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal session description: %w", err)
	}
	return string(raw), nil
}

func parseDescription(raw string) ([]parsedMedia, error) {
	desc := &sdp.SessionDescription{}
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return nil, fmt.Errorf("unmarshal session description: %w", err)
	}
	medias := make([]parsedMedia, 0, len(desc.MediaDescriptions))
	for _, md := range desc.MediaDescriptions {
		var m parsedMedia
		m.mid, _ = md.Attribute(sdp.AttrKeyMID)
		switch md.MediaName.Media {
		case "application":
			m.app = true
		case "audio":
			m.kind = engine.MediaKindAudio
		case "video":
			m.kind = engine.MediaKindVideo
		default:
			return nil, fmt.Errorf("unsupported media type %q", md.MediaName.Media)
		}
		m.direction = engine.DirectionSendRecv
		for _, dir := range []engine.Direction{
			engine.DirectionSendRecv, engine.DirectionSendOnly,
			engine.DirectionRecvOnly, engine.DirectionInactive,
		} {
			if _, ok := md.Attribute(dir.String()); ok {
				m.direction = dir
				break
			}
		}
		for _, attr := range md.Attributes {
			if attr.Key != "msid" {
				continue
			}
			fields := strings.Fields(attr.Value)
			if len(fields) == 0 {
				continue
			}
			stream := mediaStream{id: fields[0], trackID: fields[0]}
			if len(fields) > 1 {
				stream.trackID = fields[1]
			}
			m.streams = append(m.streams, stream)
		}
		medias = append(medias, m)
	}
	return medias, nil
}
