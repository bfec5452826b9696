package sdputil

import (
	"strings"

	"github.com/pixelbender/go-sdp/sdp"
)

// Summarize renders a one-line description of an SDP body for logging,
// listing each media section with its direction.
func Summarize(raw string) string {
	sess, err := sdp.Parse([]byte(raw))
	if err != nil {
		return "malformed sdp"
	}
	if len(sess.Media) == 0 {
		return "no media"
	}
	parts := make([]string, 0, len(sess.Media))
	for _, m := range sess.Media {
		if m.Type == "application" {
			parts = append(parts, m.Type)
			continue
		}
		mode := m.Mode
		if mode == "" {
			mode = sdp.SendRecv
		}
		parts = append(parts, m.Type+":"+mode)
	}
	return strings.Join(parts, " ")
}
