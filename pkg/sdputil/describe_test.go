package sdputil_test

import (
	"strings"
	"testing"

	"github.com/mrsw/go-webrtc-interop/pkg/sdputil"
)

func body(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestSummarize(t *testing.T) {
	raw := body(
		"v=0",
		"o=- 91827364 1 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=rtpmap:111 opus/48000/2",
		"a=sendrecv",
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"c=IN IP4 0.0.0.0",
		"a=rtpmap:96 VP8/90000",
		"a=recvonly",
		"m=application 9 UDP/DTLS/SCTP webrtc-datachannel",
		"c=IN IP4 0.0.0.0",
		"a=sctp-port:5000",
	)
	got := sdputil.Summarize(raw)
	want := "audio:sendrecv video:recvonly application"
	if got != want {
		t.Errorf("Summarize = %q; want %q", got, want)
	}
}

func TestSummarizeDefaultsToSendRecv(t *testing.T) {
	raw := body(
		"v=0",
		"o=- 1 1 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=rtpmap:111 opus/48000/2",
	)
	got := sdputil.Summarize(raw)
	if got != "audio:sendrecv" {
		t.Errorf("Summarize = %q; want %q", got, "audio:sendrecv")
	}
}

func TestSummarizeNoMedia(t *testing.T) {
	raw := body(
		"v=0",
		"o=- 1 1 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
	)
	if got := sdputil.Summarize(raw); got != "no media" {
		t.Errorf("Summarize = %q; want %q", got, "no media")
	}
}

func TestSummarizeMalformed(t *testing.T) {
	if got := sdputil.Summarize("not an sdp body"); got != "malformed sdp" {
		t.Errorf("Summarize = %q; want %q", got, "malformed sdp")
	}
}
