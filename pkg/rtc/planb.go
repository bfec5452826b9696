package rtc

import (
	"fmt"
	"strconv"
	"strings"
)

// Plan B has no transceivers on the wire, so the pairing between a local
// transceiver wrapper and the remote track it receives travels inside the
// sender's stream ID. The encoded form is
//
//	mrsw#<mline index>[;<stream id>...]
//
// where the m-line index is the position the wrapper claims among the
// wrappers of the same peer connection.
const planBPrefix = "mrsw#"

// encodePlanBStreamID packs a wrapper's m-line index and stream IDs into a
// single sender stream ID.
func encodePlanBStreamID(mlineIndex int, streamIDs []string) string {
	var sb strings.Builder
	sb.WriteString(planBPrefix)
	sb.WriteString(strconv.Itoa(mlineIndex))
	for _, id := range streamIDs {
		sb.WriteByte(';')
		sb.WriteString(id)
	}
	return sb.String()
}

// encodeStreamIDs joins plain stream IDs for event payloads.
func encodeStreamIDs(streamIDs []string) string {
	return strings.Join(streamIDs, ";")
}

// decodePlanBStreamID unpacks an encoded sender stream ID received from the
// remote peer. The first token becomes the name of the transceiver wrapper
// created for the remote track; the remaining tokens are the stream IDs.
func decodePlanBStreamID(encoded string) (name string, mlineIndex int, streamIDs []string, err error) {
	tokens := strings.Split(encoded, ";")
	name = tokens[0]
	streamIDs = tokens[1:]
	if len(name) < len(planBPrefix)+1 || !strings.HasPrefix(name, planBPrefix) {
		return "", 0, nil, fmt.Errorf("stream ID %q carries no pairing tag: %w", encoded, ErrInvalidParameter)
	}
	mlineIndex, convErr := strconv.Atoi(name[len(planBPrefix):])
	if convErr != nil || mlineIndex < 0 {
		return "", 0, nil, fmt.Errorf("stream ID %q carries a malformed m-line index: %w", encoded, ErrInvalidParameter)
	}
	return name, mlineIndex, streamIDs, nil
}
