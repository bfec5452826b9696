// Package sdputil provides small SDP helpers shared by the negotiation
// layer: token validation for identifiers that end up in SDP attributes,
// and human-readable session summaries for logs.
package sdputil

import "github.com/google/uuid"

// IsValidToken reports whether s is a non-empty token per the SDP grammar
// (RFC 4566): visible ASCII minus the separators used by the protocol.
func IsValidToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	return c == 0x21 ||
		(c >= 0x23 && c <= 0x27) ||
		c == 0x2a || c == 0x2b ||
		c == 0x2d || c == 0x2e ||
		(c >= '0' && c <= '9') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 0x5e && c <= 0x7e)
}

// RandomToken returns a random identifier usable wherever IsValidToken is
// required.
func RandomToken() string {
	return uuid.NewString()
}
