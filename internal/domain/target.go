package domain

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// TargetID identifies a funding target (an artwork, a project). It is an opaque
// byte sequence compared by equality only.
type TargetID []byte

// String renders printable identifiers as-is and anything else as "0x"
// followed by hex. Text that itself starts with "0x" is rendered as hex too.
func (t TargetID) String() string {
	if utf8.Valid(t) && !strings.HasPrefix(string(t), "0x") {
		return string(t)
	}
	return "0x" + hex.EncodeToString(t)
}

// ParseTargetID is the inverse of TargetID.String: "0x" followed by valid hex
// yields the decoded bytes, anything else is taken literally.
func ParseTargetID(s string) TargetID {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		if raw, err := hex.DecodeString(rest); err == nil {
			return TargetID(raw)
		}
	}
	return TargetID(s)
}

// Equal reports whether both identifiers hold the same bytes.
func (t TargetID) Equal(o TargetID) bool {
	return string(t) == string(o)
}

// Principal is an authenticated identity: a wallet public key, a token subject.
type Principal string

// Amount is a bookkeeping figure in the smallest unit (stroops). No asset moves
// when an amount is recorded.
type Amount uint64
