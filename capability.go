package imap

import (
	"strings"
)

// Cap represents an IMAP capability.
//
// Capability names are normalized to upper case when parsed, so the
// constants below can be compared directly.
type Cap string

// Capabilities the engine knows how to use.
//
// See: https://www.iana.org/assignments/imap-capabilities/
const (
	CapIMAP4rev1 Cap = "IMAP4REV1" // RFC 3501
	CapIMAP4rev2 Cap = "IMAP4REV2" // RFC 9051

	CapStartTLS      Cap = "STARTTLS"
	CapLoginDisabled Cap = "LOGINDISABLED"

	CapNamespace    Cap = "NAMESPACE"     // RFC 2342
	CapUnselect     Cap = "UNSELECT"      // RFC 3691
	CapUIDPlus      Cap = "UIDPLUS"       // RFC 4315
	CapEnable       Cap = "ENABLE"        // RFC 5161
	CapIdle         Cap = "IDLE"          // RFC 2177
	CapSASLIR       Cap = "SASL-IR"       // RFC 4959
	CapListExtended Cap = "LIST-EXTENDED" // RFC 5258
	CapListStatus   Cap = "LIST-STATUS"   // RFC 5819
	CapMove         Cap = "MOVE"          // RFC 6851
	CapLiteralPlus  Cap = "LITERAL+"      // RFC 7888
	CapLiteralMinus Cap = "LITERAL-"      // RFC 7888

	CapCompressDeflate Cap = "COMPRESS=DEFLATE" // RFC 4978

	CapChildren   Cap = "CHILDREN"    // RFC 3348
	CapCondStore  Cap = "CONDSTORE"   // RFC 7162
	CapQResync    Cap = "QRESYNC"     // RFC 7162
	CapID         Cap = "ID"          // RFC 2971
	CapSort       Cap = "SORT"        // RFC 5256
	CapSpecialUse Cap = "SPECIAL-USE" // RFC 6154
	CapXGMExt1    Cap = "X-GM-EXT-1"  // Gmail extensions
)

var imap4rev2Caps = CapSet{
	CapNamespace:    {},
	CapUnselect:     {},
	CapUIDPlus:      {},
	CapEnable:       {},
	CapIdle:         {},
	CapSASLIR:       {},
	CapListExtended: {},
	CapListStatus:   {},
	CapMove:         {},
	CapLiteralMinus: {},
}

// AuthCap returns the capability name for an SASL authentication mechanism.
func AuthCap(mechanism string) Cap {
	return Cap("AUTH=" + strings.ToUpper(mechanism))
}

// CapSet is a set of capabilities.
type CapSet map[Cap]struct{}

// ParseCapSet builds a set from the words of a CAPABILITY response. Names
// are upper-cased. Capabilities listed in blacklist are left out.
func ParseCapSet(words []string, blacklist []Cap) CapSet {
	set := make(CapSet, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		set[Cap(strings.ToUpper(w))] = struct{}{}
	}
	for _, c := range blacklist {
		delete(set, Cap(strings.ToUpper(string(c))))
	}
	return set
}

func (set CapSet) has(c Cap) bool {
	_, ok := set[c]
	return ok
}

// Has checks whether a capability is supported.
//
// Some capabilities are implied by others, as such Has may return true even if
// the capability is not in the map.
func (set CapSet) Has(c Cap) bool {
	if set.has(c) {
		return true
	}

	if set.has(CapIMAP4rev2) && imap4rev2Caps.has(c) {
		return true
	}

	if c == CapLiteralMinus && set.has(CapLiteralPlus) {
		return true
	}
	if c == CapCondStore && set.has(CapQResync) {
		return true
	}

	return false
}

// AuthMechanisms returns the list of supported SASL mechanisms for
// authentication.
func (set CapSet) AuthMechanisms() []string {
	var l []string
	for c := range set {
		if !strings.HasPrefix(string(c), "AUTH=") {
			continue
		}
		mech := strings.TrimPrefix(string(c), "AUTH=")
		l = append(l, mech)
	}
	return l
}

// Copy returns a copy of the set.
func (set CapSet) Copy() CapSet {
	cp := make(CapSet, len(set))
	for c := range set {
		cp[c] = struct{}{}
	}
	return cp
}
