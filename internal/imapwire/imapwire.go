// Package imapwire implements the IMAP wire protocol as seen by a client:
// a tokenizer for response lines and literals, an assembler that groups
// lines into tagged responses, and an encoder for commands.
//
// The IMAP wire protocol is defined in RFC 3501 section 4.
package imapwire

// IsAtomChar returns true if ch is an ATOM-CHAR.
func IsAtomChar(ch byte) bool {
	switch ch {
	case '(', ')', '{', ' ', '%', '*', '"', '\\', ']':
		return false
	default:
		return ch > 0x1f && ch < 0x7f
	}
}
