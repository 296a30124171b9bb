// Package utf7 implements the modified UTF-7 encoding of mailbox names
// defined in RFC 3501 section 5.1.3.
package utf7

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

const (
	min = 0x20 // Minimum self-representing UTF-7 value
	max = 0x7E // Maximum self-representing UTF-7 value
)

var b64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").WithPadding(base64.NoPadding)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// ErrInvalidUTF7 is returned when a string is not valid modified UTF-7.
var ErrInvalidUTF7 = errors.New("utf7: invalid UTF-7")

// Encode converts a UTF-8 string to modified UTF-7.
func Encode(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		if ch >= min && ch <= max {
			if ch == '&' {
				sb.WriteString("&-")
			} else {
				sb.WriteByte(ch)
			}
			i++
			continue
		}

		j := i
		for j < len(s) && (s[j] < min || s[j] > max) {
			_, size := utf8.DecodeRuneInString(s[j:])
			j += size
		}
		b, err := utf16be.NewEncoder().String(s[i:j])
		if err != nil {
			b = s[i:j]
		}
		sb.WriteByte('&')
		sb.WriteString(b64.EncodeToString([]byte(b)))
		sb.WriteByte('-')
		i = j
	}
	return sb.String()
}

// Decode converts a modified UTF-7 string to UTF-8.
func Decode(s string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < min || ch > max {
			return "", ErrInvalidUTF7
		}
		if ch != '&' {
			sb.WriteByte(ch)
			continue
		}

		end := strings.IndexByte(s[i+1:], '-')
		if end < 0 {
			return "", ErrInvalidUTF7
		}
		enc := s[i+1 : i+1+end]
		i += end + 1
		if enc == "" {
			sb.WriteByte('&')
			continue
		}

		b, err := b64.DecodeString(enc)
		if err != nil || len(b)%2 != 0 {
			return "", ErrInvalidUTF7
		}
		if !validUTF16(b) {
			return "", ErrInvalidUTF7
		}
		dec, err := utf16be.NewDecoder().Bytes(b)
		if err != nil {
			return "", ErrInvalidUTF7
		}
		for _, r := range string(dec) {
			// Characters that can be represented directly must not be
			// encoded.
			if r >= min && r <= max {
				return "", ErrInvalidUTF7
			}
		}
		sb.Write(dec)
	}
	return sb.String(), nil
}

// DecodeOrKeep decodes s, returning it unchanged if it isn't valid
// modified UTF-7.
func DecodeOrKeep(s string) string {
	dec, err := Decode(s)
	if err != nil {
		return s
	}
	return dec
}

// validUTF16 rejects unpaired surrogates, which the x/text decoder would
// replace silently.
func validUTF16(b []byte) bool {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case utf16.IsSurrogate(rune(u)) && u < 0xDC00:
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
				return false
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF:
			return false
		}
	}
	return true
}
