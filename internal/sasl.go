package internal

import (
	"encoding/base64"
)

// EncodeSASL encodes a SASL response for an AUTHENTICATE continuation. An
// empty response is sent as "=".
func EncodeSASL(b []byte) string {
	if len(b) == 0 {
		return "="
	}
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeSASL decodes a server challenge.
func DecodeSASL(s string) ([]byte, error) {
	if s == "" || s == "=" {
		// go-sasl treats nil as no challenge
		return []byte{}, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
