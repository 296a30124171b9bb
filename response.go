package imap

import (
	"errors"
	"fmt"
	"strings"
)

// StatusResponseType is a generic status response type.
type StatusResponseType string

const (
	StatusResponseTypeOK      StatusResponseType = "OK"
	StatusResponseTypeNo      StatusResponseType = "NO"
	StatusResponseTypeBad     StatusResponseType = "BAD"
	StatusResponseTypePreAuth StatusResponseType = "PREAUTH"
	StatusResponseTypeBye     StatusResponseType = "BYE"
)

var (
	// ErrIncomplete is returned when the transport failed before the tagged
	// completion arrived. Any data read so far is returned with it.
	ErrIncomplete = errors.New("imap: incomplete response")
	// ErrTruncated is returned when a response exceeded the maximum read
	// size. The response may be valid but is only partially available.
	ErrTruncated = errors.New("imap: response exceeds maximum read size")
	// ErrBye is returned when the server closed the session with an
	// untagged BYE.
	ErrBye = errors.New("imap: server sent BYE")
	// ErrReadOnly is returned by mutating commands when the session was
	// configured read-only.
	ErrReadOnly = errors.New("imap: session is read-only")
	// ErrNotSupported is returned when a command requires a capability the
	// server did not advertise.
	ErrNotSupported = errors.New("imap: capability not supported")
)

// Error is an IMAP protocol error: a tagged NO or BAD completion, or a
// response missing a shape the command requires.
type Error struct {
	Type StatusResponseType
	Text string
	// Command is the command text without its tag.
	Command string
}

var _ error = (*Error)(nil)

// Error implements the error interface.
func (err *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "imap: %v", err.Type)
	text := err.Text
	if text == "" {
		text = "<unknown>"
	}
	fmt.Fprintf(&sb, " %v", text)
	if err.Command != "" {
		fmt.Fprintf(&sb, " (in %q)", err.Command)
	}
	return sb.String()
}

// ValidationError is returned when a caller-supplied value is rejected
// before anything is written to the connection.
type ValidationError struct {
	Field string
	Value string
}

// Error implements the error interface.
func (err *ValidationError) Error() string {
	return fmt.Sprintf("imap: invalid %v: %q", err.Field, err.Value)
}
