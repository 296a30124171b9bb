package imapwire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/utf7"
)

// An Encoder writes IMAP commands.
//
// Most methods don't return an error, instead they defer error handling until
// CRLF is called. These methods return the Encoder so that calls can be
// chained.
//
// The text of the command, without literal data, is recorded and available
// via Command.
type Encoder struct {
	// LiteralPlus enables non-synchronizing literals. This requires
	// LITERAL+.
	LiteralPlus bool
	// UTF7 enables modified UTF-7 encoding of mailbox names.
	UTF7 bool
	// Continue waits for the server to send a continuation request before a
	// synchronizing literal is written.
	Continue func() error

	w       *bufio.Writer
	err     error
	literal bool
	text    strings.Builder
}

// NewEncoder creates a new encoder.
func NewEncoder(w *bufio.Writer) *Encoder {
	return &Encoder{w: w}
}

// Command returns the command text written so far, without literal data.
func (enc *Encoder) Command() string {
	return enc.text.String()
}

func (enc *Encoder) setErr(err error) {
	if enc.err == nil {
		enc.err = err
	}
}

func (enc *Encoder) writeString(s string) *Encoder {
	if enc.err != nil {
		return enc
	}
	if enc.literal {
		enc.err = fmt.Errorf("imapwire: cannot encode while a literal is open")
		return enc
	}
	enc.text.WriteString(s)
	if _, err := enc.w.WriteString(s); err != nil {
		enc.err = err
	}
	return enc
}

// CRLF writes a "\r\n" sequence and flushes the buffered writer.
func (enc *Encoder) CRLF() error {
	if enc.err != nil {
		return enc.err
	}
	if _, err := enc.w.WriteString("\r\n"); err != nil {
		return err
	}
	return enc.w.Flush()
}

func (enc *Encoder) Atom(s string) *Encoder {
	return enc.writeString(s)
}

func (enc *Encoder) SP() *Encoder {
	return enc.writeString(" ")
}

func (enc *Encoder) Special(ch byte) *Encoder {
	return enc.writeString(string(ch))
}

func (enc *Encoder) Quoted(s string) *Encoder {
	var sb strings.Builder
	sb.Grow(2 + len(s))
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' || ch == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(ch)
	}
	sb.WriteByte('"')
	return enc.writeString(sb.String())
}

// String writes s as a quoted string if possible, as a literal otherwise.
func (enc *Encoder) String(s string) *Encoder {
	if !validQuoted(s) {
		enc.stringLiteral(s)
		return enc
	}
	return enc.Quoted(s)
}

func validQuoted(s string) bool {
	if len(s) > 4096 {
		return false
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]

		// NUL, CR and LF are never valid
		switch ch {
		case 0, '\r', '\n':
			return false
		}

		if ch > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func (enc *Encoder) stringLiteral(s string) {
	wc := enc.Literal(int64(len(s)))
	_, writeErr := io.WriteString(wc, s)
	closeErr := wc.Close()
	if writeErr != nil {
		enc.setErr(writeErr)
	} else if closeErr != nil {
		enc.setErr(closeErr)
	}
}

// Mailbox writes a mailbox name. INBOX is case-insensitive and is always
// written upper-cased.
func (enc *Encoder) Mailbox(name string) *Encoder {
	if strings.EqualFold(name, "INBOX") {
		return enc.Quoted("INBOX")
	}
	if enc.UTF7 {
		name = utf7.Encode(name)
	}
	return enc.String(name)
}

func (enc *Encoder) Flag(flag imap.Flag) *Encoder {
	if flag != imap.FlagWildcard && !isValidFlag(string(flag)) {
		enc.setErr(fmt.Errorf("imapwire: invalid flag %q", flag))
		return enc
	}
	return enc.writeString(string(flag))
}

// isValidFlag checks whether the provided string satisfies
// flag-keyword / flag-extension.
func isValidFlag(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' {
			if i != 0 {
				return false
			}
		} else {
			if !IsAtomChar(ch) {
				return false
			}
		}
	}
	return len(s) > 0
}

func (enc *Encoder) Number(v uint32) *Encoder {
	return enc.writeString(strconv.FormatUint(uint64(v), 10))
}

// List writes a parenthesized list.
func (enc *Encoder) List(n int, f func(i int)) *Encoder {
	enc.Special('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			enc.SP()
		}
		f(i)
	}
	enc.Special(')')
	return enc
}

func (enc *Encoder) NIL() *Encoder {
	return enc.Atom("NIL")
}

// Literal writes a literal.
//
// The caller must write exactly size bytes to the returned writer, then
// close it. Unless LiteralPlus is set, the literal is synchronizing: the
// announcement is flushed and Continue is called before data is written.
func (enc *Encoder) Literal(size int64) io.WriteCloser {
	switch {
	case size < 0:
		return enc.literalErr(fmt.Errorf("imapwire: negative literal size %v", size))
	case !enc.LiteralPlus && enc.Continue == nil:
		return enc.literalErr(fmt.Errorf("imapwire: cannot send synchronizing literal"))
	}

	if enc.LiteralPlus {
		enc.writeString("{" + strconv.FormatInt(size, 10) + "+}")
	} else {
		enc.writeString("{" + strconv.FormatInt(size, 10) + "}")
	}
	if enc.err != nil {
		return errorWriter{enc.err}
	}

	// This line break ends the announcement, not the command.
	if _, err := enc.w.WriteString("\r\n"); err != nil {
		return enc.literalErr(err)
	}
	enc.text.WriteString("\r\n")
	if !enc.LiteralPlus {
		if err := enc.w.Flush(); err != nil {
			return enc.literalErr(err)
		}
		if err := enc.Continue(); err != nil {
			return enc.literalErr(err)
		}
	}

	enc.literal = true
	return &literalWriter{enc: enc, n: size}
}

func (enc *Encoder) literalErr(err error) io.WriteCloser {
	enc.setErr(err)
	return errorWriter{err}
}

type errorWriter struct {
	err error
}

func (ew errorWriter) Write(b []byte) (int, error) {
	return 0, ew.err
}

func (ew errorWriter) Close() error {
	return ew.err
}

type literalWriter struct {
	enc *Encoder
	n   int64
}

func (lw *literalWriter) Write(b []byte) (int, error) {
	if lw.n-int64(len(b)) < 0 {
		return 0, fmt.Errorf("wrote too many bytes in literal")
	}
	n, err := lw.enc.w.Write(b)
	lw.n -= int64(n)
	return n, err
}

func (lw *literalWriter) Close() error {
	lw.enc.literal = false
	if lw.n != 0 {
		return fmt.Errorf("wrote too few bytes in literal (%v remaining)", lw.n)
	}
	return nil
}
