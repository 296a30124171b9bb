package imapwire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// discardLineSize is the number of bytes kept from a physical line read
// after the ceiling was reached. It is enough to recognize a tag.
const discardLineSize = 128

// A Tokenizer reads physical response lines and splits them into tokens,
// reading literals from the transport as they are announced.
//
// All reads count against a ceiling set by Reset. Once the ceiling is
// reached, the Tokenizer keeps consuming the stream to stay in sync with the
// server but stops buffering data, and Truncated reports true.
type Tokenizer struct {
	br *bufio.Reader

	max       int64
	n         int64
	truncated bool

	// noLiterals makes literal announcements plain atoms.
	noLiterals bool
}

// NewTokenizer creates a new tokenizer.
func NewTokenizer(br *bufio.Reader) *Tokenizer {
	return &Tokenizer{br: br}
}

// Reset starts a new read with the given ceiling. A zero max disables the
// ceiling.
func (t *Tokenizer) Reset(max int64) {
	t.max = max
	t.n = 0
	t.truncated = false
}

// Truncated reports whether the ceiling was reached since the last Reset.
func (t *Tokenizer) Truncated() bool {
	return t.truncated
}

// Size returns the number of bytes read since the last Reset.
func (t *Tokenizer) Size() int64 {
	return t.n
}

// room returns the number of bytes that can still be buffered, or -1 when
// there is no ceiling.
func (t *Tokenizer) room() int64 {
	if t.max <= 0 {
		return -1
	}
	if t.n >= t.max {
		return 0
	}
	return t.max - t.n
}

// ReadLine reads one physical line including its line terminator.
//
// Lines longer than the bufio buffer are assembled chunk by chunk. Once the
// ceiling is reached, only the head of the line (enough to recognize a tag)
// and its tail (enough to recognize a literal announcement) are kept.
func (t *Tokenizer) ReadLine() (string, error) {
	var buf, tail []byte
	dropped := false
	for {
		chunk, err := t.br.ReadSlice('\n')
		t.n += int64(len(chunk))
		if t.max > 0 && t.n > t.max {
			t.truncated = true
		}
		switch {
		case !t.truncated:
			buf = append(buf, chunk...)
		case len(buf) < discardLineSize:
			n := discardLineSize - len(buf)
			if n > len(chunk) {
				n = len(chunk)
			}
			buf = append(buf, chunk[:n]...)
			tail = appendTail(tail, chunk[n:])
			dropped = dropped || n < len(chunk)
		default:
			tail = appendTail(tail, chunk)
			dropped = true
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if dropped {
			buf = append(append(buf, ' '), tail...)
		}
		if err == io.EOF {
			if len(buf) == 0 {
				return "", io.EOF
			}
			return string(buf), io.ErrUnexpectedEOF
		} else if err != nil {
			return string(buf), err
		}
		return string(buf), nil
	}
}

// appendTail keeps the last discardLineSize bytes of tail+b.
func appendTail(tail, b []byte) []byte {
	tail = append(tail, b...)
	if len(tail) > discardLineSize {
		tail = append(tail[:0], tail[len(tail)-discardLineSize:]...)
	}
	return tail
}

const maxLiteralPrealloc = 64 * 1024

// readLiteral reads exactly size bytes. Bytes past the ceiling are drained
// and discarded.
func (t *Tokenizer) readLiteral(size int64) (string, error) {
	keep := size
	if room := t.room(); room >= 0 && room < size {
		keep = room
	}

	var buf bytes.Buffer
	if keep > 0 {
		// The declared size comes from the server: the buffer grows with the
		// data actually read.
		buf.Grow(int(min(keep, maxLiteralPrealloc)))
		n, err := io.CopyN(&buf, t.br, keep)
		t.n += n
		if err != nil {
			return buf.String(), unexpectedEOF(err)
		}
	}
	if rest := size - keep; rest > 0 {
		t.truncated = true
		n, err := io.CopyN(io.Discard, t.br, rest)
		t.n += n
		if err != nil {
			return buf.String(), unexpectedEOF(err)
		}
	}
	return buf.String(), nil
}

// atLineEnd consumes a CRLF (or a bare LF) if it is the next thing on the
// stream.
func (t *Tokenizer) atLineEnd() (bool, error) {
	b, err := t.br.Peek(1)
	if err != nil {
		return false, unexpectedEOF(err)
	}
	switch b[0] {
	case '\n':
		t.br.Discard(1)
		t.n++
		return true, nil
	case '\r':
		b, err = t.br.Peek(2)
		if err != nil {
			return false, unexpectedEOF(err)
		}
		if b[1] == '\n' {
			t.br.Discard(2)
			t.n += 2
			return true, nil
		}
	}
	return false, nil
}

// Tokenize splits a physical line into tokens.
//
// If the line announces a literal, the literal is read from the stream. If
// the literal is not immediately followed by a line terminator, cont is
// true: the next physical line continues the same logical line.
func (t *Tokenizer) Tokenize(line string) (cont bool, toks []Token, err error) {
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch ch {
		case '\r', '\n':
			return false, toks, nil
		case ' ':
			continue
		case '*', '(', ')', '[', ']':
			toks = append(toks, Token{Kind: TokenMarker, Value: line[i : i+1]})
		case '"':
			s, n := scanQuoted(line[i:])
			toks = append(toks, Token{Kind: TokenQuoted, Value: s})
			i += n - 1
		case '{':
			size, ok := literalSize(line[i:])
			if !ok || t.noLiterals {
				atom := scanAtom(line[i:])
				toks = append(toks, Token{Kind: TokenAtom, Value: atom})
				i += len(atom) - 1
				continue
			}
			lit, err := t.readLiteral(size)
			toks = append(toks, Token{Kind: TokenLiteral, Value: lit})
			if err != nil {
				return false, toks, err
			}
			end, err := t.atLineEnd()
			if err != nil {
				return false, toks, err
			}
			return !end, toks, nil
		default:
			atom := scanAtom(line[i:])
			if atom == "" {
				continue
			}
			toks = append(toks, Token{Kind: TokenAtom, Value: atom})
			i += len(atom) - 1
		}
	}
	return false, toks, nil
}

// ParseLine splits a line into tokens without literal support. A literal
// announcement is returned as an atom.
func ParseLine(line string) []Token {
	t := Tokenizer{noLiterals: true}
	_, toks, _ := t.Tokenize(line)
	return toks
}

// scanQuoted scans a quoted string starting at s[0] == '"'. It returns the
// unescaped value and the number of bytes consumed. An unterminated string
// extends to the end of the line.
func scanQuoted(s string) (string, int) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\\':
			if i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			}
		case '"':
			return sb.String(), i + 1
		case '\r', '\n':
			return sb.String(), i
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), len(s)
}

// scanAtom scans a bare atom, bounded by a space, ')', ']' or the end of
// the line.
func scanAtom(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', ')', ']', '\r', '\n':
			return s[:i]
		}
	}
	return s
}

// literalSize parses a "{n}" literal announcement ending the line.
func literalSize(s string) (int64, bool) {
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return 0, false
	}
	if rest := strings.TrimRight(s[end+1:], "\r\n"); rest != "" {
		return 0, false
	}
	size, err := strconv.ParseInt(s[1:end], 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// LiteralSize returns the size announced by a "{n}" at the end of line.
func LiteralSize(line string) (int64, error) {
	line = strings.TrimRight(line, "\r\n")
	start := strings.LastIndexByte(line, '{')
	if start < 0 {
		return 0, fmt.Errorf("imapwire: no literal in %q", line)
	}
	size, ok := literalSize(line[start:])
	if !ok {
		return 0, fmt.Errorf("imapwire: malformed literal in %q", line)
	}
	return size, nil
}
