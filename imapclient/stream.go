package imapclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

const streamBufferSize = 4096

// MessageStream reads the content of a message part line by line, without
// buffering more than one line.
//
// While a stream is open, other commands fail: the stream must be read to
// the end or closed first.
type MessageStream struct {
	client  *Client
	tag     string
	cmdText string
	start   time.Time

	r       *bufio.Reader
	size    int64
	read    int64
	pending [][]imapwire.Token
	done    bool
	err     error
}

// StartMessageStream starts fetching the content of a message part, or of
// the whole message if part is empty. It returns the stream and the size of
// the content.
//
// The content is not subject to Options.MaxRead.
func (c *Client) StartMessageStream(uid imap.UID, part string) (*MessageStream, int64, error) {
	if part != "" {
		if err := imap.ValidatePart(part); err != nil {
			return nil, 0, err
		}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch {
	case c.stream != nil || c.appending != nil:
		return nil, 0, errBusy
	case c.state == imap.ConnStateNone || c.state == imap.ConnStateLogout:
		return nil, 0, errClosed
	case c.selected == nil:
		return nil, 0, &imap.Error{Type: imap.StatusResponseTypeBad, Text: "no mailbox selected"}
	}

	c.cmdTag++
	tag := "A" + strconv.FormatUint(c.cmdTag, 10)
	enc := c.newEncoder(c.bw)
	enc.Atom(tag).SP().Atom("UID FETCH").SP().Number(uint32(uid)).SP().Atom("BODY.PEEK[" + part + "]")
	err := enc.CRLF()
	if err == nil {
		err = c.flush()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
	}

	s := &MessageStream{
		client:  c,
		tag:     tag,
		cmdText: strings.TrimPrefix(enc.Command(), tag+" "),
		start:   time.Now(),
	}

	// Any failure past this point leaves part of the response unread.
	desync := func(err error) error {
		c.state = imap.ConnStateLogout
		if errors.Is(err, imap.ErrIncomplete) {
			return err
		}
		return fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
	}

	t := c.asm.Tokenizer()
	t.Reset(0)
	for {
		line, err := t.ReadLine()
		if err != nil && line == "" {
			return nil, 0, desync(err)
		}
		if isStreamStart(line) {
			size, err := imapwire.LiteralSize(line)
			if err != nil {
				return nil, 0, desync(err)
			}
			s.size = size
			s.r = bufio.NewReaderSize(io.LimitReader(c.br, size), streamBufferSize)
			c.stream = s
			level.Debug(c.logger).Log("msg", "message stream started", "command", s.cmdText, "size", size)
			return s, size, nil
		}

		toks, err := c.asm.ContinueLine(line)
		if err != nil {
			return nil, 0, desync(err)
		}
		s.pending = append(s.pending, toks)
		if len(toks) > 1 && toks[0].IsMarker('*') && toks[1].Is("BYE") {
			c.state = imap.ConnStateLogout
			return nil, 0, imap.ErrBye
		}
		if len(toks) > 0 && toks[0].Value == tag {
			// The server answered without any content.
			resp := s.response()
			c.history.add(HistoryEntry{Command: s.cmdText, Status: resp.Status(), Elapsed: time.Since(s.start)})
			if err := resp.Err(s.cmdText); err != nil {
				return nil, 0, err
			}
			return nil, 0, &imap.Error{
				Type:    imap.StatusResponseTypeNo,
				Text:    "missing BODY[" + part + "] in response",
				Command: s.cmdText,
			}
		}
	}
}

// isStreamStart reports whether a physical line announces the literal of a
// BODY[...] fetch item.
func isStreamStart(line string) bool {
	trimmed := strings.TrimRight(line, "\r\n")
	return strings.HasPrefix(trimmed, "* ") &&
		strings.HasSuffix(trimmed, "}") &&
		strings.Contains(strings.ToUpper(trimmed), "BODY[")
}

func (s *MessageStream) response() *imapwire.Response {
	resp := &imapwire.Response{Tag: s.tag, Lines: s.pending}
	for _, line := range s.pending {
		resp.Raw = append(resp.Raw, imapwire.Join(line))
	}
	return resp
}

// ReadLine returns the next line of content, including its line
// terminator. Lines longer than the internal buffer are returned in chunks.
//
// After the last line, ReadLine reads the end of the response and returns
// io.EOF, or the error of the command.
func (s *MessageStream) ReadLine() (string, error) {
	c := s.client
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if s.done {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	if c.stream != s {
		s.done, s.err = true, errClosed
		return "", s.err
	}

	b, err := s.r.ReadSlice('\n')
	s.read += int64(len(b))
	switch {
	case len(b) > 0 && (err == nil || err == bufio.ErrBufferFull || err == io.EOF):
		return string(b), nil
	case err == io.EOF && s.read == s.size:
		return "", s.finish()
	default:
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		s.done, s.err = true, fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
		c.stream = nil
		c.state = imap.ConnStateLogout
		return "", s.err
	}
}

// finish reads the rest of the response. The caller must hold the lock.
func (s *MessageStream) finish() error {
	c := s.client
	s.done = true
	c.stream = nil

	resp, err := c.asm.ReadResponse(s.tag, c.options.MaxRead, imapwire.ReadModeTokens)
	resp.Lines = append(s.pending, resp.Lines...)
	resp.Raw = append(s.response().Raw, resp.Raw...)

	elapsed := time.Since(s.start)
	c.history.add(HistoryEntry{
		Command: s.cmdText,
		Status:  resp.Status(),
		Size:    s.size + c.asm.Tokenizer().Size(),
		Elapsed: elapsed,
	})
	level.Debug(c.logger).Log("msg", "message stream done", "command", s.cmdText, "status", resp.Status(), "elapsed", elapsed)

	if err != nil {
		if errors.Is(err, imap.ErrBye) {
			c.state = imap.ConnStateLogout
		}
		s.err = err
		return err
	}
	if c.state == imap.ConnStateSelected {
		c.applyUpdates(resp, true)
	}
	if err := resp.Err(s.cmdText); err != nil {
		s.err = err
		return err
	}
	return io.EOF
}

// Close discards the rest of the content and reads the end of the
// response.
func (s *MessageStream) Close() error {
	c := s.client
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if s.done || c.stream != s {
		return nil
	}
	n, err := io.Copy(io.Discard, s.r)
	s.read += n
	if err != nil || s.read != s.size {
		s.done = true
		c.stream = nil
		c.state = imap.ConnStateLogout
		return fmt.Errorf("%w: %v", imap.ErrIncomplete, io.ErrUnexpectedEOF)
	}
	if err := s.finish(); err != io.EOF {
		return err
	}
	return nil
}
