package imapwire

import (
	"errors"
	"io"
	"strings"

	"github.com/jasonmunro/hm-imap"
)

// Response is the result of one command round trip, in chunked form: one
// token list per logical line. When the response is complete, the last line
// is the tagged completion.
type Response struct {
	Tag   string
	Lines [][]Token
	// Raw holds the logical lines as whitespace-joined strings.
	Raw []string
	// Truncated is set when the ceiling was reached. Lines past the ceiling
	// were read and discarded, except message count notifications.
	Truncated bool
	// Continuation is the text of the continuation request that ended a
	// ReadContinuation call.
	Continuation string
}

// Completion returns the tagged completion line, or nil if the response is
// incomplete.
func (resp *Response) Completion() []Token {
	if len(resp.Lines) == 0 {
		return nil
	}
	last := resp.Lines[len(resp.Lines)-1]
	if len(last) == 0 || last[0].Kind != TokenAtom || last[0].Value != resp.Tag {
		return nil
	}
	return last
}

// Status returns the status word of the tagged completion, upper-cased, or
// an empty string if the response is incomplete.
func (resp *Response) Status() imap.StatusResponseType {
	last := resp.Completion()
	if len(last) < 2 {
		return ""
	}
	return imap.StatusResponseType(strings.ToUpper(last[1].Value))
}

// OK reports whether the first token of the last logical line is the tag
// and the second token is OK.
func (resp *Response) OK() bool {
	return resp.Status() == imap.StatusResponseTypeOK
}

// Text returns the human-readable text of the tagged completion.
func (resp *Response) Text() string {
	last := resp.Completion()
	if len(last) < 2 {
		return ""
	}
	return Join(last[2:])
}

// Err returns nil for an OK completion, and an *imap.Error carrying the
// command text otherwise.
func (resp *Response) Err(command string) error {
	if resp.OK() {
		return nil
	}
	typ := resp.Status()
	if typ == "" {
		typ = imap.StatusResponseTypeBad
		return &imap.Error{Type: typ, Text: "missing tagged completion", Command: command}
	}
	return &imap.Error{Type: typ, Text: resp.Text(), Command: command}
}

// Untagged returns the logical lines starting with "*".
func (resp *Response) Untagged() [][]Token {
	var l [][]Token
	for _, line := range resp.Lines {
		if len(line) > 0 && line[0].IsMarker('*') {
			l = append(l, line)
		}
	}
	return l
}

// RawOK reports whether the last raw line starts with "<tag> OK",
// case-insensitively.
func (resp *Response) RawOK() bool {
	if len(resp.Raw) == 0 {
		return false
	}
	last := resp.Raw[len(resp.Raw)-1]
	prefix := resp.Tag + " OK"
	return len(last) >= len(prefix) && strings.EqualFold(last[:len(prefix)], prefix)
}

// ReadMode selects how physical lines are split into tokens.
type ReadMode int

const (
	// ReadModeTokens runs the full tokenizer.
	ReadModeTokens ReadMode = iota
	// ReadModeNumbers splits lines on spaces without looking for quoted
	// strings or literals. It must only be used for replies known to be
	// flat lists of numbers, such as a UID SORT result: any quoted string or
	// literal in the reply desynchronizes the stream.
	ReadModeNumbers
)

// An Assembler groups tokenized lines into command responses.
type Assembler struct {
	tok *Tokenizer
}

// NewAssembler creates a new assembler reading from the tokenizer.
func NewAssembler(tok *Tokenizer) *Assembler {
	return &Assembler{tok: tok}
}

// Tokenizer returns the underlying tokenizer.
func (a *Assembler) Tokenizer() *Tokenizer {
	return a.tok
}

// ReadResponse reads logical lines until a line tagged with tag arrives.
//
// A line continued after a literal is merged into the previous logical line.
// An untagged BYE stops the read with imap.ErrBye. A transport failure stops
// the read with imap.ErrIncomplete. Reaching the ceiling keeps the lines
// collected so far, discards the rest of the response up to the tagged line
// and returns imap.ErrTruncated. In every case the lines collected so far are
// returned.
func (a *Assembler) ReadResponse(tag string, max int64, mode ReadMode) (*Response, error) {
	a.tok.Reset(max)
	resp := &Response{Tag: tag}

	cont := false
	for {
		keep := !a.tok.Truncated()
		line, err := a.tok.ReadLine()
		if err != nil && line == "" {
			return resp, incomplete(err)
		}

		var toks []Token
		var nextCont bool
		var tokErr error
		if mode == ReadModeNumbers {
			toks = splitNumbers(line)
		} else {
			nextCont, toks, tokErr = a.tok.Tokenize(line)
		}

		merged := cont && len(resp.Lines) > 0
		if merged {
			if keep {
				i := len(resp.Lines) - 1
				resp.Lines[i] = append(resp.Lines[i], toks...)
				resp.Raw[i] = Join(resp.Lines[i])
			}
		} else if len(toks) > 0 && (keep || isTagged(toks, tag) || isCountUpdate(toks)) {
			resp.Lines = append(resp.Lines, toks)
			resp.Raw = append(resp.Raw, Join(toks))
		}
		cont = nextCont

		if tokErr != nil {
			resp.Truncated = a.tok.Truncated()
			return resp, incomplete(tokErr)
		} else if err != nil {
			resp.Truncated = a.tok.Truncated()
			return resp, incomplete(err)
		}

		if cont || merged {
			continue
		}
		if isBye(toks) {
			resp.Truncated = a.tok.Truncated()
			return resp, imap.ErrBye
		}
		if isTagged(toks, tag) {
			break
		}
	}

	resp.Truncated = a.tok.Truncated()
	if resp.Truncated {
		return resp, imap.ErrTruncated
	}
	return resp, nil
}

// ReadLine reads a single logical line, such as the server greeting or a
// continuation request.
func (a *Assembler) ReadLine(max int64) ([]Token, error) {
	a.tok.Reset(max)
	var toks []Token
	for {
		line, err := a.tok.ReadLine()
		if err != nil && line == "" {
			return toks, incomplete(err)
		}
		cont, more, tokErr := a.tok.Tokenize(line)
		toks = append(toks, more...)
		if tokErr != nil {
			return toks, incomplete(tokErr)
		} else if err != nil {
			return toks, incomplete(err)
		}
		if !cont {
			break
		}
	}
	if a.tok.Truncated() {
		return toks, imap.ErrTruncated
	}
	return toks, nil
}

// ContinueLine tokenizes a physical line already read with
// Tokenizer.ReadLine, along with the physical lines continuing it.
func (a *Assembler) ContinueLine(line string) ([]Token, error) {
	var toks []Token
	for {
		cont, more, err := a.tok.Tokenize(line)
		toks = append(toks, more...)
		if err != nil {
			return toks, incomplete(err)
		}
		if !cont {
			return toks, nil
		}
		line, err = a.tok.ReadLine()
		if err != nil && line == "" {
			return toks, incomplete(err)
		}
	}
}

// ReadContinuation reads lines until a continuation request ("+") or the
// tagged completion arrives. Untagged lines read meanwhile are returned in
// resp. A nil resp.Completion() means the server is ready for more data, the
// text of the request is in resp.Continuation.
func (a *Assembler) ReadContinuation(tag string, max int64) (*Response, error) {
	resp := &Response{Tag: tag}
	for {
		toks, err := a.ReadLine(max)
		if err != nil {
			return resp, err
		}
		if len(toks) > 0 && toks[0].Is("+") {
			resp.Continuation = Join(toks[1:])
			return resp, nil
		}
		resp.Lines = append(resp.Lines, toks)
		resp.Raw = append(resp.Raw, Join(toks))
		if isBye(toks) {
			return resp, imap.ErrBye
		}
		if isTagged(toks, tag) {
			return resp, nil
		}
	}
}

func splitNumbers(line string) []Token {
	var toks []Token
	for _, f := range strings.Fields(line) {
		if f == "*" {
			toks = append(toks, Token{Kind: TokenMarker, Value: f})
		} else {
			toks = append(toks, Token{Kind: TokenAtom, Value: f})
		}
	}
	return toks
}

func isTagged(toks []Token, tag string) bool {
	return len(toks) > 0 && toks[0].Kind == TokenAtom && toks[0].Value == tag
}

// isCountUpdate reports whether toks is a short message count notification,
// which is kept past the ceiling so that the mailbox state stays accurate.
func isCountUpdate(toks []Token) bool {
	if len(toks) != 3 || !toks[0].IsMarker('*') || toks[1].Kind != TokenAtom {
		return false
	}
	return toks[2].Is("EXISTS") || toks[2].Is("EXPUNGE") || toks[2].Is("RECENT")
}

func isBye(toks []Token) bool {
	return len(toks) > 1 && toks[0].IsMarker('*') && toks[1].Is("BYE")
}

func incomplete(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return imap.ErrIncomplete
	}
	return &incompleteError{err}
}

// incompleteError wraps a transport error so that it matches
// imap.ErrIncomplete with errors.Is.
type incompleteError struct {
	err error
}

func (err *incompleteError) Error() string {
	return imap.ErrIncomplete.Error() + ": " + err.err.Error()
}

func (err *incompleteError) Unwrap() error {
	return err.err
}

func (err *incompleteError) Is(target error) bool {
	return target == imap.ErrIncomplete
}
