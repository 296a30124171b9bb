package imapwire

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonmunro/hm-imap"
)

func newTestAssembler(s string) *Assembler {
	return NewAssembler(NewTokenizer(bufio.NewReader(strings.NewReader(s))))
}

func TestAssembler_ReadResponse(t *testing.T) {
	asm := newTestAssembler("* 2 EXISTS\r\n" +
		"* 1 FETCH (UID 7 BODY[] {3}\r\nabc FLAGS (\\Seen))\r\n" +
		"A1 OK [READ-WRITE] done\r\n" +
		"* 3 EXISTS\r\n")

	resp, err := asm.ReadResponse("A1", 0, ReadModeTokens)
	if err != nil {
		t.Fatalf("ReadResponse() = %v", err)
	}
	require.Len(t, resp.Lines, 3)
	assert.True(t, resp.OK())
	assert.True(t, resp.RawOK())
	assert.Equal(t, "[ READ-WRITE ] done", resp.Text())
	assert.Len(t, resp.Untagged(), 2)

	fetch := resp.Lines[1]
	assert.Equal(t, Token{TokenLiteral, "abc"}, fetch[8])
	assert.Equal(t, 0, Index(fetch[9:], "FLAGS"))
	assert.Nil(t, resp.Err("FETCH"))
}

func TestAssembler_ReadResponse_no(t *testing.T) {
	asm := newTestAssembler("a7 NO [TRYCREATE] no such mailbox\r\n")
	resp, err := asm.ReadResponse("a7", 0, ReadModeTokens)
	if err != nil {
		t.Fatalf("ReadResponse() = %v", err)
	}
	assert.False(t, resp.OK())
	assert.Equal(t, imap.StatusResponseTypeNo, resp.Status())

	var imapErr *imap.Error
	if !errors.As(resp.Err("SELECT foo"), &imapErr) {
		t.Fatalf("Err() = %v, want an *imap.Error", resp.Err("SELECT foo"))
	}
	assert.Equal(t, imap.StatusResponseTypeNo, imapErr.Type)
	assert.Equal(t, "SELECT foo", imapErr.Command)
}

func TestAssembler_ReadResponse_bye(t *testing.T) {
	asm := newTestAssembler("* 1 EXISTS\r\n* BYE shutting down\r\n")
	resp, err := asm.ReadResponse("A1", 0, ReadModeTokens)
	if !errors.Is(err, imap.ErrBye) {
		t.Fatalf("ReadResponse() = %v, want %v", err, imap.ErrBye)
	}
	assert.Len(t, resp.Lines, 2)
}

func TestAssembler_ReadResponse_eof(t *testing.T) {
	asm := newTestAssembler("* 1 EXISTS\r\n")
	resp, err := asm.ReadResponse("A1", 0, ReadModeTokens)
	if !errors.Is(err, imap.ErrIncomplete) {
		t.Fatalf("ReadResponse() = %v, want %v", err, imap.ErrIncomplete)
	}
	assert.Nil(t, resp.Completion())
	assert.Error(t, resp.Err("NOOP"))
}

func TestAssembler_ReadResponse_truncated(t *testing.T) {
	asm := newTestAssembler("* SEARCH 1 2 3\r\n" +
		"* 1 FETCH (BODY[] {100}\r\n" + strings.Repeat("x", 100) + ")\r\n" +
		"* SEARCH 4 5 6\r\n" +
		"* 2 EXISTS\r\n" +
		"A1 OK done\r\n")
	resp, err := asm.ReadResponse("A1", 40, ReadModeTokens)
	if !errors.Is(err, imap.ErrTruncated) {
		t.Fatalf("ReadResponse() = %v, want %v", err, imap.ErrTruncated)
	}
	assert.True(t, resp.Truncated)
	assert.True(t, resp.OK(), "the tagged completion must be kept")
	assert.Equal(t, "* SEARCH 1 2 3", resp.Raw[0])
	assert.Contains(t, resp.Raw, "* 2 EXISTS", "count updates must survive the ceiling")
	assert.NotContains(t, resp.Raw, "* SEARCH 4 5 6")
}

func TestAssembler_ReadResponse_hugeLiteral(t *testing.T) {
	asm := newTestAssembler("* 1 FETCH (BODY[] {99999999999999}\r\nshort")
	resp, err := asm.ReadResponse("A1", 0, ReadModeTokens)
	if !errors.Is(err, imap.ErrIncomplete) {
		t.Fatalf("ReadResponse() = %v, want %v", err, imap.ErrIncomplete)
	}
	assert.Nil(t, resp.Completion())
}

func TestAssembler_ReadResponse_numbers(t *testing.T) {
	asm := newTestAssembler("* SORT 5 3 4\r\nA1 OK done\r\n")
	resp, err := asm.ReadResponse("A1", 0, ReadModeNumbers)
	if err != nil {
		t.Fatalf("ReadResponse() = %v", err)
	}
	require.Len(t, resp.Untagged(), 1)
	assert.Equal(t, "* SORT 5 3 4", resp.Raw[0])
}

func TestAssembler_ReadContinuation(t *testing.T) {
	asm := newTestAssembler("* 1 RECENT\r\n+ Ready for literal data\r\n")
	resp, err := asm.ReadContinuation("A1", 0)
	if err != nil {
		t.Fatalf("ReadContinuation() = %v", err)
	}
	assert.Nil(t, resp.Completion())
	assert.Equal(t, "Ready for literal data", resp.Continuation)
	assert.Len(t, resp.Lines, 1)

	asm = newTestAssembler("A1 NO [OVERQUOTA] too big\r\n")
	resp, err = asm.ReadContinuation("A1", 0)
	if err != nil {
		t.Fatalf("ReadContinuation() = %v", err)
	}
	assert.NotNil(t, resp.Completion())
}

func TestAssembler_ContinueLine(t *testing.T) {
	asm := newTestAssembler("abc)\r\n")
	toks, err := asm.ContinueLine("* 1 FETCH (X {1}\r\n")
	if err != nil {
		t.Fatalf("ContinueLine() = %v", err)
	}
	// The literal "a" is followed by "bc)" on the same logical line.
	assert.Equal(t, "* 1 FETCH ( X a bc )", Join(toks))
}
