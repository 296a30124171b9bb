package imapwire

import (
	"bufio"
	"strings"
	"testing"
)

func newTestTokenizer(s string) *Tokenizer {
	return NewTokenizer(bufio.NewReader(strings.NewReader(s)))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want []Token
	}{
		{
			line: `* OK [UIDNEXT 4392] Predicted`,
			want: []Token{
				{TokenMarker, "*"}, {TokenAtom, "OK"}, {TokenMarker, "["},
				{TokenAtom, "UIDNEXT"}, {TokenAtom, "4392"}, {TokenMarker, "]"},
				{TokenAtom, "Predicted"},
			},
		},
		{
			line: `* LIST (\HasNoChildren) "/" "a \"b\" \\c"`,
			want: []Token{
				{TokenMarker, "*"}, {TokenAtom, "LIST"}, {TokenMarker, "("},
				{TokenAtom, `\HasNoChildren`}, {TokenMarker, ")"},
				{TokenQuoted, "/"}, {TokenQuoted, `a "b" \c`},
			},
		},
		{
			line: "* 1 FETCH (BODY[] {5}\r\n",
			want: []Token{
				{TokenMarker, "*"}, {TokenAtom, "1"}, {TokenAtom, "FETCH"},
				{TokenMarker, "("}, {TokenAtom, "BODY["}, {TokenMarker, "]"},
				{TokenAtom, "{5}"},
			},
		},
	}
	for _, tc := range tests {
		got := ParseLine(tc.line)
		if len(got) != len(tc.want) {
			t.Errorf("ParseLine(%q) = %v, want %v", tc.line, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseLine(%q)[%v] = %#v, want %#v", tc.line, i, got[i], tc.want[i])
			}
		}
	}
}

func TestTokenizer_literal(t *testing.T) {
	lit := "a\r\nb\x00c\"d"
	tok := newTestTokenizer("* 1 FETCH (BODY[] {8}\r\n" + lit + ")\r\n")
	tok.Reset(0)

	line, err := tok.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() = %v", err)
	}
	cont, toks, err := tok.Tokenize(line)
	if err != nil {
		t.Fatalf("Tokenize() = %v", err)
	}
	if !cont {
		t.Errorf("Tokenize() cont = false, want true")
	}
	last := toks[len(toks)-1]
	if last.Kind != TokenLiteral || last.Value != lit {
		t.Errorf("literal = %#v, want %q", last, lit)
	}

	line, err = tok.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() = %v", err)
	}
	if line != ")\r\n" {
		t.Errorf("ReadLine() = %q, want %q", line, ")\r\n")
	}
}

func TestTokenizer_ceiling(t *testing.T) {
	tok := newTestTokenizer("* 1 FETCH (BODY[] {20}\r\n01234567890123456789)\r\n")
	tok.Reset(30)

	line, err := tok.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() = %v", err)
	}
	_, toks, err := tok.Tokenize(line)
	if err != nil {
		t.Fatalf("Tokenize() = %v", err)
	}
	if !tok.Truncated() {
		t.Errorf("Truncated() = false, want true")
	}
	last := toks[len(toks)-1]
	if len(last.Value) >= 20 {
		t.Errorf("literal length = %v, want less than 20", len(last.Value))
	}
	if line, _ := tok.ReadLine(); line != ")\r\n" {
		t.Errorf("ReadLine() = %q, want %q: the stream is out of sync", line, ")\r\n")
	}
}

func TestLiteralSize(t *testing.T) {
	size, err := LiteralSize("* 1 FETCH (BODY[1] {1024}\r\n")
	if err != nil {
		t.Fatalf("LiteralSize() = %v", err)
	}
	if size != 1024 {
		t.Errorf("LiteralSize() = %v, want 1024", size)
	}
	if _, err := LiteralSize("* OK done\r\n"); err == nil {
		t.Errorf("LiteralSize() = nil, want an error")
	}
}
