package imapwire

import (
	"strings"
)

// TokenKind is the kind of a Token.
type TokenKind int

const (
	// TokenMarker is one of the single-character markers "*", "(", ")",
	// "[" and "]".
	TokenMarker TokenKind = 1 + iota
	// TokenAtom is a bare word.
	TokenAtom
	// TokenQuoted is a quoted string with its escapes resolved.
	TokenQuoted
	// TokenLiteral is the raw content of a {n} literal.
	TokenLiteral
)

// Token is one atom of a response line.
type Token struct {
	Kind  TokenKind
	Value string
}

// String implements fmt.Stringer.
func (tok Token) String() string {
	return tok.Value
}

// Is checks whether the token is a marker or an atom equal to s. Atoms are
// compared case-insensitively.
func (tok Token) Is(s string) bool {
	switch tok.Kind {
	case TokenMarker:
		return tok.Value == s
	case TokenAtom:
		return strings.EqualFold(tok.Value, s)
	default:
		return false
	}
}

// IsMarker checks whether the token is the marker ch.
func (tok Token) IsMarker(ch byte) bool {
	return tok.Kind == TokenMarker && len(tok.Value) == 1 && tok.Value[0] == ch
}

// IsNIL checks whether the token is the NIL atom.
func (tok Token) IsNIL() bool {
	return tok.Kind == TokenAtom && strings.EqualFold(tok.Value, "NIL")
}

// NString returns the token value, or an empty string for NIL.
func (tok Token) NString() string {
	if tok.IsNIL() {
		return ""
	}
	return tok.Value
}

// Join renders tokens as a whitespace-joined string.
func Join(toks []Token) string {
	var sb strings.Builder
	for i, tok := range toks {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Value)
	}
	return sb.String()
}

// Index returns the index of the first token equal to s, or -1.
func Index(toks []Token, s string) int {
	for i, tok := range toks {
		if tok.Is(s) {
			return i
		}
	}
	return -1
}

// Adjacent returns the token at offset from the first token equal to key:
// the value v such that toks[i+offset] == key, where toks[i] == v.
func Adjacent(toks []Token, offset int, key string) (Token, bool) {
	for i, tok := range toks {
		j := i + offset
		if j >= 0 && j < len(toks) && toks[j].Is(key) {
			return tok, true
		}
	}
	return Token{}, false
}

// Group returns the tokens of the parenthesized list starting at toks[i],
// including the enclosing markers, and the index following the list. If
// toks[i] is not an opening marker, the single token is returned.
func Group(toks []Token, i int) ([]Token, int) {
	if i >= len(toks) {
		return nil, i
	}
	if !toks[i].IsMarker('(') {
		return toks[i : i+1], i + 1
	}
	depth := 0
	for j := i; j < len(toks); j++ {
		switch {
		case toks[j].IsMarker('('):
			depth++
		case toks[j].IsMarker(')'):
			depth--
			if depth == 0 {
				return toks[i : j+1], j + 1
			}
		}
	}
	return toks[i:], len(toks)
}

// SplitTopLevel splits the contents of a parenthesized list into its
// top-level elements: each nested list is one element, each other token is
// one element.
func SplitTopLevel(list []Token) [][]Token {
	if len(list) >= 2 && list[0].IsMarker('(') && list[len(list)-1].IsMarker(')') {
		list = list[1 : len(list)-1]
	}
	var groups [][]Token
	for i := 0; i < len(list); {
		var g []Token
		g, i = Group(list, i)
		groups = append(groups, g)
	}
	return groups
}
