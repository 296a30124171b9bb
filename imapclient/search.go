package imapclient

import (
	"strconv"
	"strings"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// SearchTerm is a search key with a string argument, such as
// {"SUBJECT", "invoice"}.
type SearchTerm struct {
	Field string
	Value string
}

func validateTerms(terms []SearchTerm) error {
	for _, term := range terms {
		if err := imap.ValidateSearchTerm(term.Field); err != nil {
			return err
		}
		if !isAtom(term.Field) {
			return &imap.ValidationError{Field: "search field", Value: term.Field}
		}
		if err := imap.ValidateSearchTerm(term.Value); err != nil {
			return err
		}
	}
	return nil
}

// isAtom reports whether s can be written as a bare atom.
func isAtom(s string) bool {
	for i := 0; i < len(s); i++ {
		if !imapwire.IsAtomChar(s[i]) {
			return false
		}
	}
	return s != ""
}

func writeTerms(enc *imapwire.Encoder, terms []SearchTerm) {
	for _, term := range terms {
		enc.SP().Atom(strings.ToUpper(term.Field)).SP().String(term.Value)
	}
}

// Search sends a UID SEARCH command in the selected mailbox and returns
// the matching UIDs.
//
// The target is a search keyword such as "ALL" or "UNSEEN". If uids is not
// empty, the search is restricted to these messages. Terms are added as
// further search keys.
func (c *Client) Search(target string, uids []imap.UID, terms []SearchTerm) (imap.UIDList, error) {
	if target == "" {
		target = "ALL"
	}
	if err := imap.ValidateKeyword(target); err != nil {
		return nil, err
	}
	if err := imap.ValidateCharset(c.options.SearchCharset); err != nil {
		return nil, err
	}
	if err := validateTerms(terms); err != nil {
		return nil, err
	}
	if err := c.requireSelected(); err != nil {
		return nil, err
	}

	charset := strings.ToUpper(c.options.SearchCharset)
	cmd := &command{
		name: "UID SEARCH",
		args: func(enc *imapwire.Encoder) {
			if charset != "" {
				enc.SP().Atom("CHARSET").SP().Atom(charset)
			}
			enc.SP().Atom("(" + strings.ToUpper(target) + ")")
			if len(uids) > 0 {
				enc.SP().Atom("UID").SP().Atom(uidSet(uids).String())
			}
			writeTerms(enc, terms)
		},
	}
	return c.searchUIDs(cmd)
}

// GoogleSearch searches the selected mailbox with the Gmail search syntax,
// for instance "has:attachment in:unread".
//
// This command requires support for X-GM-EXT-1.
func (c *Client) GoogleSearch(query string) (imap.UIDList, error) {
	if err := imap.ValidateSearchTerm(query); err != nil {
		return nil, err
	}
	if !c.Caps().Has(imap.CapXGMExt1) {
		return nil, imap.ErrNotSupported
	}
	if err := c.requireSelected(); err != nil {
		return nil, err
	}
	return c.searchUIDs(&command{
		name: "UID SEARCH",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom("X-GM-RAW").SP().String(query)
		},
	})
}

func (c *Client) searchUIDs(cmd *command) (imap.UIDList, error) {
	v, err := c.cached(c.signature(cmd), false, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}
		var l imap.UIDList
		for _, line := range resp.Untagged() {
			if len(line) < 2 || !line[1].Is("SEARCH") {
				continue
			}
			l = append(l, parseUIDs(line[2:])...)
		}
		return &l, nil
	})
	l, _ := v.(*imap.UIDList)
	if l == nil {
		return nil, err
	}
	return append(imap.UIDList(nil), *l...), err
}

// parseUIDs reads the numbers of a SEARCH or SORT response, up to the
// first parenthesized list such as "(MODSEQ 42)".
func parseUIDs(toks []imapwire.Token) []imap.UID {
	var uids []imap.UID
	for _, tok := range toks {
		if tok.IsMarker('(') {
			break
		}
		n, err := strconv.ParseUint(tok.Value, 10, 32)
		if err != nil || n == 0 {
			continue
		}
		uids = append(uids, imap.UID(n))
	}
	return uids
}
