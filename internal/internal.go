// Package internal holds helpers shared by the client and the cache.
package internal

import (
	"strings"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// FlagList reads the flag list following the token at toks[i], which is
// typically the FLAGS or PERMANENTFLAGS atom. It returns nil if no list
// follows.
func FlagList(toks []imapwire.Token, i int) []imap.Flag {
	list, _ := imapwire.Group(toks, i+1)
	return Flags(list)
}

// Flags converts a parenthesized flag list.
func Flags(list []imapwire.Token) []imap.Flag {
	if len(list) < 2 || !list[0].IsMarker('(') {
		return nil
	}
	flags := make([]imap.Flag, 0, len(list)-2)
	for _, tok := range list[1 : len(list)-1] {
		if tok.Kind == imapwire.TokenMarker {
			continue
		}
		flags = append(flags, imap.Flag(tok.Value))
	}
	return flags
}

// MailboxAttrs converts the attribute list of a LIST response.
func MailboxAttrs(list []imapwire.Token) []imap.MailboxAttr {
	var attrs []imap.MailboxAttr
	for _, tok := range list {
		if tok.Kind == imapwire.TokenMarker {
			continue
		}
		attrs = append(attrs, canonMailboxAttr(tok.Value))
	}
	return attrs
}

var canonMailboxAttrs = map[string]imap.MailboxAttr{}

func init() {
	for _, attr := range []imap.MailboxAttr{
		imap.MailboxAttrNonExistent,
		imap.MailboxAttrNoInferiors,
		imap.MailboxAttrNoSelect,
		imap.MailboxAttrHasChildren,
		imap.MailboxAttrHasNoChildren,
		imap.MailboxAttrMarked,
		imap.MailboxAttrUnmarked,
		imap.MailboxAttrAll,
		imap.MailboxAttrArchive,
		imap.MailboxAttrDrafts,
		imap.MailboxAttrFlagged,
		imap.MailboxAttrJunk,
		imap.MailboxAttrSent,
		imap.MailboxAttrTrash,
	} {
		canonMailboxAttrs[strings.ToLower(string(attr))] = attr
	}
}

func canonMailboxAttr(s string) imap.MailboxAttr {
	if attr, ok := canonMailboxAttrs[strings.ToLower(s)]; ok {
		return attr
	}
	return imap.MailboxAttr(s)
}
