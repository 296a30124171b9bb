// Package imap contains the types shared by the hm-imap client engine.
//
// The engine targets the subset of IMAP4rev1 (RFC 3501) needed to browse
// mailboxes: listing, search, sort, fetch by UID and MIME structure retrieval,
// plus the CONDSTORE and QRESYNC change-tracking extensions (RFC 7162).
package imap

// ConnState describes the connection state.
//
// See RFC 3501 section 3.
type ConnState int

const (
	ConnStateNone ConnState = iota
	ConnStateNotAuthenticated
	ConnStateAuthenticated
	ConnStateSelected
	ConnStateLogout
)

// String implements fmt.Stringer.
func (state ConnState) String() string {
	switch state {
	case ConnStateNone:
		return "disconnected"
	case ConnStateNotAuthenticated:
		return "connected"
	case ConnStateAuthenticated:
		return "authenticated"
	case ConnStateSelected:
		return "selected"
	case ConnStateLogout:
		return "logout"
	default:
		panic("imap: unknown connection state")
	}
}

// MailboxAttr is a mailbox attribute.
//
// Mailbox attributes are defined in RFC 3501 section 7.2.2 and RFC 6154.
type MailboxAttr string

const (
	// Base attributes
	MailboxAttrNonExistent   MailboxAttr = "\\NonExistent"
	MailboxAttrNoInferiors   MailboxAttr = "\\Noinferiors"
	MailboxAttrNoSelect      MailboxAttr = "\\Noselect"
	MailboxAttrHasChildren   MailboxAttr = "\\HasChildren"
	MailboxAttrHasNoChildren MailboxAttr = "\\HasNoChildren"
	MailboxAttrMarked        MailboxAttr = "\\Marked"
	MailboxAttrUnmarked      MailboxAttr = "\\Unmarked"

	// Role (aka. "special-use") attributes
	MailboxAttrAll     MailboxAttr = "\\All"
	MailboxAttrArchive MailboxAttr = "\\Archive"
	MailboxAttrDrafts  MailboxAttr = "\\Drafts"
	MailboxAttrFlagged MailboxAttr = "\\Flagged"
	MailboxAttrJunk    MailboxAttr = "\\Junk"
	MailboxAttrSent    MailboxAttr = "\\Sent"
	MailboxAttrTrash   MailboxAttr = "\\Trash"
)

var specialUseAttrs = map[MailboxAttr]struct{}{
	MailboxAttrAll:     {},
	MailboxAttrArchive: {},
	MailboxAttrDrafts:  {},
	MailboxAttrFlagged: {},
	MailboxAttrJunk:    {},
	MailboxAttrSent:    {},
	MailboxAttrTrash:   {},
}

// IsSpecialUse reports whether the attribute is a RFC 6154 role.
func (attr MailboxAttr) IsSpecialUse() bool {
	_, ok := specialUseAttrs[attr]
	return ok
}

// Flag is a message flag.
//
// Message flags are defined in RFC 3501 section 2.3.2.
type Flag string

const (
	// System flags
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
	FlagRecent   Flag = "\\Recent"

	// Permanent flags
	FlagWildcard Flag = "\\*"
)

// UID is a message unique identifier.
type UID uint32

// Unknown is the sentinel stored in numeric mailbox attributes that the
// server did not report. It is distinct from a real zero.
const Unknown int64 = -1
