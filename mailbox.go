package imap

import (
	"strconv"
)

// MailboxState is a snapshot of the selected mailbox.
//
// Numeric fields hold Unknown until the server reports them. Flags and
// PermanentFlags are nil until reported.
type MailboxState struct {
	Name     string
	ReadOnly bool

	UIDValidity int64
	UIDNext     int64
	NumMessages int64 // EXISTS
	NumRecent   int64
	FirstUnseen int64 // sequence number of the first unseen message

	Flags          []Flag
	PermanentFlags []Flag

	ModSeq   int64 // HIGHESTMODSEQ, requires CONDSTORE
	NoModSeq bool
}

// NewMailboxState returns a state with every attribute unknown.
func NewMailboxState(name string) *MailboxState {
	return &MailboxState{
		Name:        name,
		UIDValidity: Unknown,
		UIDNext:     Unknown,
		NumMessages: Unknown,
		NumRecent:   Unknown,
		FirstUnseen: Unknown,
		ModSeq:      Unknown,
	}
}

// Copy returns a deep copy of the state.
func (state *MailboxState) Copy() *MailboxState {
	cp := *state
	cp.Flags = append([]Flag(nil), state.Flags...)
	cp.PermanentFlags = append([]Flag(nil), state.PermanentFlags...)
	return &cp
}

// Mailbox attribute names reported by Merge.
const (
	AttrUIDValidity    = "uidvalidity"
	AttrUIDNext        = "uidnext"
	AttrNumMessages    = "exists"
	AttrNumRecent      = "recent"
	AttrFirstUnseen    = "unseen"
	AttrFlags          = "flags"
	AttrPermanentFlags = "pflags"
	AttrModSeq         = "modseq"
)

// Merge copies every attribute known in update that differs from the
// current value into state, and returns the names of the changed
// attributes. The name and the NoModSeq marker are left untouched.
func (state *MailboxState) Merge(update *MailboxState) []string {
	var changed []string
	mergeNum := func(name string, dst *int64, v int64) {
		if v != Unknown && *dst != v {
			*dst = v
			changed = append(changed, name)
		}
	}
	mergeFlags := func(name string, dst *[]Flag, v []Flag) {
		if v != nil && !equalFlags(*dst, v) {
			*dst = append([]Flag(nil), v...)
			changed = append(changed, name)
		}
	}

	mergeNum(AttrUIDValidity, &state.UIDValidity, update.UIDValidity)
	mergeNum(AttrUIDNext, &state.UIDNext, update.UIDNext)
	mergeNum(AttrNumMessages, &state.NumMessages, update.NumMessages)
	mergeNum(AttrNumRecent, &state.NumRecent, update.NumRecent)
	mergeNum(AttrFirstUnseen, &state.FirstUnseen, update.FirstUnseen)
	mergeNum(AttrModSeq, &state.ModSeq, update.ModSeq)
	mergeFlags(AttrFlags, &state.Flags, update.Flags)
	mergeFlags(AttrPermanentFlags, &state.PermanentFlags, update.PermanentFlags)
	return changed
}

// QResyncParam returns the "(uidvalidity modseq)" pair used to resume the
// mailbox with QRESYNC, or false if either value is unknown.
func (state *MailboxState) QResyncParam() (string, bool) {
	if state.UIDValidity <= 0 || state.ModSeq <= 0 {
		return "", false
	}
	return "(" + strconv.FormatInt(state.UIDValidity, 10) + " " + strconv.FormatInt(state.ModSeq, 10) + ")", true
}

func equalFlags(a, b []Flag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
