package imap

// StatusItem is a data item which can be requested by a STATUS command.
type StatusItem string

const (
	StatusItemNumMessages   StatusItem = "MESSAGES"
	StatusItemUIDNext       StatusItem = "UIDNEXT"
	StatusItemUIDValidity   StatusItem = "UIDVALIDITY"
	StatusItemNumUnseen     StatusItem = "UNSEEN"
	StatusItemNumRecent     StatusItem = "RECENT"
	StatusItemHighestModSeq StatusItem = "HIGHESTMODSEQ" // requires CONDSTORE
)

// DefaultStatusItems are requested when no items are given.
var DefaultStatusItems = []StatusItem{
	StatusItemNumUnseen,
	StatusItemUIDValidity,
	StatusItemUIDNext,
	StatusItemNumMessages,
	StatusItemNumRecent,
}

// StatusData is the data returned by a STATUS command.
//
// The mailbox name is always populated. Items the server did not return
// hold Unknown.
type StatusData struct {
	Mailbox string

	NumMessages   int64
	UIDNext       int64
	UIDValidity   int64
	NumUnseen     int64
	NumRecent     int64
	HighestModSeq int64
}

// NewStatusData returns a StatusData with every item unknown.
func NewStatusData(mailbox string) *StatusData {
	return &StatusData{
		Mailbox:       mailbox,
		NumMessages:   Unknown,
		UIDNext:       Unknown,
		UIDValidity:   Unknown,
		NumUnseen:     Unknown,
		NumRecent:     Unknown,
		HighestModSeq: Unknown,
	}
}

// MailboxState converts the status into a mailbox state update, so that a
// STATUS on the selected mailbox can be merged into it.
func (data *StatusData) MailboxState() *MailboxState {
	state := NewMailboxState(data.Mailbox)
	state.NumMessages = data.NumMessages
	state.UIDNext = data.UIDNext
	state.UIDValidity = data.UIDValidity
	state.NumRecent = data.NumRecent
	state.ModSeq = data.HighestModSeq
	return state
}
