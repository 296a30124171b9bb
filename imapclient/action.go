package imapclient

import (
	"fmt"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/internal/imapnum"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Action is an operation on messages of the selected mailbox.
type Action string

const (
	ActionRead       Action = "READ"
	ActionUnread     Action = "UNREAD"
	ActionFlag       Action = "FLAG"
	ActionUnflag     Action = "UNFLAG"
	ActionAnswered   Action = "ANSWERED"
	ActionUnanswered Action = "UNANSWERED"
	ActionDelete     Action = "DELETE"
	ActionUndelete   Action = "UNDELETE"
	ActionExpunge    Action = "EXPUNGE"
	ActionCopy       Action = "COPY"
	ActionMove       Action = "MOVE"
)

// actionFlags maps flag actions to a STORE operation.
var actionFlags = map[Action]struct {
	op   string
	flag imap.Flag
}{
	ActionRead:       {"+FLAGS", imap.FlagSeen},
	ActionUnread:     {"-FLAGS", imap.FlagSeen},
	ActionFlag:       {"+FLAGS", imap.FlagFlagged},
	ActionUnflag:     {"-FLAGS", imap.FlagFlagged},
	ActionAnswered:   {"+FLAGS", imap.FlagAnswered},
	ActionUnanswered: {"-FLAGS", imap.FlagAnswered},
	ActionDelete:     {"+FLAGS", imap.FlagDeleted},
	ActionUndelete:   {"-FLAGS", imap.FlagDeleted},
}

// maxActionRanges is the number of UID ranges sent per command.
const maxActionRanges = 1000

// MessageAction applies an action to messages of the selected mailbox.
// The destination mailbox is only used by COPY and MOVE.
//
// Large UID lists are split over several commands. Without the MOVE
// extension, MOVE is a COPY followed by flagging the messages deleted and
// an EXPUNGE. EXPUNGE is restricted to uids if UIDPLUS is supported, and
// expunges every deleted message otherwise.
//
// The cached results of the selected mailbox and of the destination are
// invalidated.
func (c *Client) MessageAction(action Action, uids []imap.UID, dest string) error {
	if _, ok := actionFlags[action]; ok {
		dest = ""
	} else {
		switch action {
		case ActionExpunge:
			dest = ""
		case ActionCopy, ActionMove:
			if err := imap.ValidateMailbox(dest); err != nil {
				return err
			}
			dest = canonicalMailbox(dest)
		default:
			return &imap.ValidationError{Field: "action", Value: string(action)}
		}
	}
	if c.options.ReadOnly {
		return imap.ErrReadOnly
	}
	state := c.Mailbox()
	if state == nil {
		return &imap.Error{Type: imap.StatusResponseTypeBad, Text: "no mailbox selected"}
	}
	if len(uids) == 0 && action != ActionExpunge {
		return nil
	}

	defer func() {
		c.invalidate(imapcache.MailboxScope(state.Name))
		if dest != "" {
			c.invalidate(imapcache.MailboxScope(dest))
		}
	}()

	if action == ActionExpunge {
		return c.expunge(uidSet(uids))
	}
	for _, set := range uidSet(uids).Chunks(maxActionRanges) {
		var err error
		switch action {
		case ActionCopy:
			err = c.copyMessages("UID COPY", set, dest)
		case ActionMove:
			err = c.moveMessages(set, dest)
		default:
			f := actionFlags[action]
			err = c.store(set, f.op, f.flag)
		}
		if err != nil {
			return fmt.Errorf("imapclient: %v: %w", action, err)
		}
	}
	return nil
}

func (c *Client) store(set imapnum.Set, op string, flag imap.Flag) error {
	_, err := c.execute(&command{
		name:  "UID STORE",
		fetch: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom(set.String()).SP().Atom(op).SP()
			enc.List(1, func(int) {
				enc.Flag(flag)
			})
		},
	})
	return err
}

func (c *Client) copyMessages(name string, set imapnum.Set, dest string) error {
	_, err := c.execute(&command{
		name: name,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom(set.String()).SP().Mailbox(dest)
		},
	})
	return err
}

func (c *Client) moveMessages(set imapnum.Set, dest string) error {
	if c.Caps().Has(imap.CapMove) {
		return c.copyMessages("UID MOVE", set, dest)
	}
	if err := c.copyMessages("UID COPY", set, dest); err != nil {
		return err
	}
	if err := c.store(set, "+FLAGS.SILENT", imap.FlagDeleted); err != nil {
		return err
	}
	return c.expunge(set)
}

func (c *Client) expunge(set imapnum.Set) error {
	if len(set) > 0 && c.Caps().Has(imap.CapUIDPlus) {
		_, err := c.execute(&command{
			name: "UID EXPUNGE",
			args: func(enc *imapwire.Encoder) {
				enc.SP().Atom(set.String())
			},
		})
		return err
	}
	_, err := c.execute(&command{name: "EXPUNGE"})
	return err
}
