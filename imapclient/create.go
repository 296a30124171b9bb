package imapclient

import (
	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// CreateMailbox sends a CREATE command.
func (c *Client) CreateMailbox(mailbox string) error {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return err
	}
	if c.options.ReadOnly {
		return imap.ErrReadOnly
	}
	_, err := c.execute(&command{
		name: "CREATE",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Mailbox(mailbox)
		},
	})
	if err != nil {
		return err
	}
	c.invalidate(imapcache.ScopeList, imapcache.ScopeLSub)
	return nil
}

// DeleteMailbox sends a DELETE command.
func (c *Client) DeleteMailbox(mailbox string) error {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return err
	}
	if c.options.ReadOnly {
		return imap.ErrReadOnly
	}
	_, err := c.execute(&command{
		name: "DELETE",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Mailbox(mailbox)
		},
	})
	if err != nil {
		return err
	}
	c.invalidate(imapcache.ScopeList, imapcache.ScopeLSub, imapcache.MailboxScope(canonicalMailbox(mailbox)))
	return nil
}

// RenameMailbox sends a RENAME command.
func (c *Client) RenameMailbox(mailbox, newName string) error {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return err
	}
	if err := imap.ValidateMailbox(newName); err != nil {
		return err
	}
	if c.options.ReadOnly {
		return imap.ErrReadOnly
	}
	_, err := c.execute(&command{
		name: "RENAME",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Mailbox(mailbox).SP().Mailbox(newName)
		},
	})
	if err != nil {
		return err
	}
	c.invalidate(imapcache.ScopeList, imapcache.ScopeLSub,
		imapcache.MailboxScope(canonicalMailbox(mailbox)),
		imapcache.MailboxScope(canonicalMailbox(newName)))
	return nil
}
