package imapclient

import (
	"fmt"
	"io"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Append sends an APPEND command.
//
// The caller must write exactly size bytes of message data, then call
// AppendCommand.Close. Other commands fail until then.
func (c *Client) Append(mailbox string, flags []imap.Flag, size int64) (*AppendCommand, error) {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return nil, err
	}
	if c.options.ReadOnly {
		return nil, imap.ErrReadOnly
	}
	mailbox = canonicalMailbox(mailbox)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	p, err := c.begin(&command{
		name: "APPEND",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Mailbox(mailbox).SP()
			enc.List(len(flags), func(i int) {
				enc.Flag(flags[i])
			})
			enc.SP()
		},
	})
	if err != nil {
		return nil, err
	}
	cmd := &AppendCommand{client: c, mailbox: mailbox, p: p}
	cmd.wc = p.enc.Literal(size)
	c.appending = cmd
	return cmd, nil
}

// AppendCommand is an APPEND command in progress.
type AppendCommand struct {
	client  *Client
	mailbox string
	p       *pendingCommand
	wc      io.WriteCloser
	done    bool
}

// Write writes message data.
func (cmd *AppendCommand) Write(b []byte) (int, error) {
	return cmd.wc.Write(b)
}

// Close ends the message data and waits for the server to store the
// message.
func (cmd *AppendCommand) Close() error {
	c := cmd.client
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if cmd.done {
		return nil
	}
	cmd.done = true
	if c.appending != cmd {
		return errClosed
	}
	c.appending = nil

	if err := cmd.wc.Close(); err != nil && cmd.p.early == nil {
		// The server still expects literal data.
		c.state = imap.ConnStateLogout
		return fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
	}
	if _, err := c.end(cmd.p); err != nil {
		return err
	}
	c.invalidate(imapcache.MailboxScope(cmd.mailbox))
	return nil
}
