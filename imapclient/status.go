package imapclient

import (
	"strconv"
	"strings"

	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
	"github.com/jasonmunro/hm-imap/internal/utf7"
)

// MailboxStatus sends a STATUS command. If items is empty,
// imap.DefaultStatusItems are requested, plus HIGHESTMODSEQ if CONDSTORE is
// supported.
//
// A STATUS of the selected mailbox updates its state.
func (c *Client) MailboxStatus(mailbox string, items []imap.StatusItem) (*imap.StatusData, error) {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return nil, err
	}
	mailbox = canonicalMailbox(mailbox)
	if len(items) == 0 {
		items = append([]imap.StatusItem(nil), imap.DefaultStatusItems...)
		if c.Caps().Has(imap.CapCondStore) {
			items = append(items, imap.StatusItemHighestModSeq)
		}
	}

	resp, err := c.execute(&command{
		name: "STATUS",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Mailbox(mailbox).SP()
			enc.List(len(items), func(i int) {
				enc.Atom(string(items[i]))
			})
		},
	})
	if err != nil {
		return nil, err
	}

	data := imap.NewStatusData(mailbox)
	for _, line := range resp.Untagged() {
		if len(line) < 4 || !line[1].Is("STATUS") {
			continue
		}
		list, _ := imapwire.Group(line, 3)
		parseStatusItems(data, list)
	}

	c.mutex.Lock()
	c.mergeStatus(data)
	c.mutex.Unlock()
	return data, nil
}

// mergeStatus merges the status of the selected mailbox into its state. The
// caller must hold the lock.
func (c *Client) mergeStatus(data *imap.StatusData) {
	if c.selected == nil || c.selected.Name != data.Mailbox {
		return
	}
	if changed := c.selected.Merge(data.MailboxState()); len(changed) > 0 {
		level.Debug(c.logger).Log("msg", "mailbox state changed", "mailbox", data.Mailbox, "changed", strings.Join(changed, ","))
		c.invalidate(imapcache.MailboxScope(data.Mailbox))
	}
}

// parseStatusItems reads a "(NAME value ...)" status list.
func parseStatusItems(data *imap.StatusData, list []imapwire.Token) {
	groups := imapwire.SplitTopLevel(list)
	for i := 0; i+1 < len(groups); i += 2 {
		if len(groups[i]) != 1 || len(groups[i+1]) != 1 {
			continue
		}
		n, err := strconv.ParseInt(groups[i+1][0].Value, 10, 64)
		if err != nil {
			continue
		}
		switch imap.StatusItem(strings.ToUpper(groups[i][0].Value)) {
		case imap.StatusItemNumMessages:
			data.NumMessages = n
		case imap.StatusItemUIDNext:
			data.UIDNext = n
		case imap.StatusItemUIDValidity:
			data.UIDValidity = n
		case imap.StatusItemNumUnseen:
			data.NumUnseen = n
		case imap.StatusItemNumRecent:
			data.NumRecent = n
		case imap.StatusItemHighestModSeq:
			data.HighestModSeq = n
		}
	}
}

// decodeMailbox decodes a mailbox name read from the server.
func (c *Client) decodeMailbox(name string) string {
	if c.options.RawMailboxNames {
		return canonicalMailbox(name)
	}
	return canonicalMailbox(utf7.DecodeOrKeep(name))
}
