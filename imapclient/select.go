package imapclient

import (
	"strconv"
	"strings"

	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapnum"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Select sends a SELECT command.
//
// If QRESYNC is enabled and the mailbox was selected before on this
// connection, the known state is sent so that the server only reports the
// changes since then.
func (c *Client) Select(mailbox string) (*imap.MailboxState, error) {
	return c.selectMailbox(mailbox, false)
}

// Examine sends an EXAMINE command: the mailbox is selected read-only.
func (c *Client) Examine(mailbox string) (*imap.MailboxState, error) {
	return c.selectMailbox(mailbox, true)
}

func canonicalMailbox(name string) string {
	if strings.EqualFold(name, "INBOX") {
		return "INBOX"
	}
	return name
}

func (c *Client) selectMailbox(mailbox string, readOnly bool) (*imap.MailboxState, error) {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return nil, err
	}
	mailbox = canonicalMailbox(mailbox)

	c.mutex.Lock()
	var qresync string
	if prev := c.known[mailbox]; prev != nil && c.enabled.Has(imap.CapQResync) {
		qresync, _ = prev.QResyncParam()
	}
	condStore := c.enabled.Has(imap.CapCondStore)
	// The previous mailbox is deselected even if the command fails.
	if c.state == imap.ConnStateSelected {
		c.deselect()
	}
	c.mutex.Unlock()

	name := "SELECT"
	if readOnly {
		name = "EXAMINE"
	}
	resp, err := c.execute(&command{
		name: name,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Mailbox(mailbox)
			if qresync != "" {
				enc.SP().Atom("(QRESYNC " + qresync + ")")
			} else if condStore {
				enc.SP().Atom("(CONDSTORE)")
			}
		},
	})
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	update := parseMailboxAttrs(mailbox, resp.Lines)
	state := imap.NewMailboxState(mailbox)
	state.Merge(update)
	state.ReadOnly = readOnly || update.ReadOnly
	state.NoModSeq = update.NoModSeq

	// Changes reported by QRESYNC are repaired in the cached results, the
	// fingerprint takes care of everything else.
	if notes := parseNotifications(resp.Lines, false); notes.total() > 0 {
		c.reconcile(c.known[mailbox], state, notes)
	}

	c.selected = state
	c.state = imap.ConnStateSelected
	c.known[mailbox] = state.Copy()
	return state.Copy(), nil
}

// deselect records the state of the selected mailbox and leaves the
// selected state. The caller must hold the lock.
func (c *Client) deselect() {
	if c.selected != nil {
		c.known[c.selected.Name] = c.selected.Copy()
	}
	c.selected = nil
	c.state = imap.ConnStateAuthenticated
}

// Poll sends a NOOP command and returns the updated state of the selected
// mailbox.
func (c *Client) Poll() (*imap.MailboxState, error) {
	if _, err := c.execute(&command{name: "NOOP"}); err != nil {
		return nil, err
	}
	return c.Mailbox(), nil
}

// Unselect leaves the selected mailbox.
//
// UNSELECT is used if supported. Otherwise CLOSE is sent, which expunges
// deleted messages unless the mailbox was selected read-only: it is refused
// in a read-only session.
func (c *Client) Unselect() error {
	c.mutex.Lock()
	selected := c.selected
	hasUnselect := c.caps.Has(imap.CapUnselect)
	c.mutex.Unlock()

	if selected == nil {
		return nil
	}
	name := "UNSELECT"
	if !hasUnselect {
		if c.options.ReadOnly && !selected.ReadOnly {
			return imap.ErrReadOnly
		}
		name = "CLOSE"
	}
	if _, err := c.execute(&command{name: name}); err != nil {
		return err
	}

	c.mutex.Lock()
	c.deselect()
	c.mutex.Unlock()
	if name == "CLOSE" && !selected.ReadOnly {
		c.invalidate(imapcache.MailboxScope(selected.Name))
	}
	return nil
}

// parseMailboxAttrs collects the mailbox attributes reported in a response:
// message counts, flags and the response codes of OK lines. Attributes not
// reported are left unknown.
func parseMailboxAttrs(mailbox string, lines [][]imapwire.Token) *imap.MailboxState {
	state := imap.NewMailboxState(mailbox)
	for _, line := range lines {
		if len(line) < 2 {
			continue
		}
		untagged := line[0].IsMarker('*')

		if untagged && len(line) >= 3 {
			if n, err := strconv.ParseInt(line[1].Value, 10, 64); err == nil {
				switch {
				case line[2].Is("EXISTS"):
					state.NumMessages = n
				case line[2].Is("RECENT"):
					state.NumRecent = n
				}
				continue
			}
		}
		if untagged && line[1].Is("FLAGS") {
			state.Flags = internal.FlagList(line, 1)
			continue
		}

		// Response codes, untagged or in the tagged completion
		if len(line) < 4 || !line[1].Is("OK") || !line[2].IsMarker('[') {
			continue
		}
		code := strings.ToUpper(line[3].Value)
		switch code {
		case "READ-ONLY":
			state.ReadOnly = true
		case "READ-WRITE":
			state.ReadOnly = false
		case "NOMODSEQ":
			state.NoModSeq = true
		case "PERMANENTFLAGS":
			state.PermanentFlags = internal.FlagList(line, 3)
		case "UIDVALIDITY", "UIDNEXT", "UNSEEN", "HIGHESTMODSEQ":
			if len(line) < 5 {
				continue
			}
			n, err := strconv.ParseInt(line[4].Value, 10, 64)
			if err != nil {
				continue
			}
			switch code {
			case "UIDVALIDITY":
				state.UIDValidity = n
			case "UIDNEXT":
				state.UIDNext = n
			case "UNSEEN":
				state.FirstUnseen = n
			case "HIGHESTMODSEQ":
				state.ModSeq = n
			}
		}
	}
	return state
}

// notifications are the per-message changes found in a response.
type notifications struct {
	list []*imapcache.Notification
	// unexplained counts changes that cannot be applied to cached results,
	// such as EXPUNGE which carries no UID.
	unexplained int
	// removed counts the messages removed from the mailbox.
	removed int64
	// modSeq is the highest per-message MODSEQ seen.
	modSeq int64
}

func (n *notifications) total() int {
	return len(n.list) + n.unexplained
}

// parseNotifications collects the per-message changes of a response. FETCH
// responses are ignored if the command solicited them.
func parseNotifications(lines [][]imapwire.Token, solicited bool) *notifications {
	notes := &notifications{}
	for _, line := range lines {
		if len(line) < 3 || !line[0].IsMarker('*') {
			continue
		}

		if line[1].Is("VANISHED") {
			earlier := len(line) > 4 && line[2].IsMarker('(') && line[3].Is("EARLIER")
			set, err := imapnum.ParseSet(line[len(line)-1].Value)
			nums, ok := set.Nums()
			if err != nil || !ok {
				notes.unexplained++
				continue
			}
			n := &imapcache.Notification{Kind: imapcache.NotificationVanished}
			for _, num := range nums {
				n.UIDs = append(n.UIDs, imap.UID(num))
			}
			notes.list = append(notes.list, n)
			if !earlier {
				notes.removed += int64(len(nums))
			}
			continue
		}

		if _, err := strconv.ParseUint(line[1].Value, 10, 32); err != nil {
			continue
		}
		switch {
		case line[2].Is("EXPUNGE"):
			notes.unexplained++
			notes.removed++
		case line[2].Is("FETCH"):
			if solicited {
				continue
			}
			items, _ := imapwire.Group(line, 3)
			if modSeq, ok := imapwire.Adjacent(items, -2, "MODSEQ"); ok {
				if n, err := strconv.ParseInt(modSeq.Value, 10, 64); err == nil && n > notes.modSeq {
					notes.modSeq = n
				}
			}
			uidTok, hasUID := imapwire.Adjacent(items, -1, "UID")
			uid, err := strconv.ParseUint(uidTok.Value, 10, 32)
			i := imapwire.Index(items, "FLAGS")
			if !hasUID || err != nil || i < 0 {
				notes.unexplained++
				continue
			}
			notes.list = append(notes.list, &imapcache.Notification{
				Kind:  imapcache.NotificationFlags,
				UIDs:  []imap.UID{imap.UID(uid)},
				Flags: internal.FlagList(items, i),
			})
		}
	}
	return notes
}

// changeTracking reports whether per-message changes can be repaired in the
// cache. The caller must hold the lock.
func (c *Client) changeTracking() bool {
	return c.enabled.Has(imap.CapQResync) || c.enabled.Has(imap.CapCondStore)
}

// applyUpdates merges the changes reported in a response into the selected
// mailbox, then repairs or invalidates its cached results. The caller must
// hold the lock.
func (c *Client) applyUpdates(resp *imapwire.Response, solicitedFetch bool) {
	state := c.selected
	update := parseMailboxAttrs(state.Name, resp.Lines)
	notes := parseNotifications(resp.Lines, solicitedFetch)
	if notes.modSeq > state.ModSeq && update.ModSeq == imap.Unknown {
		update.ModSeq = notes.modSeq
	}
	if notes.removed > 0 && update.NumMessages == imap.Unknown && state.NumMessages != imap.Unknown {
		update.NumMessages = state.NumMessages - notes.removed
		if update.NumMessages < 0 {
			update.NumMessages = 0
		}
	}

	prev := state.Copy()
	changed := state.Merge(update)
	if update.NoModSeq {
		state.NoModSeq = true
	}

	if notes.total() > 0 {
		c.reconcile(prev, state, notes)
	} else if len(changed) > 0 || update.NoModSeq {
		level.Debug(c.logger).Log("msg", "mailbox state changed", "mailbox", state.Name, "changed", strings.Join(changed, ","))
		c.invalidate(imapcache.MailboxScope(state.Name))
	}
}

// reconcile applies per-message changes to the cached results of a
// mailbox. If every change was applied and nothing else changed, the
// cached results are moved to the new fingerprint. Otherwise they are
// invalidated. The caller must hold the lock.
func (c *Client) reconcile(prev, state *imap.MailboxState, notes *notifications) {
	cache := c.options.Cache
	if cache == nil {
		return
	}

	explained := 0
	if c.changeTracking() {
		for _, n := range notes.list {
			if cache.Repair(state.Name, n) {
				explained++
			}
		}
	}

	repaired := explained == notes.total() && prev != nil &&
		prev.UIDValidity == state.UIDValidity &&
		prev.UIDNext == state.UIDNext &&
		state.NumMessages <= prev.NumMessages
	if repaired {
		cache.Rebind(imapcache.FingerprintOf(state))
		return
	}
	level.Debug(c.logger).Log("msg", "unexplained mailbox changes", "mailbox", state.Name, "changes", notes.total(), "explained", explained)
	cache.Invalidate(imapcache.MailboxScope(state.Name))
}
