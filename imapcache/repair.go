package imapcache

import (
	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
)

// NotificationKind is the shape of an unsolicited per-message change.
type NotificationKind int

const (
	// NotificationFlags is a FETCH carrying the new flags of a message.
	NotificationFlags NotificationKind = 1 + iota
	// NotificationVanished is a VANISHED response for expunged messages.
	NotificationVanished
)

// Notification is an unsolicited change reported by a CONDSTORE or QRESYNC
// server inside the response of another command.
type Notification struct {
	Kind  NotificationKind
	UIDs  []imap.UID
	Flags []imap.Flag
}

// UIDRemover is implemented by cached results listing UIDs, such as
// *imap.UIDList and imap.MessageList.
type UIDRemover interface {
	RemoveUID(uid imap.UID) bool
}

// FlagUpdater is implemented by cached results holding message flags, such
// as imap.MessageList.
type FlagUpdater interface {
	UpdateFlags(uid imap.UID, flags []imap.Flag) bool
}

// Repair patches the cached entries of a mailbox in place. It reports
// whether the notification was explained, that is whether at least one
// cached entry was updated. An unexplained notification leaves the cache
// untouched, the caller is expected to invalidate the mailbox.
func (c *Cache) Repair(mailbox string, n *Notification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[mailbox]
	if !ok {
		return false
	}
	bucket := c.buckets[key]

	explained := false
	for sig, v := range bucket {
		switch n.Kind {
		case NotificationVanished:
			r, ok := v.(UIDRemover)
			if !ok {
				continue
			}
			for _, uid := range n.UIDs {
				if r.RemoveUID(uid) {
					explained = true
					level.Debug(c.logger).Log("msg", "removed vanished message from cache", "uid", uid, "command", sig)
				}
			}
		case NotificationFlags:
			u, ok := v.(FlagUpdater)
			if !ok {
				continue
			}
			for _, uid := range n.UIDs {
				if u.UpdateFlags(uid, n.Flags) {
					explained = true
					level.Debug(c.logger).Log("msg", "updated cached flags", "uid", uid, "command", sig)
				}
			}
		}
	}
	if explained {
		c.metrics.Repairs.Add(1)
	}
	return explained
}
