package imap

import (
	"sort"
	"strings"
	"time"
)

// MessageSummary is the list view of a message: flags, sizes and the
// headers needed to display it in a mailbox listing.
type MessageSummary struct {
	UID          UID
	Flags        []Flag
	InternalDate string
	Size         int64

	Date        string
	From        string
	To          string
	Subject     string
	ContentType string
	Charset     string
	XPriority   int

	GoogleMsgID    string // requires X-GM-EXT-1
	GoogleThreadID string // requires X-GM-EXT-1

	// FetchedAt records when the summary was read from the server.
	FetchedAt time.Time
}

// HasFlag checks whether the message has a flag. Comparison is
// case-insensitive.
func (msg *MessageSummary) HasFlag(flag Flag) bool {
	for _, f := range msg.Flags {
		if strings.EqualFold(string(f), string(flag)) {
			return true
		}
	}
	return false
}

// MessageList maps UIDs to message summaries.
type MessageList map[UID]*MessageSummary

// Copy returns a deep copy of the list.
func (l MessageList) Copy() MessageList {
	if l == nil {
		return nil
	}
	out := make(MessageList, len(l))
	for uid, msg := range l {
		cp := *msg
		cp.Flags = append([]Flag(nil), msg.Flags...)
		out[uid] = &cp
	}
	return out
}

// RemoveUID drops a message from the list.
func (l MessageList) RemoveUID(uid UID) bool {
	if _, ok := l[uid]; !ok {
		return false
	}
	delete(l, uid)
	return true
}

// UpdateFlags replaces the flags of a message in the list.
func (l MessageList) UpdateFlags(uid UID, flags []Flag) bool {
	msg, ok := l[uid]
	if !ok {
		return false
	}
	msg.Flags = append([]Flag(nil), flags...)
	return true
}

// Sorted returns the summaries ordered by the given UIDs. UIDs missing from
// the list are skipped.
func (l MessageList) Sorted(order []UID) []*MessageSummary {
	out := make([]*MessageSummary, 0, len(order))
	for _, uid := range order {
		if msg, ok := l[uid]; ok {
			out = append(out, msg)
		}
	}
	return out
}

// UIDs returns the UIDs of the list in ascending order.
func (l MessageList) UIDs() []UID {
	uids := make([]UID, 0, len(l))
	for uid := range l {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

// UIDList is an ordered list of UIDs, as returned by SEARCH and SORT.
type UIDList []UID

// RemoveUID drops every occurrence of uid from the list.
func (l *UIDList) RemoveUID(uid UID) bool {
	out := (*l)[:0]
	removed := false
	for _, v := range *l {
		if v == uid {
			removed = true
			continue
		}
		out = append(out, v)
	}
	*l = out
	return removed
}

// HeaderField is a single message header.
type HeaderField struct {
	Key   string
	Value string
}

// Header is an ordered list of message headers.
type Header []HeaderField

// Get returns the first value of the header with the given key. Keys are
// compared case-insensitively.
func (h Header) Get(key string) string {
	for _, f := range h {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Values returns all the values of the header with the given key.
func (h Header) Values(key string) []string {
	var l []string
	for _, f := range h {
		if strings.EqualFold(f.Key, key) {
			l = append(l, f.Value)
		}
	}
	return l
}
