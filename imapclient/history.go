package imapclient

import (
	"time"

	"github.com/jasonmunro/hm-imap"
)

// HistoryEntry records one command.
type HistoryEntry struct {
	// Command is the command text without its tag. Credentials are never
	// recorded.
	Command string
	Status  imap.StatusResponseType
	// Size is the number of bytes read for the response.
	Size    int64
	Elapsed time.Duration
	// Cached is set when the result was served from the cache.
	Cached bool
}

// history is a fixed-size ring of command records.
type history struct {
	entries []HistoryEntry
	next    int
	full    bool
}

func newHistory(size int) *history {
	return &history{entries: make([]HistoryEntry, size)}
}

func (h *history) add(entry HistoryEntry) {
	h.entries[h.next] = entry
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

func (h *history) list() []HistoryEntry {
	if !h.full {
		return append([]HistoryEntry(nil), h.entries[:h.next]...)
	}
	l := make([]HistoryEntry, 0, len(h.entries))
	l = append(l, h.entries[h.next:]...)
	return append(l, h.entries[:h.next]...)
}
