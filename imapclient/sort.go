package imapclient

import (
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// SortOptions contains options for Sort and SortByFetch.
type SortOptions struct {
	// Key is the sort key, one of imap.SortKeys. Defaults to ARRIVAL.
	Key string
	// Reverse sorts in descending order.
	Reverse bool
	// Filter is a search keyword restricting the messages. Defaults to ALL.
	Filter string
	// Terms are further search keys.
	Terms []SearchTerm
}

func (options *SortOptions) normalize() (*SortOptions, error) {
	out := SortOptions{Key: "ARRIVAL", Filter: "ALL"}
	if options != nil {
		out = *options
		if out.Key == "" {
			out.Key = "ARRIVAL"
		}
		if out.Filter == "" {
			out.Filter = "ALL"
		}
	}
	out.Key = strings.ToUpper(out.Key)
	out.Filter = strings.ToUpper(out.Filter)
	if err := imap.ValidateSortKey(out.Key); err != nil {
		return nil, err
	}
	if err := imap.ValidateKeyword(out.Filter); err != nil {
		return nil, err
	}
	if err := validateTerms(out.Terms); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sort returns the UIDs of the selected mailbox in sort order.
//
// UID SORT is used if supported, otherwise the sort keys are fetched and
// sorted locally by SortByFetch. With Options.SortSpeedup, the SORT
// response is read with a plain split on spaces.
func (c *Client) Sort(options *SortOptions) (imap.UIDList, error) {
	options, err := options.normalize()
	if err != nil {
		return nil, err
	}
	if !c.Caps().Has(imap.CapSort) {
		return c.sortByFetch(options)
	}
	if err := c.requireSelected(); err != nil {
		return nil, err
	}

	charset := strings.ToUpper(c.options.SearchCharset)
	if charset == "" {
		charset = "US-ASCII"
	}
	mode := imapwire.ReadModeTokens
	if c.options.SortSpeedup && len(options.Terms) == 0 {
		mode = imapwire.ReadModeNumbers
	}
	cmd := &command{
		name: "UID SORT",
		mode: mode,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom("(" + options.Key + ")").SP().Atom(charset).SP().Atom(options.Filter)
			writeTerms(enc, options.Terms)
		},
	}

	sig := c.signature(cmd, "reverse="+strconv.FormatBool(options.Reverse))
	return c.cachedUIDs(sig, func() (imap.UIDList, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}
		var l imap.UIDList
		for _, line := range resp.Untagged() {
			if len(line) < 2 || !line[1].Is("SORT") {
				continue
			}
			l = append(l, parseUIDs(line[2:])...)
		}
		if options.Reverse {
			reverseUIDs(l)
		}
		return l, nil
	})
}

func (c *Client) cachedUIDs(sig string, fetch func() (imap.UIDList, error)) (imap.UIDList, error) {
	v, err := c.cached(sig, false, func() (interface{}, error) {
		l, err := fetch()
		if err != nil {
			return nil, err
		}
		return &l, nil
	})
	l, _ := v.(*imap.UIDList)
	if l == nil {
		return nil, err
	}
	return append(imap.UIDList(nil), *l...), err
}

func reverseUIDs(l imap.UIDList) {
	for i, j := 0, len(l)-1; i < j; i, j = i+1, j-1 {
		l[i], l[j] = l[j], l[i]
	}
}

// sortFetchItems maps sort keys to the fetch item holding the sort value.
var sortFetchItems = map[string]string{
	"ARRIVAL": "INTERNALDATE",
	"SIZE":    "RFC822.SIZE",
	"DATE":    "BODY.PEEK[HEADER.FIELDS (DATE)]",
	"FROM":    "BODY.PEEK[HEADER.FIELDS (FROM)]",
	"TO":      "BODY.PEEK[HEADER.FIELDS (TO)]",
	"CC":      "BODY.PEEK[HEADER.FIELDS (CC)]",
	"SUBJECT": "BODY.PEEK[HEADER.FIELDS (SUBJECT)]",
}

// flagFilters maps search keywords to the flag they test, and whether the
// flag must be set.
var flagFilters = map[string]struct {
	flag imap.Flag
	set  bool
}{
	"SEEN":       {imap.FlagSeen, true},
	"UNSEEN":     {imap.FlagSeen, false},
	"ANSWERED":   {imap.FlagAnswered, true},
	"UNANSWERED": {imap.FlagAnswered, false},
	"DELETED":    {imap.FlagDeleted, true},
	"UNDELETED":  {imap.FlagDeleted, false},
	"DRAFT":      {imap.FlagDraft, true},
	"UNDRAFT":    {imap.FlagDraft, false},
	"FLAGGED":    {imap.FlagFlagged, true},
	"UNFLAGGED":  {imap.FlagFlagged, false},
}

func flagMatch(filter string, flags []imap.Flag) bool {
	f, ok := flagFilters[filter]
	if !ok {
		return true
	}
	msg := imap.MessageSummary{Flags: flags}
	return msg.HasFlag(f.flag) == f.set
}

// SortByFetch returns the UIDs of the selected mailbox in sort order,
// without the SORT extension: the sort values are fetched and ordered with
// a case-insensitive collation which compares digit sequences numerically.
//
// Flag filters are applied locally. Other filters and terms are resolved
// with a SEARCH first.
func (c *Client) SortByFetch(options *SortOptions) (imap.UIDList, error) {
	options, err := options.normalize()
	if err != nil {
		return nil, err
	}
	return c.sortByFetch(options)
}

func (c *Client) sortByFetch(options *SortOptions) (imap.UIDList, error) {
	if err := c.requireSelected(); err != nil {
		return nil, err
	}

	_, flagFilter := flagFilters[options.Filter]
	set := "1:*"
	localFilter := options.Filter
	if len(options.Terms) > 0 || (options.Filter != "ALL" && !flagFilter) {
		uids, err := c.Search(options.Filter, nil, options.Terms)
		if err != nil {
			return nil, err
		}
		if len(uids) == 0 {
			return imap.UIDList{}, nil
		}
		set = uidSet(uids).String()
		localFilter = "ALL"
	} else if state := c.Mailbox(); state != nil && state.NumMessages == 0 {
		return imap.UIDList{}, nil
	}

	item := sortFetchItems[options.Key]
	cmd := &command{
		name:  "UID FETCH",
		fetch: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom(set).SP().Atom("(FLAGS " + item + ")")
		},
	}
	sig := c.signature(cmd, "filter="+localFilter, "reverse="+strconv.FormatBool(options.Reverse))
	return c.cachedUIDs(sig, func() (imap.UIDList, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}

		type entry struct {
			uid imap.UID
			key string
		}
		var entries []entry
		for _, line := range resp.Untagged() {
			items, ok := parseFetchItems(line)
			if !ok {
				continue
			}
			uid, err := strconv.ParseUint(nstring(findFetchItem(items, "UID")), 10, 32)
			if err != nil || uid == 0 {
				continue
			}
			if !flagMatch(localFilter, internal.Flags(findFetchItem(items, "FLAGS"))) {
				continue
			}
			entries = append(entries, entry{imap.UID(uid), c.sortValue(options.Key, items)})
		}

		col := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
		sort.SliceStable(entries, func(i, j int) bool {
			return col.CompareString(entries[i].key, entries[j].key) < 0
		})
		l := make(imap.UIDList, len(entries))
		for i, e := range entries {
			l[i] = e.uid
		}
		if options.Reverse {
			reverseUIDs(l)
		}
		return l, nil
	})
}

// internalDateLayout is the layout of INTERNALDATE values.
const internalDateLayout = "_2-Jan-2006 15:04:05 -0700"

// sortValue returns the sort value of a message. Dates are converted to
// Unix timestamps, which the collation compares numerically. Missing values
// are empty and sort first.
func (c *Client) sortValue(key string, items []fetchItem) string {
	switch key {
	case "ARRIVAL":
		t, err := time.Parse(internalDateLayout, nstring(findFetchItem(items, "INTERNALDATE")))
		if err != nil {
			return ""
		}
		return strconv.FormatInt(t.Unix(), 10)
	case "SIZE":
		return nstring(findFetchItem(items, "RFC822.SIZE"))
	}

	h := parseHeader(nstring(findFetchItem(items, "BODY")))
	if key == "DATE" {
		t, err := mail.ParseDate(h.Get("Date"))
		if err != nil {
			return ""
		}
		return strconv.FormatInt(t.Unix(), 10)
	}
	name := strings.ToLower(key)
	name = strings.ToUpper(name[:1]) + name[1:]
	return strings.TrimSpace(c.options.decodeText(h.Get(name)))
}

// PageOptions contains options for MailboxPage.
type PageOptions struct {
	SortOptions
	// Offset is the index of the first message of the page in sort order.
	Offset int
	// Limit is the page size. Zero means no limit.
	Limit int
}

// MailboxPage selects a mailbox if needed, sorts its messages and returns
// the total number of matching messages along with the summaries of one
// page, in sort order.
func (c *Client) MailboxPage(mailbox string, options *PageOptions) (int, []*imap.MessageSummary, error) {
	if err := imap.ValidateMailbox(mailbox); err != nil {
		return 0, nil, err
	}
	if options == nil {
		options = &PageOptions{}
	}
	mailbox = canonicalMailbox(mailbox)
	if state := c.Mailbox(); state == nil || state.Name != mailbox {
		if _, err := c.Select(mailbox); err != nil {
			return 0, nil, err
		}
	}

	uids, err := c.Sort(&options.SortOptions)
	if err != nil {
		return 0, nil, err
	}
	total := len(uids)

	page := uids
	if options.Offset > 0 || options.Limit > 0 {
		start := options.Offset
		if start > len(uids) {
			start = len(uids)
		}
		end := len(uids)
		if options.Limit > 0 && start+options.Limit < end {
			end = start + options.Limit
		}
		page = uids[start:end]
	}
	if len(page) == 0 {
		return total, nil, nil
	}

	list, err := c.MessageList(page)
	if err != nil {
		return total, nil, err
	}
	return total, list.Sorted(page), nil
}
