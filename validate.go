package imap

import (
	"regexp"
	"strings"
)

var (
	lineRe    = regexp.MustCompile(`^[^\r\n]+$`)
	msgPartRe = regexp.MustCompile(`^[0-9.]+$`)
	uidRe     = regexp.MustCompile(`^[0-9]+$`)
	uidListRe = regexp.MustCompile(`^([0-9]+\s*,*\s*|([0-9]+|\*):([0-9]+|\*))+$`)
)

// SearchKeywords lists the search and sort keywords accepted by
// ValidateKeyword.
var SearchKeywords = []string{
	"ARRIVAL", "DATE", "FROM", "SUBJECT",
	"CC", "TO", "SIZE", "UNSEEN",
	"SEEN", "FLAGGED", "UNFLAGGED", "ANSWERED",
	"UNANSWERED", "DELETED", "UNDELETED", "TEXT",
	"ALL", "DRAFT", "NEW", "RECENT", "OLD", "UNDRAFT",
}

// SortKeys lists the sort keys accepted by ValidateSortKey.
var SortKeys = []string{"ARRIVAL", "DATE", "FROM", "SUBJECT", "CC", "TO", "SIZE"}

var searchCharsets = []string{"", "UTF-8", "US-ASCII"}

func validate(field, value string, ok bool) error {
	if ok {
		return nil
	}
	return &ValidationError{Field: field, Value: value}
}

// ValidateMailbox checks a mailbox name: non-empty and free of CR or LF.
func ValidateMailbox(name string) error {
	return validate("mailbox", name, lineRe.MatchString(name))
}

// ValidateSearchTerm checks a free-text search term.
func ValidateSearchTerm(s string) error {
	return validate("search term", s, lineRe.MatchString(s))
}

// ValidatePart checks a dotted MIME part number such as "1.2".
func ValidatePart(part string) error {
	return validate("message part", part, msgPartRe.MatchString(part))
}

// ValidateCharset checks a search charset.
func ValidateCharset(charset string) error {
	return validate("charset", charset, containsFold(searchCharsets, charset))
}

// ValidateUID checks a single UID string.
func ValidateUID(uid string) error {
	return validate("uid", uid, uidRe.MatchString(uid))
}

// ValidateUIDList checks a comma separated UID list which may contain
// ranges such as "4:*".
func ValidateUIDList(list string) error {
	return validate("uid list", list, uidListRe.MatchString(list))
}

// ValidateKeyword checks a search or sort keyword.
func ValidateKeyword(kw string) error {
	return validate("keyword", kw, containsFold(SearchKeywords, kw))
}

// ValidateSortKey checks a sort key.
func ValidateSortKey(key string) error {
	return validate("sort key", key, containsFold(SortKeys, key))
}

func containsFold(l []string, s string) bool {
	s = strings.ToUpper(s)
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}
