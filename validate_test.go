package imap_test

import (
	"errors"
	"testing"

	"github.com/jasonmunro/hm-imap"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) error
		valid []string
		bad   []string
	}{
		{"mailbox", imap.ValidateMailbox, []string{"INBOX", "Sent Items", "a/b"}, []string{"", "a\r\nb", "a\nb"}},
		{"part", imap.ValidatePart, []string{"1", "1.2.3"}, []string{"", "1.TEXT", "1 2"}},
		{"charset", imap.ValidateCharset, []string{"", "utf-8", "US-ASCII"}, []string{"ISO-8859-1"}},
		{"uid", imap.ValidateUID, []string{"42"}, []string{"", "-1", "4:*"}},
		{"uid list", imap.ValidateUIDList, []string{"1,2,3", "4:*", "1,3:5"}, []string{"", "a", "1;2"}},
		{"keyword", imap.ValidateKeyword, []string{"ALL", "unseen", "Flagged"}, []string{"", "ALL)", "KEYWORD"}},
		{"sort key", imap.ValidateSortKey, []string{"arrival", "SIZE"}, []string{"UNSEEN", "COLOR"}},
	}
	for _, tc := range tests {
		for _, s := range tc.valid {
			if err := tc.fn(s); err != nil {
				t.Errorf("validate %v %q = %v, want nil", tc.name, s, err)
			}
		}
		for _, s := range tc.bad {
			var verr *imap.ValidationError
			if err := tc.fn(s); !errors.As(err, &verr) {
				t.Errorf("validate %v %q = %v, want a *ValidationError", tc.name, s, err)
			}
		}
	}
}
