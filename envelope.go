package imap

import (
	"strings"
)

// Address is an address from a message envelope.
type Address struct {
	Name    string
	Mailbox string
	Host    string
}

// Addr returns the "mailbox@host" form of the address, or an empty string
// if either part is missing.
func (addr *Address) Addr() string {
	if addr.Mailbox == "" || addr.Host == "" {
		return ""
	}
	return addr.Mailbox + "@" + addr.Host
}

// String renders the address as `"name" mailbox@host`, or as a bare
// mailbox@host when the name is absent or equal to the address.
func (addr *Address) String() string {
	name := strings.NewReplacer(`"`, "", "'", "").Replace(addr.Name)
	email := addr.Addr()
	switch {
	case name == "":
		return email
	case name == email:
		return email
	case email == "":
		return `"` + name + `"`
	default:
		return `"` + name + `" ` + email
	}
}

// FormatAddressList renders an address list as a single string, joined
// with ", ". Empty renderings are skipped.
func FormatAddressList(addrs []Address) string {
	var l []string
	for i := range addrs {
		if s := addrs[i].String(); s != "" {
			l = append(l, s)
		}
	}
	return strings.Join(l, ", ")
}

// Envelope is the envelope of a message, with address lists rendered as
// strings.
//
// See RFC 3501 section 7.4.2.
type Envelope struct {
	Date      string
	Subject   string
	From      string
	Sender    string
	ReplyTo   string
	To        string
	Cc        string
	Bcc       string
	InReplyTo string
	MessageID string
}
