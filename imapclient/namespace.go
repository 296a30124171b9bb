package imapclient

import (
	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

var namespaceClasses = []imap.NamespaceClass{
	imap.NamespacePersonal,
	imap.NamespaceOtherUsers,
	imap.NamespaceShared,
}

// Namespaces returns the namespaces of the account.
//
// A NAMESPACE command is sent if the server supports it. Otherwise a single
// personal namespace is returned, built from Options.DefaultPrefix and
// Options.DefaultDelimiter.
func (c *Client) Namespaces() (imap.NamespaceData, error) {
	if !c.Caps().Has(imap.CapNamespace) {
		return imap.NamespaceData{{
			Class:  imap.NamespacePersonal,
			Prefix: c.options.DefaultPrefix,
			Delim:  c.options.DefaultDelimiter,
		}}, nil
	}

	cmd := &command{name: "NAMESPACE"}
	v, err := c.cached(c.signature(cmd), true, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}
		for _, line := range resp.Untagged() {
			if len(line) > 2 && line[1].Is("NAMESPACE") {
				return c.parseNamespace(line), nil
			}
		}
		return nil, &imap.Error{Type: imap.StatusResponseTypeBad, Text: "missing NAMESPACE response", Command: "NAMESPACE"}
	})
	data, _ := v.(imap.NamespaceData)
	return data, err
}

// parseNamespace reads the three namespace groups of a NAMESPACE response.
// Each group is NIL or a list of (prefix delimiter) descriptors, possibly
// followed by extensions which are ignored.
func (c *Client) parseNamespace(line []imapwire.Token) imap.NamespaceData {
	data := imap.NamespaceData{}
	i := 2
	for _, class := range namespaceClasses {
		var group []imapwire.Token
		group, i = imapwire.Group(line, i)
		if len(group) < 2 {
			continue
		}
		for _, descr := range imapwire.SplitTopLevel(group) {
			fields := imapwire.SplitTopLevel(descr)
			if len(fields) < 2 || len(fields[0]) != 1 || len(fields[1]) != 1 {
				continue
			}
			data = append(data, imap.Namespace{
				Class:  class,
				Prefix: c.decodeMailbox(fields[0][0].Value),
				Delim:  fields[1][0].NString(),
			})
		}
	}
	return data
}
