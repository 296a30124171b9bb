package imapclient

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// ID sends an ID command and returns the server identification.
//
// If fields is nil, Options.ID is sent. This command requires support for
// the ID extension.
func (c *Client) ID(fields map[string]string) (map[string]string, error) {
	if !c.Caps().Has(imap.CapID) {
		return nil, fmt.Errorf("%w: %v", imap.ErrNotSupported, imap.CapID)
	}
	if fields == nil {
		fields = c.options.ID
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resp, err := c.execute(&command{
		name: "ID",
		args: func(enc *imapwire.Encoder) {
			enc.SP()
			if len(keys) == 0 {
				enc.NIL()
				return
			}
			enc.List(len(keys), func(i int) {
				enc.Quoted(keys[i]).SP().Quoted(fields[keys[i]])
			})
		},
	})
	if err != nil {
		return nil, err
	}

	serverID := make(map[string]string)
	for _, line := range resp.Untagged() {
		if len(line) < 3 || !line[1].Is("ID") {
			continue
		}
		list, _ := imapwire.Group(line, 2)
		groups := imapwire.SplitTopLevel(list)
		for i := 0; i+1 < len(groups); i += 2 {
			if len(groups[i]) != 1 || len(groups[i+1]) != 1 {
				continue
			}
			serverID[strings.ToLower(groups[i][0].Value)] = groups[i+1][0].NString()
		}
	}

	c.mutex.Lock()
	c.serverID = serverID
	c.mutex.Unlock()
	return serverID, nil
}

// ServerID returns the identification returned by the last ID command.
func (c *Client) ServerID() map[string]string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.serverID
}
