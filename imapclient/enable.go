package imapclient

import (
	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Enable enables change tracking: QRESYNC if the server supports it,
// CONDSTORE otherwise.
//
// Nothing is sent if the server lacks ENABLE or both extensions, or if they
// are blacklisted. The returned set holds the extensions enabled so far.
func (c *Client) Enable() (imap.CapSet, error) {
	caps := c.Caps()
	var want imap.Cap
	switch {
	case !caps.Has(imap.CapEnable):
		return nil, nil
	case caps.Has(imap.CapQResync):
		want = imap.CapQResync
	case caps.Has(imap.CapCondStore):
		want = imap.CapCondStore
	default:
		return nil, nil
	}

	resp, err := c.execute(&command{
		name: "ENABLE",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom(string(want))
		},
	})
	if err != nil {
		return nil, err
	}

	var words []string
	for _, line := range resp.Untagged() {
		if len(line) < 2 || !line[1].Is("ENABLED") {
			continue
		}
		for _, tok := range line[2:] {
			words = append(words, tok.Value)
		}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.enabled == nil {
		c.enabled = make(imap.CapSet)
	}
	for ext := range imap.ParseCapSet(words, nil) {
		c.enabled[ext] = struct{}{}
	}
	return c.enabled.Copy(), nil
}
