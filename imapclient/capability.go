package imapclient

import (
	"github.com/jasonmunro/hm-imap"
)

// Capability sends a CAPABILITY command.
//
// Capabilities listed in Options.BlacklistedExtensions are left out.
func (c *Client) Capability() (imap.CapSet, error) {
	if _, err := c.execute(&command{name: "CAPABILITY"}); err != nil {
		return nil, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.caps.Copy(), nil
}

// Caps returns the capabilities advertised by the server.
//
// When the server has sent no capability list since the last login, this
// method sends a CAPABILITY command.
func (c *Client) Caps() imap.CapSet {
	c.mutex.Lock()
	caps := c.caps
	c.mutex.Unlock()

	if caps != nil {
		return caps.Copy()
	}
	caps, _ = c.Capability()
	return caps
}

// Enabled returns the extensions enabled with Enable.
func (c *Client) Enabled() imap.CapSet {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.enabled.Copy()
}
