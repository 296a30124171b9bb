package imapclient

import (
	"errors"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Login sends a LOGIN command.
//
// The credentials are never logged nor recorded in the history.
func (c *Client) Login(username, password string) error {
	if c.Caps().Has(imap.CapLoginDisabled) {
		return &imap.Error{Type: imap.StatusResponseTypeNo, Text: "LOGIN is disabled by the server", Command: "LOGIN"}
	}
	_, err := c.execute(&command{
		name:      "LOGIN",
		sensitive: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().String(username).SP().String(password)
		},
	})
	if err != nil {
		return err
	}
	c.authenticated()
	return nil
}

// authenticated moves to the authenticated state. Capabilities may differ
// after authentication, they are fetched again unless the completion
// carried them.
func (c *Client) authenticated() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state = imap.ConnStateAuthenticated
	if c.capsTag != c.cmdTag {
		c.caps = nil
	}
}

// Logout sends a LOGOUT command.
//
// The connection is left open, the caller should call Close.
func (c *Client) Logout() error {
	_, err := c.execute(&command{name: "LOGOUT"})
	c.mutex.Lock()
	c.state = imap.ConnStateLogout
	c.selected = nil
	c.mutex.Unlock()
	if errors.Is(err, imap.ErrBye) {
		return nil
	}
	return err
}
