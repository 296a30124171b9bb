package imapclient

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/jasonmunro/hm-imap"
)

// StartTLS sends a STARTTLS command and upgrades the connection.
//
// A nil config uses Options.TLSConfig. If no server name is configured, the
// host name given to Dial is used.
func (c *Client) StartTLS(config *tls.Config) error {
	if !c.Caps().Has(imap.CapStartTLS) {
		return fmt.Errorf("%w: %v", imap.ErrNotSupported, imap.CapStartTLS)
	}
	if config == nil {
		config = c.options.TLSConfig
	}
	if config == nil {
		config = &tls.Config{}
	} else {
		config = config.Clone()
	}
	if config.ServerName == "" {
		config.ServerName = c.serverName
	}

	if _, err := c.execute(&command{name: "STARTTLS"}); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Once a client issues a STARTTLS command, it MUST NOT issue further
	// commands until a server response is seen and the TLS negotiation is
	// complete
	err := c.upgradeConn(func(conn net.Conn) (net.Conn, error) {
		tlsConn := tls.Client(conn, config)
		if err := tlsConn.Handshake(); err != nil {
			return nil, err
		}
		return tlsConn, nil
	})
	if err != nil {
		return fmt.Errorf("imapclient: TLS handshake: %w", err)
	}
	// Capabilities must be discarded after the upgrade
	c.caps = nil
	return nil
}
