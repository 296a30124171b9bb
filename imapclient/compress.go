package imapclient

import (
	"compress/flate"
	"fmt"
	"net"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Compress sends a COMPRESS DEFLATE command and compresses the rest of the
// session.
//
// This command requires support for COMPRESS=DEFLATE.
func (c *Client) Compress() error {
	if !c.Caps().Has(imap.CapCompressDeflate) {
		return fmt.Errorf("%w: %v", imap.ErrNotSupported, imap.CapCompressDeflate)
	}
	_, err := c.execute(&command{
		name: "COMPRESS",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom("DEFLATE")
		},
	})
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.upgradeConn(func(conn net.Conn) (net.Conn, error) {
		return internal.NewCompressConn(conn, flate.DefaultCompression)
	})
}
