package imapclient

import (
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// Authenticate sends an AUTHENTICATE command.
//
// The server must advertise the mechanism of the SASL client. The initial
// response is sent with the command if the server supports SASL-IR.
func (c *Client) Authenticate(saslClient sasl.Client) error {
	mech, initialResp, err := saslClient.Start()
	if err != nil {
		return err
	}

	caps := c.Caps()
	if !caps.Has(imap.AuthCap(mech)) {
		return fmt.Errorf("%w: %v", imap.ErrNotSupported, imap.AuthCap(mech))
	}
	hasSASLIR := initialResp != nil && caps.Has(imap.CapSASLIR)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stream != nil || c.appending != nil {
		return errBusy
	}
	c.cmdTag++
	tag := "A" + strconv.FormatUint(c.cmdTag, 10)
	cmdText := "AUTHENTICATE " + mech
	start := time.Now()

	enc := imapwire.NewEncoder(c.bw)
	enc.Atom(tag).SP().Atom("AUTHENTICATE").SP().Atom(mech)
	if hasSASLIR {
		enc.SP().Atom(internal.EncodeSASL(initialResp))
		initialResp = nil
	}
	if err := enc.CRLF(); err != nil {
		return fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
	}
	if err := c.flush(); err != nil {
		return fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
	}

	var saslErr error
	for {
		resp, err := c.asm.ReadContinuation(tag, c.options.MaxRead)
		if err != nil {
			level.Warn(c.logger).Log("msg", "authentication aborted", "mechanism", mech, "err", err)
			return err
		}
		for _, line := range resp.Lines {
			c.updateCaps(line)
		}

		if resp.Completion() != nil {
			c.history.add(HistoryEntry{Command: cmdText, Status: resp.Status(), Elapsed: time.Since(start)})
			if saslErr != nil {
				return saslErr
			}
			if err := resp.Err(cmdText); err != nil {
				return err
			}
			c.state = imap.ConnStateAuthenticated
			if c.capsTag != c.cmdTag {
				c.caps = nil
			}
			level.Debug(c.logger).Log("msg", "authenticated", "mechanism", mech, "elapsed", time.Since(start))
			return nil
		}

		var next []byte
		switch {
		case saslErr != nil:
			// Already cancelled
		case resp.Continuation == "" && initialResp != nil:
			next, initialResp = initialResp, nil
		default:
			var challenge []byte
			challenge, saslErr = internal.DecodeSASL(resp.Continuation)
			if saslErr == nil {
				next, saslErr = saslClient.Next(challenge)
			}
		}

		line := internal.EncodeSASL(next)
		if saslErr != nil {
			line = "*"
		}
		if _, err := c.bw.WriteString(line + "\r\n"); err != nil {
			return fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
		}
		if err := c.flush(); err != nil {
			return fmt.Errorf("%w: %v", imap.ErrIncomplete, err)
		}
	}
}
