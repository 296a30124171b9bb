// Package imapclient implements a synchronous IMAP client engine.
//
// A Client owns one connection and runs one command at a time: a command is
// written, then its whole response is read up to the tagged completion
// before the method returns. Parsed results of read-only commands are kept
// in an optional per-connection imapcache.Cache, keyed by a fingerprint of
// the selected mailbox.
//
// The client is safe for concurrent use, commands are serialized.
package imapclient

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/charset"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

const defaultMaxHistory = 100

var (
	errClosed = errors.New("imapclient: connection closed")
	errBusy   = errors.New("imapclient: a message stream or append is in progress")
)

// Options contains options for Client.
type Options struct {
	// Logger receives structured debug and warning logs. Defaults to a no-op
	// logger.
	Logger log.Logger
	// Raw ingress and egress data will be written to this writer, if any
	DebugWriter io.Writer
	// TLS configuration for DialTLS and StartTLS
	TLSConfig *tls.Config
	// Decoder for RFC 2047 words in message headers. Defaults to a decoder
	// supporting the charsets of github.com/emersion/go-message/charset.
	WordDecoder *mime.WordDecoder

	// MaxRead is the per-command ceiling on response bytes, literals
	// included. Zero means no ceiling.
	MaxRead int64
	// SortSpeedup reads UID SORT results with a plain split on spaces
	// instead of the full tokenizer.
	//
	// This is only safe against servers that never put a quoted string or a
	// literal in a SORT response: such a response would desynchronize the
	// connection.
	SortSpeedup bool
	// Cache holds parsed results of read-only commands. Nil disables
	// caching.
	Cache *imapcache.Cache
	// ReadOnly refuses every command that changes the account.
	ReadOnly bool
	// FolderMax caps the number of mailboxes returned by ListMailboxes. Zero
	// means no cap.
	FolderMax int
	// MaxHistory is the number of command records kept by History.
	MaxHistory int
	// BlacklistedExtensions are removed from the server capabilities.
	BlacklistedExtensions []imap.Cap
	// RawMailboxNames disables the modified UTF-7 encoding of mailbox
	// names.
	RawMailboxNames bool
	// SearchCharset is sent with SEARCH. It must be empty, UTF-8 or
	// US-ASCII.
	SearchCharset string

	// ID is the client identification sent by Client.ID, for instance
	// "name", "version", "vendor" and "support-url".
	ID map[string]string
	// DefaultPrefix and DefaultDelimiter describe the personal namespace
	// used when the server lacks NAMESPACE.
	DefaultPrefix    string
	DefaultDelimiter string
}

func (options *Options) wrapReadWriter(rw io.ReadWriter) io.ReadWriter {
	if options.DebugWriter == nil {
		return rw
	}
	return struct {
		io.Reader
		io.Writer
	}{
		Reader: io.TeeReader(rw, options.DebugWriter),
		Writer: io.MultiWriter(rw, options.DebugWriter),
	}
}

func (options *Options) decodeText(s string) string {
	wordDecoder := options.WordDecoder
	if wordDecoder == nil {
		wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}
	}
	out, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// Client is an IMAP client.
//
// IMAP commands are exposed as methods. These methods block until the whole
// response of the command was read.
type Client struct {
	conn       net.Conn
	options    Options
	logger     log.Logger
	serverName string
	br         *bufio.Reader
	bw         *bufio.Writer
	asm        *imapwire.Assembler

	mutex    sync.Mutex
	cmdTag   uint64
	state    imap.ConnState
	caps     imap.CapSet
	capsTag  uint64 // tag number of the last capability update
	enabled  imap.CapSet
	selected *imap.MailboxState
	// known holds the last state of every mailbox selected on this
	// connection, used to resume with QRESYNC.
	known    map[string]*imap.MailboxState
	serverID map[string]string
	history  *history

	// stream and appending are set while a command is in progress across
	// method calls.
	stream    *MessageStream
	appending *AppendCommand
}

// New creates a new IMAP client and reads the server greeting.
//
// A nil options pointer is equivalent to a zero options value.
func New(conn net.Conn, options *Options) (*Client, error) {
	if options == nil {
		options = &Options{}
	}

	rw := options.wrapReadWriter(conn)
	br := bufio.NewReader(rw)
	bw := bufio.NewWriter(rw)

	maxHistory := options.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}

	client := &Client{
		conn:    conn,
		options: *options,
		logger:  options.Logger,
		br:      br,
		bw:      bw,
		asm:     imapwire.NewAssembler(imapwire.NewTokenizer(br)),
		state:   imap.ConnStateNone,
		known:   make(map[string]*imap.MailboxState),
		history: newHistory(maxHistory),
	}
	if client.logger == nil {
		client.logger = log.NewNopLogger()
	}
	if err := client.readGreeting(); err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

// Dial connects to an IMAP server without encryption.
func Dial(address string, options *Options) (*Client, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	c, err := New(conn, options)
	if err != nil {
		return nil, err
	}
	c.serverName = hostname(address)
	return c, nil
}

// DialTLS connects to an IMAP server with implicit TLS.
func DialTLS(address string, options *Options) (*Client, error) {
	var config *tls.Config
	if options != nil {
		config = options.TLSConfig
	}
	conn, err := tls.Dial("tcp", address, config)
	if err != nil {
		return nil, err
	}
	c, err := New(conn, options)
	if err != nil {
		return nil, err
	}
	c.serverName = hostname(address)
	return c, nil
}

func hostname(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}

func (c *Client) readGreeting() error {
	toks, err := c.asm.ReadLine(c.options.MaxRead)
	if err != nil {
		return fmt.Errorf("imapclient: reading greeting: %w", err)
	}
	if len(toks) < 2 || !toks[0].IsMarker('*') {
		return &imap.Error{Type: imap.StatusResponseTypeBad, Text: "malformed greeting: " + imapwire.Join(toks)}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.updateCaps(toks)
	switch imap.StatusResponseType(strings.ToUpper(toks[1].Value)) {
	case imap.StatusResponseTypeOK:
		c.state = imap.ConnStateNotAuthenticated
	case imap.StatusResponseTypePreAuth:
		c.state = imap.ConnStateAuthenticated
	case imap.StatusResponseTypeBye:
		c.state = imap.ConnStateLogout
		return imap.ErrBye
	default:
		return &imap.Error{Type: imap.StatusResponseTypeBad, Text: "malformed greeting: " + imapwire.Join(toks)}
	}
	level.Debug(c.logger).Log("msg", "connected", "state", c.state)
	return nil
}

// Close immediately closes the connection.
func (c *Client) Close() error {
	c.mutex.Lock()
	c.state = imap.ConnStateLogout
	c.stream = nil
	c.appending = nil
	c.mutex.Unlock()
	return c.conn.Close()
}

// State returns the current connection state of the client.
func (c *Client) State() imap.ConnState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Mailbox returns a snapshot of the selected mailbox, or nil if no mailbox
// is selected.
func (c *Client) Mailbox() *imap.MailboxState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.selected == nil {
		return nil
	}
	return c.selected.Copy()
}

// History returns the most recent command records, oldest first.
func (c *Client) History() []HistoryEntry {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.history.list()
}

// command is a command to execute.
type command struct {
	name string
	args func(enc *imapwire.Encoder)
	mode imapwire.ReadMode
	// fetch is set when the command solicits FETCH responses, which must not
	// be mistaken for change notifications.
	fetch bool
	// sensitive commands are recorded by name only.
	sensitive bool
}

func (c *Client) newEncoder(w *bufio.Writer) *imapwire.Encoder {
	enc := imapwire.NewEncoder(w)
	enc.UTF7 = !c.options.RawMailboxNames
	enc.LiteralPlus = c.caps.Has(imap.CapLiteralPlus)
	return enc
}

// signature returns the cache signature of a command.
func (c *Client) signature(cmd *command, extra ...string) string {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	enc := imapwire.NewEncoder(bw)
	enc.UTF7 = !c.options.RawMailboxNames
	enc.LiteralPlus = true
	enc.Atom(cmd.name)
	if cmd.args != nil {
		cmd.args(enc)
	}
	enc.CRLF()
	sig := imapcache.Signature(buf.String())
	for _, s := range extra {
		sig += " " + s
	}
	return sig
}

func (c *Client) flush() error {
	if err := c.bw.Flush(); err != nil {
		return err
	}
	if f, ok := c.conn.(internal.Flusher); ok {
		return f.Flush()
	}
	return nil
}

// pendingCommand is a command being written.
type pendingCommand struct {
	cmd   *command
	tag   string
	enc   *imapwire.Encoder
	start time.Time
	// A synchronizing literal may be refused by the server, in which case
	// the response is complete before the command is.
	early   *imapwire.Response
	pending []*imapwire.Response
}

// execute sends a command and reads its response.
//
// The response is returned even when an error is, with whatever lines were
// read. A NO or BAD completion yields an *imap.Error.
func (c *Client) execute(cmd *command) (*imapwire.Response, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	p, err := c.begin(cmd)
	if err != nil {
		return nil, err
	}
	return c.end(p)
}

// begin writes the tag, the name and the arguments of a command. The caller
// must hold the lock.
func (c *Client) begin(cmd *command) (*pendingCommand, error) {
	switch {
	case c.stream != nil || c.appending != nil:
		return nil, errBusy
	case c.state == imap.ConnStateNone || c.state == imap.ConnStateLogout:
		return nil, errClosed
	}

	c.cmdTag++
	p := &pendingCommand{
		cmd:   cmd,
		tag:   "A" + strconv.FormatUint(c.cmdTag, 10),
		enc:   c.newEncoder(c.bw),
		start: time.Now(),
	}
	p.enc.Continue = func() error {
		if err := c.flush(); err != nil {
			return err
		}
		resp, err := c.asm.ReadContinuation(p.tag, c.options.MaxRead)
		if err != nil {
			p.early = resp
			return err
		}
		if resp.Completion() != nil {
			p.early = resp
			return fmt.Errorf("imapclient: literal refused")
		}
		p.pending = append(p.pending, resp)
		return nil
	}
	p.enc.Atom(p.tag).SP().Atom(cmd.name)
	if cmd.args != nil {
		cmd.args(p.enc)
	}
	return p, nil
}

// end terminates a command and reads its response. The caller must hold
// the lock.
func (c *Client) end(p *pendingCommand) (*imapwire.Response, error) {
	cmd, tag := p.cmd, p.tag
	writeErr := p.enc.CRLF()
	if writeErr == nil {
		writeErr = c.flush()
	}

	cmdText := strings.TrimPrefix(p.enc.Command(), tag+" ")
	if cmd.sensitive {
		cmdText = cmd.name
	}

	var resp *imapwire.Response
	var err error
	switch {
	case p.early != nil:
		resp, err = p.early, nil
		if resp.Completion() == nil {
			err = imap.ErrIncomplete
		}
	case writeErr != nil:
		level.Warn(c.logger).Log("msg", "failed to send command", "command", cmdText, "err", writeErr)
		return &imapwire.Response{Tag: tag}, fmt.Errorf("%w: %v", imap.ErrIncomplete, writeErr)
	default:
		resp, err = c.asm.ReadResponse(tag, c.options.MaxRead, cmd.mode)
	}
	for i := len(p.pending) - 1; i >= 0; i-- {
		resp.Lines = append(p.pending[i].Lines, resp.Lines...)
		resp.Raw = append(p.pending[i].Raw, resp.Raw...)
	}

	elapsed := time.Since(p.start)
	c.history.add(HistoryEntry{
		Command: cmdText,
		Status:  resp.Status(),
		Size:    c.asm.Tokenizer().Size(),
		Elapsed: elapsed,
	})
	level.Debug(c.logger).Log("msg", "command", "command", cmdText, "status", resp.Status(), "elapsed", elapsed)

	for _, line := range resp.Lines {
		c.updateCaps(line)
	}

	switch {
	case errors.Is(err, imap.ErrBye):
		c.state = imap.ConnStateLogout
		level.Warn(c.logger).Log("msg", "server closed the session", "command", cmdText)
		return resp, err
	case errors.Is(err, imap.ErrTruncated):
		level.Warn(c.logger).Log("msg", "response truncated", "command", cmdText, "max", c.options.MaxRead)
	case err != nil:
		level.Warn(c.logger).Log("msg", "incomplete response", "command", cmdText, "err", err)
		return resp, err
	}

	if c.state == imap.ConnStateSelected {
		c.applyUpdates(resp, cmd.fetch)
		if resp.Truncated {
			// Notifications past the ceiling were discarded, so the cached
			// results can no longer be trusted.
			c.invalidate(imapcache.MailboxScope(c.selected.Name))
		}
	}
	if err != nil {
		return resp, err
	}
	return resp, resp.Err(cmdText)
}

// updateCaps refreshes the capabilities from a CAPABILITY response or a
// CAPABILITY response code. The caller must hold the lock.
func (c *Client) updateCaps(line []imapwire.Token) {
	var words []string
	switch {
	case len(line) > 1 && line[0].IsMarker('*') && line[1].Is("CAPABILITY"):
		for _, tok := range line[2:] {
			words = append(words, tok.Value)
		}
	default:
		i := imapwire.Index(line, "[")
		if i < 0 || i+1 >= len(line) || !line[i+1].Is("CAPABILITY") {
			return
		}
		for _, tok := range line[i+2:] {
			if tok.IsMarker(']') {
				break
			}
			words = append(words, tok.Value)
		}
	}
	c.caps = imap.ParseCapSet(words, c.options.BlacklistedExtensions)
	c.capsTag = c.cmdTag
}

// upgradeConn replaces the transport, for instance after STARTTLS or
// COMPRESS. Data already buffered is read before the old transport. The
// caller must hold the lock.
func (c *Client) upgradeConn(upgrade func(conn net.Conn) (net.Conn, error)) error {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, c.br, int64(c.br.Buffered())); err != nil {
		return err
	}

	cleartextConn := c.conn
	if buf.Len() > 0 {
		cleartextConn = bufferedConn{c.conn, io.MultiReader(&buf, c.conn)}
	}
	conn, err := upgrade(cleartextConn)
	if err != nil {
		return err
	}

	rw := c.options.wrapReadWriter(conn)
	c.conn = conn
	c.br.Reset(rw)
	c.bw = bufio.NewWriter(rw)
	return nil
}

type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (conn bufferedConn) Read(b []byte) (int, error) {
	return conn.r.Read(b)
}
