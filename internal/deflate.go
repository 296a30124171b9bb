package internal

import (
	"compress/flate"
	"io"
	"net"
)

// compressConn is a connection after COMPRESS DEFLATE (RFC 4978).
type compressConn struct {
	net.Conn

	r io.ReadCloser
	w *flate.Writer
}

func (c *compressConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}

func (c *compressConn) Write(b []byte) (int, error) {
	return c.w.Write(b)
}

// Flusher is implemented by connections that buffer writes.
type Flusher interface {
	Flush() error
}

// Flush pushes pending compressed data to the wire. Writes are not
// delivered to the server until Flush is called.
func (c *compressConn) Flush() error {
	if err := c.w.Flush(); err != nil {
		return err
	}
	if f, ok := c.Conn.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

func (c *compressConn) Close() error {
	rerr := c.r.Close()
	werr := c.w.Close()
	cerr := c.Conn.Close()
	switch {
	case rerr != nil:
		return rerr
	case werr != nil:
		return werr
	default:
		return cerr
	}
}

// NewCompressConn wraps c with raw DEFLATE compression in both directions.
func NewCompressConn(c net.Conn, level int) (net.Conn, error) {
	w, err := flate.NewWriter(c, level)
	if err != nil {
		return nil, err
	}
	return &compressConn{
		Conn: c,
		r:    flate.NewReader(c),
		w:    w,
	}, nil
}
