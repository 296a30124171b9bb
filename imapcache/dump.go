package imapcache

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/jasonmunro/hm-imap"
)

func init() {
	gob.Register(&imap.UIDList{})
	gob.Register(imap.MessageList{})
	gob.Register(&imap.BodyStructure{})
	gob.Register(imap.MailboxList{})
	gob.Register(imap.NamespaceData{})
	gob.Register(imap.Header{})
	gob.Register(map[imap.MailboxAttr]string{})
}

// snapshot is the serialized form of a cache.
type snapshot struct {
	Keys    map[string]string
	Buckets map[string]map[string]interface{}
}

var gzipMagic = []byte{0x1f, 0x8b}

// Dump serializes the cache. If compress is set, the blob is gzipped.
// Values must be of a type registered with encoding/gob; the result types
// of the imap package are registered by this package.
func (c *Cache) Dump(compress bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	var w io.Writer = &buf
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(&buf)
		w = zw
	}
	if err := gob.NewEncoder(w).Encode(&snapshot{Keys: c.keys, Buckets: c.buckets}); err != nil {
		return nil, fmt.Errorf("imapcache: dump: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("imapcache: dump: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Load replaces the cache contents with a blob produced by Dump. Compressed
// blobs are detected automatically.
func (c *Cache) Load(b []byte) error {
	br := bufio.NewReader(bytes.NewReader(b))
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("imapcache: load: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("imapcache: load: %w", err)
	}
	if snap.Keys == nil {
		snap.Keys = make(map[string]string)
	}
	if snap.Buckets == nil {
		snap.Buckets = make(map[string]map[string]interface{})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = snap.Keys
	c.buckets = snap.Buckets
	return nil
}
