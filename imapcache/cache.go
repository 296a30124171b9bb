// Package imapcache caches parsed IMAP results for one connection.
//
// Results of per-mailbox commands are keyed by a Fingerprint of the mailbox
// (name, UIDVALIDITY, UIDNEXT and message count) and by the command
// Signature. When any of the four fingerprint fields changes, the whole
// bucket of the mailbox is dropped. Listing commands (LIST, LSUB and
// NAMESPACE) are cached in global buckets that only an explicit Invalidate
// clears.
//
// A Cache must not be shared between connections.
package imapcache

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
)

// Global bucket names. They can't collide with fingerprint keys, which are
// hex-encoded digests.
const (
	bucketList      = "LIST"
	bucketLSub      = "LSUB"
	bucketNamespace = "NAMESPACE"
)

// Fingerprint identifies a mailbox snapshot. Two snapshots with the same
// fingerprint are assumed to hold the same messages.
type Fingerprint struct {
	Mailbox     string
	UIDValidity int64
	UIDNext     int64
	NumMessages int64
}

// FingerprintOf returns the fingerprint of a mailbox state.
func FingerprintOf(state *imap.MailboxState) Fingerprint {
	return Fingerprint{
		Mailbox:     state.Name,
		UIDValidity: state.UIDValidity,
		UIDNext:     state.UIDNext,
		NumMessages: state.NumMessages,
	}
}

// Key returns the bucket key of the fingerprint.
func (fp Fingerprint) Key() string {
	// Fields are length-prefixed so that no two fingerprints share an input.
	h := sha1.New()
	for _, field := range []string{
		fp.Mailbox,
		strconv.FormatInt(fp.UIDValidity, 10),
		strconv.FormatInt(fp.UIDNext, 10),
		strconv.FormatInt(fp.NumMessages, 10),
	} {
		h.Write([]byte(strconv.Itoa(len(field)) + ":" + field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var tagRe = regexp.MustCompile(`^[A-Za-z]\d+ `)

// Signature normalizes a command line into a cache signature: the tag and
// the line terminators are stripped.
func Signature(cmd string) string {
	cmd = tagRe.ReplaceAllString(cmd, "")
	return strings.NewReplacer("\r", "", "\n", "").Replace(cmd)
}

// globalBucket returns the global bucket for listing commands.
func globalBucket(sig string) string {
	verb := sig
	if i := strings.IndexByte(sig, ' '); i >= 0 {
		verb = sig[:i]
	}
	switch strings.ToUpper(verb) {
	case "LIST":
		return bucketList
	case "LSUB":
		return bucketLSub
	case "NAMESPACE":
		return bucketNamespace
	}
	return ""
}

// Options configures a Cache.
type Options struct {
	Logger  log.Logger
	Metrics *Metrics
}

// Cache maps (fingerprint, signature) pairs to parsed results.
type Cache struct {
	mu sync.Mutex
	// keys maps mailbox names to their current fingerprint key.
	keys map[string]string
	// buckets maps fingerprint keys and global bucket names to entries
	// keyed by signature.
	buckets map[string]map[string]interface{}

	logger  log.Logger
	metrics *Metrics
}

// New creates an empty cache. A nil options pointer selects defaults.
func New(options *Options) *Cache {
	if options == nil {
		options = &Options{}
	}
	c := &Cache{
		keys:    make(map[string]string),
		buckets: make(map[string]map[string]interface{}),
		logger:  options.Logger,
		metrics: options.Metrics,
	}
	if c.logger == nil {
		c.logger = log.NewNopLogger()
	}
	if c.metrics == nil {
		c.metrics = NewDiscardMetrics()
	}
	return c
}

// bucketKey returns the bucket for a lookup, dropping the stale bucket of
// the mailbox if its fingerprint changed. The caller must hold the lock.
func (c *Cache) bucketKey(fp Fingerprint, sig string) string {
	if global := globalBucket(sig); global != "" {
		return global
	}
	key := fp.Key()
	if old, ok := c.keys[fp.Mailbox]; ok && old != key {
		delete(c.buckets, old)
		c.metrics.Busts.Add(1)
		level.Debug(c.logger).Log("msg", "mailbox changed, dropping cache bucket", "mailbox", fp.Mailbox)
	}
	c.keys[fp.Mailbox] = key
	return key
}

// Lookup returns the result cached for a command. The fingerprint is ignored
// for listing commands.
func (c *Cache) Lookup(fp Fingerprint, sig string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.buckets[c.bucketKey(fp, sig)][sig]
	if ok {
		c.metrics.Hits.Add(1)
	} else {
		c.metrics.Misses.Add(1)
	}
	return v, ok
}

// Store caches the result of a command.
func (c *Cache) Store(fp Fingerprint, sig string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.bucketKey(fp, sig)
	bucket := c.buckets[key]
	if bucket == nil {
		bucket = make(map[string]interface{})
		c.buckets[key] = bucket
	}
	bucket[sig] = v
	c.metrics.Stores.Add(1)
}

// Rebind moves the bucket of a mailbox to a new fingerprint. It is used
// when a change of the mailbox snapshot was fully explained by
// notifications that were already applied to the cached entries.
func (c *Cache) Rebind(fp Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.keys[fp.Mailbox]
	key := fp.Key()
	if !ok || old == key {
		return
	}
	if bucket, ok := c.buckets[old]; ok {
		delete(c.buckets, old)
		c.buckets[key] = bucket
	}
	c.keys[fp.Mailbox] = key
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, bucket := range c.buckets {
		n += len(bucket)
	}
	return n
}
