package imapclient

import (
	"github.com/go-kit/kit/log/level"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
)

// fingerprint returns the fingerprint of the selected mailbox.
func (c *Client) fingerprint() (imapcache.Fingerprint, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.selected == nil {
		return imapcache.Fingerprint{}, false
	}
	return imapcache.FingerprintOf(c.selected), true
}

// cached returns the cached result for sig, or calls fetch and caches its
// result on success. Results are cached per selected mailbox, unless global
// is set: listing results do not depend on the selected mailbox.
func (c *Client) cached(sig string, global bool, fetch func() (interface{}, error)) (interface{}, error) {
	cache := c.options.Cache
	if cache == nil {
		return fetch()
	}
	fp, ok := c.fingerprint()
	if !ok && !global {
		return fetch()
	}
	if v, ok := cache.Lookup(fp, sig); ok {
		c.mutex.Lock()
		c.history.add(HistoryEntry{Command: sig, Status: imap.StatusResponseTypeOK, Cached: true})
		c.mutex.Unlock()
		level.Debug(c.logger).Log("msg", "cache hit", "mailbox", fp.Mailbox, "command", sig)
		return v, nil
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	// The command may have changed the fingerprint.
	if fp, ok = c.fingerprint(); ok || global {
		cache.Store(fp, sig, v)
	}
	return v, nil
}

func (c *Client) invalidate(scopes ...imapcache.Scope) {
	if c.options.Cache == nil {
		return
	}
	for _, scope := range scopes {
		c.options.Cache.Invalidate(scope)
	}
}
