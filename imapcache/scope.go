package imapcache

import (
	"github.com/go-kit/kit/log/level"
)

type scopeKind int

const (
	scopeMailbox scopeKind = iota
	scopeList
	scopeLSub
	scopeNamespace
	scopeAll
)

// Scope selects the entries dropped by Invalidate.
type Scope struct {
	kind    scopeKind
	mailbox string
}

var (
	// ScopeList selects the LIST results.
	ScopeList = Scope{kind: scopeList}
	// ScopeLSub selects the LSUB results.
	ScopeLSub = Scope{kind: scopeLSub}
	// ScopeNamespace selects the NAMESPACE result.
	ScopeNamespace = Scope{kind: scopeNamespace}
	// ScopeAll selects everything.
	ScopeAll = Scope{kind: scopeAll}
)

// MailboxScope selects the results cached for a mailbox.
func MailboxScope(name string) Scope {
	return Scope{kind: scopeMailbox, mailbox: name}
}

func (s Scope) String() string {
	switch s.kind {
	case scopeList:
		return bucketList
	case scopeLSub:
		return bucketLSub
	case scopeNamespace:
		return bucketNamespace
	case scopeAll:
		return "ALL"
	default:
		return s.mailbox
	}
}

// Invalidate drops the entries selected by scope.
func (c *Cache) Invalidate(scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch scope.kind {
	case scopeList:
		delete(c.buckets, bucketList)
	case scopeLSub:
		delete(c.buckets, bucketLSub)
	case scopeNamespace:
		delete(c.buckets, bucketNamespace)
	case scopeAll:
		c.keys = make(map[string]string)
		c.buckets = make(map[string]map[string]interface{})
	default:
		if key, ok := c.keys[scope.mailbox]; ok {
			delete(c.buckets, key)
			delete(c.keys, scope.mailbox)
		}
	}
	c.metrics.Busts.Add(1)
	level.Debug(c.logger).Log("msg", "cache invalidated", "scope", scope)
}
