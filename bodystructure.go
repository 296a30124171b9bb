package imap

import (
	"strconv"
	"strings"
)

// BodyStructure describes one node of a message MIME tree.
//
// A node is either a leaf part or a multipart composite, in which case
// Type is "multipart" and Children holds the sub-parts. A message/rfc822
// part carries the embedded message Envelope and its body as Children.
//
// Part is the dotted IMAP part number. The top-level multipart of a
// message has an empty Part, and the multipart body of an embedded message
// is numbered "<part>.TEXT".
type BodyStructure struct {
	Part string

	Type        string
	Subtype     string
	Params      map[string]string
	ID          string
	Description string
	Encoding    string
	Size        int64
	Lines       int64
	MD5         string

	Disposition      string
	Filename         string
	AttachmentSize   string
	CreationDate     string
	ModificationDate string
	Language         string
	Location         string

	Envelope *Envelope
	Children []*BodyStructure
}

// Copy returns a deep copy of the tree.
func (bs *BodyStructure) Copy() *BodyStructure {
	if bs == nil {
		return nil
	}
	cp := *bs
	if bs.Params != nil {
		cp.Params = make(map[string]string, len(bs.Params))
		for k, v := range bs.Params {
			cp.Params[k] = v
		}
	}
	if bs.Envelope != nil {
		env := *bs.Envelope
		cp.Envelope = &env
	}
	cp.Children = nil
	for _, child := range bs.Children {
		cp.Children = append(cp.Children, child.Copy())
	}
	return &cp
}

// IsMultipart reports whether the node is a multipart composite.
func (bs *BodyStructure) IsMultipart() bool {
	return bs.Type == "multipart"
}

// MediaType returns the "type/subtype" string of the node.
func (bs *BodyStructure) MediaType() string {
	return bs.Type + "/" + bs.Subtype
}

// Charset returns the lower-case charset parameter, if any.
func (bs *BodyStructure) Charset() string {
	return bs.Params["charset"]
}

// Walk calls f for each node of the tree in depth-first order. If f
// returns false, the children of the node are skipped.
func (bs *BodyStructure) Walk(f func(node *BodyStructure) bool) {
	if !f(bs) {
		return
	}
	for _, child := range bs.Children {
		child.Walk(f)
	}
}

// Flatten returns every addressable part of the tree keyed by part number.
// Multipart composites are not addressable and are left out.
func (bs *BodyStructure) Flatten() map[string]*BodyStructure {
	m := make(map[string]*BodyStructure)
	bs.Walk(func(node *BodyStructure) bool {
		if !node.IsMultipart() && node.Part != "" {
			m[node.Part] = node
		}
		return true
	})
	return m
}

// Find returns the node with the given part number, or nil.
func (bs *BodyStructure) Find(part string) *BodyStructure {
	var found *BodyStructure
	bs.Walk(func(node *BodyStructure) bool {
		if found != nil {
			return false
		}
		if node.Part == part {
			found = node
			return false
		}
		return true
	})
	return found
}

// PartCriteria selects body parts. Empty fields match anything. Part must
// match exactly, the other fields match case-insensitive substrings.
type PartCriteria struct {
	Part        string
	Type        string
	Subtype     string
	Disposition string
	Filename    string
	Charset     string
	Encoding    string
}

func containsFoldStr(s, substr string) bool {
	return substr == "" || strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (c *PartCriteria) match(node *BodyStructure) bool {
	if c.Part != "" && node.Part != c.Part {
		return false
	}
	return containsFoldStr(node.Type, c.Type) &&
		containsFoldStr(node.Subtype, c.Subtype) &&
		containsFoldStr(node.Disposition, c.Disposition) &&
		containsFoldStr(node.Filename, c.Filename) &&
		containsFoldStr(node.Charset(), c.Charset) &&
		containsFoldStr(node.Encoding, c.Encoding)
}

// Search returns the nodes matching the criteria in depth-first order. If
// all is false, at most one node is returned.
func (bs *BodyStructure) Search(criteria *PartCriteria, all bool) []*BodyStructure {
	var l []*BodyStructure
	bs.Walk(func(node *BodyStructure) bool {
		if !all && len(l) > 0 {
			return false
		}
		if criteria.match(node) {
			l = append(l, node)
		}
		return true
	})
	if !all && len(l) > 1 {
		l = l[:1]
	}
	return l
}

// FilterAlternatives returns a copy of the tree where the children of every
// multipart/alternative composite whose subtype differs from subtype are
// pruned, along with the number of pruned nodes. A composite with no child
// of the preferred subtype is left empty.
func (bs *BodyStructure) FilterAlternatives(subtype string) (*BodyStructure, int) {
	subtype = strings.ToLower(subtype)
	var pruned int
	var filter func(node *BodyStructure) *BodyStructure
	filter = func(node *BodyStructure) *BodyStructure {
		cp := *node
		cp.Children = nil
		alternative := node.IsMultipart() && node.Subtype == "alternative"
		for _, child := range node.Children {
			if alternative && child.Subtype != subtype {
				pruned++
				continue
			}
			cp.Children = append(cp.Children, filter(child))
		}
		return &cp
	}
	return filter(bs), pruned
}

// IncrementPart returns the next sibling part number: the last dotted
// segment is incremented, the preceding ones are kept.
//
//	IncrementPart("1.9") == "1.10"
func IncrementPart(part string) string {
	prefix, last := "", part
	if i := strings.LastIndexByte(part, '.'); i >= 0 {
		prefix, last = part[:i+1], part[i+1:]
	}
	n, err := strconv.ParseUint(last, 10, 64)
	if err != nil {
		return part
	}
	return prefix + strconv.FormatUint(n+1, 10)
}

// FirstChildPart returns the part number of the first child of part.
func FirstChildPart(part string) string {
	if part == "" {
		return "1"
	}
	return part + ".1"
}
