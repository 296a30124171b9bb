package imap

import (
	"sort"
)

// Folder is a mailbox returned by a LIST or LSUB command.
type Folder struct {
	// Name is the full decoded mailbox name.
	Name string
	// Basename is the last hierarchy segment of Name.
	Basename string
	// Parent is the full name of the parent mailbox, if any.
	Parent    string
	Delim     string
	Namespace string
	Attrs     []MailboxAttr

	Marked      bool
	NoSelect    bool
	CanHaveKids bool
	HasKids     bool
	// SpecialUse is the RFC 6154 role of the mailbox, if any.
	SpecialUse MailboxAttr
	// Placeholder is set for parents missing from the server response that
	// were added to complete the hierarchy.
	Placeholder bool

	// Status is populated when LIST-STATUS is supported.
	Status *StatusData
}

// HasAttr checks whether the folder has a mailbox attribute.
func (f *Folder) HasAttr(attr MailboxAttr) bool {
	for _, a := range f.Attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// MailboxList maps full mailbox names to folders.
type MailboxList map[string]*Folder

// Names returns the mailbox names in sorted order.
func (l MailboxList) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy returns a deep copy of the list.
func (l MailboxList) Copy() MailboxList {
	if l == nil {
		return nil
	}
	out := make(MailboxList, len(l))
	for name, f := range l {
		cp := *f
		cp.Attrs = append([]MailboxAttr(nil), f.Attrs...)
		if f.Status != nil {
			status := *f.Status
			cp.Status = &status
		}
		out[name] = &cp
	}
	return out
}

// Children returns the direct children of a mailbox in sorted order.
func (l MailboxList) Children(parent string) []*Folder {
	var out []*Folder
	for _, name := range l.Names() {
		if f := l[name]; f.Parent == parent && f.Name != parent {
			out = append(out, f)
		}
	}
	return out
}
