package imapclient

import (
	"strings"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// ListOptions contains options for ListMailboxes.
type ListOptions struct {
	// Subscribed lists subscribed mailboxes only, with LSUB.
	Subscribed bool
	// Mailbox restricts the listing to the hierarchy below a mailbox.
	Mailbox string
	// Pattern is the LIST pattern, "*" by default.
	Pattern string
}

// listStatusItems are requested with LIST-STATUS.
var listStatusItems = []imap.StatusItem{
	imap.StatusItemNumMessages,
	imap.StatusItemNumUnseen,
	imap.StatusItemUIDValidity,
	imap.StatusItemUIDNext,
	imap.StatusItemNumRecent,
}

type listCommand struct {
	*command
	namespace string
}

func (c *Client) listCommands(options *ListOptions, namespaces imap.NamespaceData) []listCommand {
	name := "LIST"
	if options.Subscribed {
		name = "LSUB"
	}
	pattern := options.Pattern
	if pattern == "" {
		pattern = "*"
	}
	withStatus := !options.Subscribed && c.Caps().Has(imap.CapListStatus)

	var cmds []listCommand
	for _, ns := range namespaces {
		prefix := ns.Prefix
		if strings.EqualFold(prefix, "INBOX") {
			prefix = ""
		}
		ref := prefix
		if options.Mailbox != "" {
			ref = options.Mailbox + ns.Delim
		}
		cmds = append(cmds, listCommand{
			namespace: prefix,
			command: &command{
				name: name,
				args: func(enc *imapwire.Encoder) {
					enc.SP().Mailbox(ref).SP().Mailbox(pattern)
					if withStatus {
						enc.SP().Atom("RETURN (CHILDREN STATUS ")
						enc.List(len(listStatusItems), func(i int) {
							enc.Atom(string(listStatusItems[i]))
						})
						enc.Special(')')
					}
				},
			},
		})
	}
	return cmds
}

// ListMailboxes lists the mailboxes of every namespace.
//
// The result maps full mailbox names to folders. Parents missing from the
// server response are added as non-selectable placeholders, and INBOX is
// always present. With LIST-STATUS, the status of each mailbox is returned
// as well.
//
// A nil options pointer is equivalent to a zero options value.
func (c *Client) ListMailboxes(options *ListOptions) (imap.MailboxList, error) {
	if options == nil {
		options = &ListOptions{}
	}
	if options.Mailbox != "" {
		if err := imap.ValidateMailbox(options.Mailbox); err != nil {
			return nil, err
		}
	}
	if options.Pattern != "" {
		if err := imap.ValidateMailbox(options.Pattern); err != nil {
			return nil, err
		}
	}

	namespaces, err := c.Namespaces()
	if err != nil {
		return nil, err
	}
	cmds := c.listCommands(options, namespaces)
	var sigs []string
	for _, cmd := range cmds {
		sigs = append(sigs, c.signature(cmd.command))
	}

	v, err := c.cached(strings.Join(sigs, ""), true, func() (interface{}, error) {
		return c.listMailboxes(cmds)
	})
	l, _ := v.(imap.MailboxList)
	return l.Copy(), err
}

func (c *Client) listMailboxes(cmds []listCommand) (imap.MailboxList, error) {
	folders := make(imap.MailboxList)
	parts := make(map[string][]string)
	var statuses []*imap.StatusData

	for _, cmd := range cmds {
		resp, err := c.execute(cmd.command)
		if err != nil {
			return nil, err
		}
		for _, line := range resp.Untagged() {
			if len(line) < 4 {
				continue
			}
			if line[1].Is("STATUS") {
				data := imap.NewStatusData(c.decodeMailbox(line[2].Value))
				list, _ := imapwire.Group(line, 3)
				parseStatusItems(data, list)
				statuses = append(statuses, data)
				continue
			}
			if !line[1].Is("LIST") && !line[1].Is("LSUB") {
				continue
			}
			folder, names := c.parseListLine(line, cmd.namespace)
			if folder == nil || folders[folder.Name] != nil {
				continue
			}
			folders[folder.Name] = folder
			parts[folder.Name] = names
		}
	}

	addPlaceholders(folders, parts)
	if folders["INBOX"] == nil {
		folders["INBOX"] = &imap.Folder{Name: "INBOX", Basename: "INBOX", CanHaveKids: true}
	}

	c.mutex.Lock()
	for _, data := range statuses {
		if f := folders[data.Mailbox]; f != nil {
			f.Status = data
		}
		c.mergeStatus(data)
	}
	c.mutex.Unlock()

	if limit := c.options.FolderMax; limit > 0 && len(folders) > limit {
		kept := make(imap.MailboxList, limit)
		kept["INBOX"] = folders["INBOX"]
		for _, name := range folders.Names() {
			if len(kept) >= limit {
				break
			}
			kept[name] = folders[name]
		}
		folders = kept
	}
	return folders, nil
}

// parseListLine parses a LIST or LSUB response line:
//
//	* LIST (attributes) delimiter name [extended data]
//
// It returns the folder and the parts of its name.
func (c *Client) parseListLine(line []imapwire.Token, namespace string) (*imap.Folder, []string) {
	attrList, i := imapwire.Group(line, 2)
	if i+1 >= len(line) {
		return nil, nil
	}
	delim := line[i].NString()
	name := c.decodeMailbox(line[i+1].Value)
	if name == "" {
		return nil, nil
	}

	var names []string
	if delim != "" && strings.Contains(name, delim) {
		for _, part := range strings.Split(name, delim) {
			if strings.TrimSpace(part) != "" {
				names = append(names, part)
			}
		}
	}
	if len(names) == 0 {
		names = []string{name}
	}

	folder := &imap.Folder{
		Name:        name,
		Basename:    names[len(names)-1],
		Delim:       delim,
		Namespace:   namespace,
		Attrs:       internal.MailboxAttrs(attrList),
		CanHaveKids: true,
	}
	if len(names) > 1 {
		folder.Parent = strings.Join(names[:len(names)-1], delim)
		if folder.Parent+delim == namespace {
			folder.Parent = ""
		}
	}
	if name == namespace && namespace != "" {
		folder.HasKids = true
	}
	for _, attr := range folder.Attrs {
		switch {
		case attr == imap.MailboxAttrMarked:
			folder.Marked = true
		case attr == imap.MailboxAttrNoInferiors:
			folder.CanHaveKids = false
		case attr == imap.MailboxAttrHasChildren:
			folder.HasKids = true
		case attr == imap.MailboxAttrNoSelect:
			folder.NoSelect = name != "INBOX" && name != namespace
		case attr.IsSpecialUse():
			folder.SpecialUse = attr
		}
	}
	return folder, names
}

// addPlaceholders completes the hierarchy: every parent is marked as
// having children, and missing ancestors are added as non-selectable
// placeholders.
func addPlaceholders(folders imap.MailboxList, parts map[string][]string) {
	for _, name := range folders.Names() {
		folder := folders[name]
		if folder.Parent == "" {
			continue
		}
		if parent := folders[folder.Parent]; parent != nil {
			parent.HasKids = true
			continue
		}

		segs := parts[name]
		for i := 1; i < len(segs); i++ {
			fname := strings.Join(segs[:i], folder.Delim)
			if folders[fname] != nil {
				folders[fname].HasKids = true
				continue
			}
			var fparent string
			if i > 1 {
				fparent = strings.Join(segs[:i-1], folder.Delim)
				if fparent+folder.Delim == folder.Namespace {
					fparent = ""
				}
			}
			folders[fname] = &imap.Folder{
				Name:        fname,
				Basename:    segs[i-1],
				Parent:      fparent,
				Delim:       folder.Delim,
				Namespace:   folder.Namespace,
				NoSelect:    true,
				CanHaveKids: true,
				HasKids:     true,
				Placeholder: true,
			}
		}
	}
}

// SpecialUseMailboxes returns the mailboxes holding a RFC 6154 role, keyed
// by role.
//
// This command requires support for SPECIAL-USE.
func (c *Client) SpecialUseMailboxes() (map[imap.MailboxAttr]string, error) {
	if !c.Caps().Has(imap.CapSpecialUse) {
		return nil, imap.ErrNotSupported
	}
	cmd := &command{
		name: "LIST",
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom("(SPECIAL-USE)").SP().Mailbox("").SP().Mailbox("*")
		},
	}
	v, err := c.cached(c.signature(cmd), true, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}
		uses := make(map[imap.MailboxAttr]string)
		for _, line := range resp.Untagged() {
			if len(line) < 4 || !line[1].Is("LIST") {
				continue
			}
			folder, _ := c.parseListLine(line, "")
			if folder != nil && folder.SpecialUse != "" {
				uses[folder.SpecialUse] = folder.Name
			}
		}
		return uses, nil
	})
	uses, _ := v.(map[imap.MailboxAttr]string)
	return uses, err
}
