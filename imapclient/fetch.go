package imapclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal"
	"github.com/jasonmunro/hm-imap/internal/imapnum"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// summaryHeaders are the header fields fetched by MessageList.
const summaryHeaders = "SUBJECT FROM TO DATE CONTENT-TYPE X-PRIORITY"

// fetchItem is one item of a FETCH response.
type fetchItem struct {
	// name is the upper-cased item name, without its section.
	name string
	// section is the text between the brackets of a BODY[...] item.
	section string
	value   []imapwire.Token
}

var sectionReplacer = strings.NewReplacer("( ", "(", " )", ")")

// parseFetchItems parses a "* n FETCH (...)" line. It returns false if the
// line is not a FETCH response.
func parseFetchItems(line []imapwire.Token) ([]fetchItem, bool) {
	if len(line) < 4 || !line[0].IsMarker('*') || !line[2].Is("FETCH") {
		return nil, false
	}
	list, _ := imapwire.Group(line, 3)
	if !isList(list) {
		return nil, false
	}
	toks := list[1 : len(list)-1]

	var items []fetchItem
	for i := 0; i < len(toks); {
		tok := toks[i]
		i++
		if tok.Kind != imapwire.TokenAtom {
			continue
		}
		item := fetchItem{name: strings.ToUpper(tok.Value)}
		if j := strings.IndexByte(item.name, '['); j >= 0 {
			section := []string{item.name[j+1:]}
			item.name = item.name[:j]
			for ; i < len(toks) && !toks[i].IsMarker(']'); i++ {
				section = append(section, toks[i].Value)
			}
			i++
			item.section = sectionReplacer.Replace(strings.TrimSpace(strings.Join(section, " ")))
			if i < len(toks) && strings.HasPrefix(toks[i].Value, "<") {
				i++
			}
		}
		item.value, i = imapwire.Group(toks, i)
		items = append(items, item)
	}
	return items, true
}

func findFetchItem(items []fetchItem, name string) []imapwire.Token {
	for _, item := range items {
		if item.name == name {
			return item.value
		}
	}
	return nil
}

func uidSet(uids []imap.UID) imapnum.Set {
	nums := make([]uint32, len(uids))
	for i, uid := range uids {
		nums[i] = uint32(uid)
	}
	return imapnum.SetNum(nums...)
}

func (c *Client) requireSelected() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.selected == nil {
		return &imap.Error{Type: imap.StatusResponseTypeBad, Text: "no mailbox selected"}
	}
	return nil
}

// MessageList fetches the list view of messages of the selected mailbox:
// flags, dates, sizes and the main headers. Header text is decoded.
//
// Messages which no longer exist are missing from the result.
func (c *Client) MessageList(uids []imap.UID) (imap.MessageList, error) {
	if len(uids) == 0 {
		return make(imap.MessageList), nil
	}
	if err := c.requireSelected(); err != nil {
		return nil, err
	}

	items := "FLAGS INTERNALDATE RFC822.SIZE "
	if c.Caps().Has(imap.CapXGMExt1) {
		items += "X-GM-MSGID X-GM-THRID "
	}
	items += "BODY.PEEK[HEADER.FIELDS (" + summaryHeaders + ")]"

	set := uidSet(uids)
	cmd := &command{
		name:  "UID FETCH",
		fetch: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Atom(set.String()).SP().Atom("(" + items + ")")
		},
	}
	v, err := c.cached(c.signature(cmd), false, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil && !errors.Is(err, imap.ErrTruncated) {
			return nil, err
		}
		list := make(imap.MessageList)
		for _, line := range resp.Untagged() {
			if msg := c.parseSummary(line); msg != nil {
				list[msg.UID] = msg
			}
		}
		return list, err
	})
	l, _ := v.(imap.MessageList)
	return l.Copy(), err
}

func (c *Client) parseSummary(line []imapwire.Token) *imap.MessageSummary {
	items, ok := parseFetchItems(line)
	if !ok {
		return nil
	}
	msg := &imap.MessageSummary{FetchedAt: time.Now()}
	for _, item := range items {
		switch item.name {
		case "UID":
			uid, err := strconv.ParseUint(nstring(item.value), 10, 32)
			if err != nil {
				return nil
			}
			msg.UID = imap.UID(uid)
		case "FLAGS":
			msg.Flags = internal.Flags(item.value)
		case "INTERNALDATE":
			msg.InternalDate = nstring(item.value)
		case "RFC822.SIZE":
			msg.Size = number(item.value)
		case "X-GM-MSGID":
			msg.GoogleMsgID = nstring(item.value)
		case "X-GM-THRID":
			msg.GoogleThreadID = nstring(item.value)
		case "BODY":
			c.applySummaryHeaders(msg, parseHeader(nstring(item.value)))
		}
	}
	if msg.UID == 0 {
		return nil
	}
	return msg
}

func (c *Client) applySummaryHeaders(msg *imap.MessageSummary, h textproto.Header) {
	msg.Subject = c.options.decodeText(h.Get("Subject"))
	msg.From = c.options.decodeText(h.Get("From"))
	msg.To = c.options.decodeText(h.Get("To"))
	msg.Date = h.Get("Date")

	if ct := h.Get("Content-Type"); ct != "" {
		mediaType, params, err := mime.ParseMediaType(ct)
		if err == nil {
			msg.ContentType = mediaType
			msg.Charset = strings.ToLower(params["charset"])
		} else {
			msg.ContentType = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
		}
	}

	// "X-Priority: 1 (Highest)"
	p := strings.TrimSpace(h.Get("X-Priority"))
	end := 0
	for end < len(p) && p[end] >= '0' && p[end] <= '9' {
		end++
	}
	msg.XPriority, _ = strconv.Atoi(p[:end])
}

// parseHeader parses a header block. Malformed trailing lines are dropped.
func parseHeader(raw string) textproto.Header {
	raw = strings.TrimRight(raw, "\r\n") + "\r\n\r\n"
	h, _ := textproto.ReadHeader(bufio.NewReader(strings.NewReader(raw)))
	return h
}

// MessageStructure fetches the body structure of a message.
func (c *Client) MessageStructure(uid imap.UID) (*imap.BodyStructure, error) {
	if err := c.requireSelected(); err != nil {
		return nil, err
	}
	cmd := &command{
		name:  "UID FETCH",
		fetch: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Number(uint32(uid)).SP().Atom("BODYSTRUCTURE")
		},
	}
	v, err := c.cached(c.signature(cmd), false, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}
		for _, line := range resp.Untagged() {
			items, ok := parseFetchItems(line)
			if !ok {
				continue
			}
			if list := findFetchItem(items, "BODYSTRUCTURE"); isList(list) {
				return parseBodyStructure(list, c.options.decodeText), nil
			}
		}
		return nil, &imap.Error{
			Type:    imap.StatusResponseTypeNo,
			Text:    "missing BODYSTRUCTURE in response",
			Command: fmt.Sprintf("UID FETCH %v BODYSTRUCTURE", uid),
		}
	})
	bs, _ := v.(*imap.BodyStructure)
	return bs.Copy(), err
}

// FirstMessagePart returns the first part of a message with the given MIME
// type and subtype. An empty subtype matches any subtype. If no part
// matches, part 1 is returned.
func (c *Client) FirstMessagePart(uid imap.UID, typ, subtype string) (*imap.BodyStructure, error) {
	bs, err := c.MessageStructure(uid)
	if err != nil {
		return nil, err
	}
	criteria := &imap.PartCriteria{Type: typ, Subtype: subtype}
	for _, node := range bs.Search(criteria, true) {
		if !node.IsMultipart() {
			return node, nil
		}
	}
	if node := bs.Find("1"); node != nil {
		return node, nil
	}
	return bs, nil
}

// ContentOptions contains options for MessageContent.
type ContentOptions struct {
	// MaxSize fetches at most this many bytes of the part. Zero fetches the
	// whole part.
	MaxSize int64
	// Raw returns the part as stored on the server, skipping transfer and
	// charset decoding.
	Raw bool
}

// MessageContent fetches the content of a message part, or of the whole
// message if part is empty.
//
// Unless options.Raw is set, the part is decoded from its transfer encoding
// and converted to UTF-8 according to the message structure. If the
// response exceeds Options.MaxRead, the content read so far is returned
// with imap.ErrTruncated.
func (c *Client) MessageContent(uid imap.UID, part string, options *ContentOptions) (string, error) {
	if options == nil {
		options = &ContentOptions{}
	}
	if part != "" {
		if err := imap.ValidatePart(part); err != nil {
			return "", err
		}
	}
	if err := c.requireSelected(); err != nil {
		return "", err
	}

	section := "BODY.PEEK[" + part + "]"
	if options.MaxSize > 0 {
		section += "<0." + strconv.FormatInt(options.MaxSize, 10) + ">"
	}
	cmd := &command{
		name:  "UID FETCH",
		fetch: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Number(uint32(uid)).SP().Atom(section)
		},
	}

	var structure *imap.BodyStructure
	if part != "" && !options.Raw {
		bs, err := c.MessageStructure(uid)
		if err != nil {
			return "", err
		}
		structure = bs.Find(part)
	}

	v, err := c.cached(c.signature(cmd, strconv.FormatBool(options.Raw)), false, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil && !errors.Is(err, imap.ErrTruncated) {
			return nil, err
		}
		raw, found := bodySection(resp, part)
		if !found && err == nil {
			return nil, &imap.Error{
				Type:    imap.StatusResponseTypeNo,
				Text:    "missing BODY[" + part + "] in response",
				Command: fmt.Sprintf("UID FETCH %v %v", uid, section),
			}
		}
		if structure != nil && err == nil {
			raw = decodePart(raw, structure)
		}
		return raw, err
	})
	s, _ := v.(string)
	return s, err
}

// bodySection returns the value of the BODY[section] item of a response.
func bodySection(resp *imapwire.Response, section string) (string, bool) {
	for _, line := range resp.Untagged() {
		items, ok := parseFetchItems(line)
		if !ok {
			continue
		}
		for _, item := range items {
			if item.name == "BODY" && strings.EqualFold(item.section, section) {
				return nstring(item.value), true
			}
		}
	}
	return "", false
}

// decodePart decodes the transfer encoding and charset of a part. Data
// which cannot be decoded is returned as is.
func decodePart(raw string, bs *imap.BodyStructure) string {
	if bs.IsMultipart() {
		return raw
	}
	var h message.Header
	params := map[string]string{}
	if cs := bs.Charset(); cs != "" {
		params["charset"] = cs
	}
	h.SetContentType(bs.MediaType(), params)
	if bs.Encoding != "" {
		h.Set("Content-Transfer-Encoding", bs.Encoding)
	}

	entity, err := message.New(h, strings.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return raw
	}
	b, err := io.ReadAll(entity.Body)
	if err != nil {
		return raw
	}
	return string(b)
}

// MessageHeaders fetches and decodes the header of a message, or of an
// embedded message part if part is not empty.
func (c *Client) MessageHeaders(uid imap.UID, part string) (imap.Header, error) {
	section := "HEADER"
	if part != "" {
		if err := imap.ValidatePart(part); err != nil {
			return nil, err
		}
		section = part + ".HEADER"
	}
	if err := c.requireSelected(); err != nil {
		return nil, err
	}
	cmd := &command{
		name:  "UID FETCH",
		fetch: true,
		args: func(enc *imapwire.Encoder) {
			enc.SP().Number(uint32(uid)).SP().Atom("BODY.PEEK[" + section + "]")
		},
	}
	v, err := c.cached(c.signature(cmd), false, func() (interface{}, error) {
		resp, err := c.execute(cmd)
		if err != nil {
			return nil, err
		}
		raw, found := bodySection(resp, section)
		if !found {
			return nil, &imap.Error{
				Type:    imap.StatusResponseTypeNo,
				Text:    "missing BODY[" + section + "] in response",
				Command: fmt.Sprintf("UID FETCH %v BODY.PEEK[%v]", uid, section),
			}
		}
		h := parseHeader(raw)
		var header imap.Header
		fields := h.Fields()
		for fields.Next() {
			header = append(header, imap.HeaderField{
				Key:   fields.Key(),
				Value: c.options.decodeText(fields.Value()),
			})
		}
		return header, nil
	})
	header, _ := v.(imap.Header)
	return header, err
}
