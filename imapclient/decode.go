package imapclient

import (
	"strconv"
	"strings"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

// textDecoder decodes header text such as RFC 2047 encoded words. A nil
// textDecoder leaves text unchanged.
type textDecoder func(s string) string

func (dec textDecoder) decode(s string) string {
	if dec == nil || s == "" {
		return s
	}
	return dec(s)
}

func isList(item []imapwire.Token) bool {
	return len(item) >= 2 && item[0].IsMarker('(')
}

// at returns items[i], or nil if out of range.
func at(items [][]imapwire.Token, i int) []imapwire.Token {
	if i < 0 || i >= len(items) {
		return nil
	}
	return items[i]
}

// nstring returns the string value of a single-token item, or an empty
// string for NIL, lists and missing items.
func nstring(item []imapwire.Token) string {
	if len(item) != 1 || item[0].Kind == imapwire.TokenMarker {
		return ""
	}
	return item[0].NString()
}

func number(item []imapwire.Token) int64 {
	n, err := strconv.ParseInt(nstring(item), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseBodyStructure parses the list following a BODYSTRUCTURE fetch item.
//
// The top-level multipart of a message has no part number and its children
// are numbered from 1. A single-part message is part 1.
func parseBodyStructure(list []imapwire.Token, dec textDecoder) *imap.BodyStructure {
	items := imapwire.SplitTopLevel(list)
	if len(items) == 0 {
		return nil
	}
	if isList(items[0]) {
		return parseMultipart(items, "", "1", dec)
	}
	return parseSinglePart(items, "1", dec)
}

func parseBody(list []imapwire.Token, part string, dec textDecoder) *imap.BodyStructure {
	items := imapwire.SplitTopLevel(list)
	if len(items) == 0 {
		return nil
	}
	if isList(items[0]) {
		return parseMultipart(items, part, imap.FirstChildPart(part), dec)
	}
	return parseSinglePart(items, part, dec)
}

// parseMultipart parses a multipart body:
//
//	1*body subtype [params disposition language location]
func parseMultipart(items [][]imapwire.Token, part, childBase string, dec textDecoder) *imap.BodyStructure {
	bs := &imap.BodyStructure{Part: part, Type: "multipart"}

	i := 0
	child := childBase
	for ; i < len(items) && isList(items[i]); i++ {
		if node := parseBody(items[i], child, dec); node != nil {
			bs.Children = append(bs.Children, node)
		}
		child = imap.IncrementPart(child)
	}

	bs.Subtype = strings.ToLower(nstring(at(items, i)))
	bs.Params = parseParams(at(items, i+1), dec)
	parseDisposition(bs, at(items, i+2), dec)
	bs.Language = parseLanguage(at(items, i+3))
	bs.Location = nstring(at(items, i+4))
	return bs
}

// notEmbedded lists message subtypes which do not carry an embedded
// message.
var notEmbedded = map[string]bool{
	"delivery-status":          true,
	"external-body":            true,
	"disposition-notification": true,
	"rfc822-headers":           true,
}

// parseSinglePart parses a non-multipart body:
//
//	type subtype params id description encoding size
//	  [lines] | [envelope body lines]
//	  [md5 disposition language location]
func parseSinglePart(items [][]imapwire.Token, part string, dec textDecoder) *imap.BodyStructure {
	bs := &imap.BodyStructure{
		Part:        part,
		Type:        strings.ToLower(nstring(at(items, 0))),
		Subtype:     strings.ToLower(nstring(at(items, 1))),
		Params:      parseParams(at(items, 2), dec),
		ID:          nstring(at(items, 3)),
		Description: dec.decode(nstring(at(items, 4))),
		Encoding:    strings.ToLower(nstring(at(items, 5))),
		Size:        number(at(items, 6)),
	}

	i := 7
	switch {
	case bs.Type == "message" && !notEmbedded[bs.Subtype] && isList(at(items, 7)) && isList(at(items, 8)):
		bs.Envelope = parseEnvelope(items[7], dec)
		inner := imapwire.SplitTopLevel(items[8])
		var body *imap.BodyStructure
		if len(inner) > 0 && isList(inner[0]) {
			body = parseMultipart(inner, part+".TEXT", imap.FirstChildPart(part), dec)
		} else if len(inner) > 0 {
			body = parseSinglePart(inner, imap.FirstChildPart(part), dec)
		}
		if body != nil {
			bs.Children = []*imap.BodyStructure{body}
		}
		bs.Lines = number(at(items, 9))
		i = 10
	case bs.Type == "text":
		bs.Lines = number(at(items, 7))
		i = 8
	}

	bs.MD5 = nstring(at(items, i))
	parseDisposition(bs, at(items, i+1), dec)
	bs.Language = parseLanguage(at(items, i+2))
	bs.Location = nstring(at(items, i+3))
	return bs
}

// parseParams parses a "(name value ...)" parameter list. Names are
// lower-cased, and so is the charset value.
func parseParams(item []imapwire.Token, dec textDecoder) map[string]string {
	if !isList(item) {
		return nil
	}
	fields := imapwire.SplitTopLevel(item)
	params := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		name := strings.ToLower(nstring(fields[i]))
		if name == "" {
			continue
		}
		value := nstring(fields[i+1])
		switch name {
		case "charset":
			value = strings.ToLower(value)
		case "name", "filename":
			value = dec.decode(value)
		}
		params[name] = value
	}
	return params
}

// parseDisposition parses a "(disposition (params))" list. The attachment
// parameters are only kept for attachments.
func parseDisposition(bs *imap.BodyStructure, item []imapwire.Token, dec textDecoder) {
	if !isList(item) {
		return
	}
	fields := imapwire.SplitTopLevel(item)
	bs.Disposition = strings.ToLower(nstring(at(fields, 0)))
	if bs.Disposition != "attachment" {
		return
	}
	params := parseParams(at(fields, 1), dec)
	bs.Filename = params["filename"]
	bs.AttachmentSize = params["size"]
	bs.CreationDate = params["creation-date"]
	bs.ModificationDate = params["modification-date"]
}

// parseLanguage parses a language item: NIL, a string or a list of
// strings, which are joined with commas.
func parseLanguage(item []imapwire.Token) string {
	if !isList(item) {
		return nstring(item)
	}
	var l []string
	for _, field := range imapwire.SplitTopLevel(item) {
		if s := nstring(field); s != "" {
			l = append(l, s)
		}
	}
	return strings.Join(l, ",")
}

// parseEnvelope parses an envelope list:
//
//	(date subject from sender reply-to to cc bcc in-reply-to message-id)
//
// Address lists are rendered as strings.
func parseEnvelope(list []imapwire.Token, dec textDecoder) *imap.Envelope {
	items := imapwire.SplitTopLevel(list)
	return &imap.Envelope{
		Date:      nstring(at(items, 0)),
		Subject:   dec.decode(nstring(at(items, 1))),
		From:      imap.FormatAddressList(parseAddressList(at(items, 2), dec)),
		Sender:    imap.FormatAddressList(parseAddressList(at(items, 3), dec)),
		ReplyTo:   imap.FormatAddressList(parseAddressList(at(items, 4), dec)),
		To:        imap.FormatAddressList(parseAddressList(at(items, 5), dec)),
		Cc:        imap.FormatAddressList(parseAddressList(at(items, 6), dec)),
		Bcc:       imap.FormatAddressList(parseAddressList(at(items, 7), dec)),
		InReplyTo: nstring(at(items, 8)),
		MessageID: nstring(at(items, 9)),
	}
}

// parseAddressList parses a list of (name adl mailbox host) addresses.
func parseAddressList(item []imapwire.Token, dec textDecoder) []imap.Address {
	if !isList(item) {
		return nil
	}
	var addrs []imap.Address
	for _, entry := range imapwire.SplitTopLevel(item) {
		fields := imapwire.SplitTopLevel(entry)
		if !isList(entry) || len(fields) < 4 {
			continue
		}
		addrs = append(addrs, imap.Address{
			Name:    dec.decode(nstring(fields[0])),
			Mailbox: nstring(fields[2]),
			Host:    nstring(fields[3]),
		})
	}
	return addrs
}
