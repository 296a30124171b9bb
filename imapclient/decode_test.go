package imapclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/internal/imapwire"
)

const bodyStructureLine = `* 1 FETCH (UID 7 BODYSTRUCTURE (` +
	`("TEXT" "PLAIN" ("CHARSET" "UTF-8") NIL NIL "7BIT" 25 1 NIL NIL NIL NIL)` +
	`("MESSAGE" "RFC822" NIL NIL NIL "7BIT" 800 ` +
	`(NIL "Fwd: report" (("Bob" NIL "bob" "example.org")) NIL NIL (("Alice" NIL "alice" "example.org")(NIL NIL "carol" "example.org")) NIL NIL NIL "<1@example.org>") ` +
	`(("TEXT" "PLAIN" ("CHARSET" "US-ASCII") NIL NIL "QUOTED-PRINTABLE" 10 1)("TEXT" "HTML" ("CHARSET" "US-ASCII") NIL NIL "7BIT" 20 1) "ALTERNATIVE") 30)` +
	`("APPLICATION" "PDF" ("NAME" "cv.pdf") NIL NIL "BASE64" 4000 NIL ("ATTACHMENT" ("FILENAME" "=?UTF-8?Q?r=C3=A9sum=C3=A9.pdf?=" "SIZE" "2900")) NIL NIL)` +
	` "MIXED" ("BOUNDARY" "xyz") NIL NIL NIL))`

func TestParseBodyStructure(t *testing.T) {
	items, ok := parseFetchItems(imapwire.ParseLine(bodyStructureLine))
	require.True(t, ok)
	list := findFetchItem(items, "BODYSTRUCTURE")
	require.True(t, isList(list))

	options := &Options{}
	bs := parseBodyStructure(list, options.decodeText)
	require.NotNil(t, bs)
	assert.Equal(t, "", bs.Part)
	assert.Equal(t, "multipart/mixed", bs.MediaType())
	assert.Equal(t, "xyz", bs.Params["boundary"])
	require.Len(t, bs.Children, 3)

	text := bs.Find("1")
	require.NotNil(t, text)
	assert.Equal(t, "text/plain", text.MediaType())
	assert.Equal(t, "utf-8", text.Charset())
	assert.Equal(t, "7bit", text.Encoding)
	assert.EqualValues(t, 25, text.Size)
	assert.EqualValues(t, 1, text.Lines)

	msg := bs.Find("2")
	require.NotNil(t, msg)
	assert.Equal(t, "message/rfc822", msg.MediaType())
	assert.EqualValues(t, 30, msg.Lines)
	require.NotNil(t, msg.Envelope)
	assert.Equal(t, "Fwd: report", msg.Envelope.Subject)
	assert.Equal(t, `"Bob" bob@example.org`, msg.Envelope.From)
	assert.Equal(t, `"Alice" alice@example.org, carol@example.org`, msg.Envelope.To)
	assert.Equal(t, "<1@example.org>", msg.Envelope.MessageID)

	alt := msg.Children
	require.Len(t, alt, 1)
	assert.Equal(t, "multipart/alternative", alt[0].MediaType())
	assert.Equal(t, "2.TEXT", alt[0].Part)
	html := bs.Find("2.2")
	require.NotNil(t, html)
	assert.Equal(t, "text/html", html.MediaType())
	assert.Equal(t, "quoted-printable", bs.Find("2.1").Encoding)

	att := bs.Find("3")
	require.NotNil(t, att)
	assert.Equal(t, "application/pdf", att.MediaType())
	assert.Equal(t, "attachment", att.Disposition)
	assert.Equal(t, "résumé.pdf", att.Filename)
	assert.Equal(t, "2900", att.AttachmentSize)
	assert.Equal(t, "cv.pdf", att.Params["name"])
}

func TestParseBodyStructure_singlePart(t *testing.T) {
	list := imapwire.ParseLine(`("TEXT" "PLAIN" ("CHARSET" "ISO-8859-1") NIL NIL "QUOTED-PRINTABLE" 1315 42 NIL NIL ("en" "fr") NIL)`)
	bs := parseBodyStructure(list, nil)
	require.NotNil(t, bs)
	assert.Equal(t, "1", bs.Part)
	assert.Equal(t, "iso-8859-1", bs.Charset())
	assert.EqualValues(t, 42, bs.Lines)
	assert.Equal(t, "en,fr", bs.Language)
	assert.Empty(t, bs.Children)
}

func TestParseFetchItems(t *testing.T) {
	line := imapwire.ParseLine(`* 3 FETCH (UID 9 FLAGS (\Seen \Answered) BODY[HEADER.FIELDS (DATE)] "Date: today" BODY[1]<0> "abc" RFC822.SIZE 42)`)
	items, ok := parseFetchItems(line)
	require.True(t, ok)

	want := []struct {
		name, section string
	}{
		{"UID", ""},
		{"FLAGS", ""},
		{"BODY", "HEADER.FIELDS (DATE)"},
		{"BODY", "1"},
		{"RFC822.SIZE", ""},
	}
	require.Len(t, items, len(want))
	for i, w := range want {
		if items[i].name != w.name || items[i].section != w.section {
			t.Errorf("item %v = %v[%v], want %v[%v]", i, items[i].name, items[i].section, w.name, w.section)
		}
	}
	assert.Equal(t, "9", nstring(items[0].value))
	assert.Len(t, items[1].value, 4)
	assert.Equal(t, "Date: today", nstring(items[2].value))
	assert.Equal(t, "abc", nstring(items[3].value))
	assert.EqualValues(t, 42, number(items[4].value))

	if _, ok := parseFetchItems(imapwire.ParseLine("* 3 EXPUNGE")); ok {
		t.Errorf("parseFetchItems(EXPUNGE) = true, want false")
	}
}

func TestApplySummaryHeaders(t *testing.T) {
	c := &Client{}
	h := parseHeader("Subject: =?ISO-8859-1?Q?Caf=E9?=\r\nContent-Type: TEXT/HTML; Charset=\"UTF-8\"\r\nX-Priority: 5 (Lowest)\r\n")

	var msg imap.MessageSummary
	c.applySummaryHeaders(&msg, h)
	assert.Equal(t, "Café", msg.Subject)
	assert.Equal(t, "text/html", msg.ContentType)
	assert.Equal(t, "utf-8", msg.Charset)
	assert.Equal(t, 5, msg.XPriority)
}
