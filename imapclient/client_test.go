package imapclient_test

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/imapclient"
)

// exchange is one command expected by the test server and its reply.
//
// Reply lines which don't start with "*" or "+" are prefixed with the tag
// of the command.
type exchange struct {
	cmd   string
	reply []string
}

type testServer struct {
	conn net.Conn
	done chan struct{}
}

func (srv *testServer) Close() error {
	err := srv.conn.Close()
	<-srv.done
	return err
}

// newTestClient connects a client to a server which sends greeting, then
// plays script. Commands past the end of the script fail the test.
func newTestClient(t *testing.T, options *imapclient.Options, greeting string, script []exchange) *imapclient.Client {
	clientConn, serverConn := net.Pipe()
	srv := &testServer{conn: serverConn, done: make(chan struct{})}

	go func() {
		defer close(srv.done)
		br := bufio.NewReader(serverConn)
		write := func(line string) error {
			_, err := io.WriteString(serverConn, line+"\r\n")
			return err
		}

		if err := write(greeting); err != nil {
			return
		}
		for i := 0; ; i++ {
			tag, cmd, err := readCommand(br, write)
			if err != nil {
				if i < len(script) {
					t.Errorf("connection closed before command %q", script[i].cmd)
				}
				return
			}
			if i >= len(script) {
				t.Errorf("unexpected command %q", cmd)
				write(tag + " BAD unexpected command")
				continue
			}
			ex := script[i]
			if cmd != ex.cmd {
				t.Errorf("command %v = %q, want %q", i, cmd, ex.cmd)
			}
			for _, line := range ex.reply {
				if !strings.HasPrefix(line, "*") && !strings.HasPrefix(line, "+") {
					line = tag + " " + line
				}
				if err := write(line); err != nil {
					return
				}
			}
		}
	}()

	client, err := imapclient.New(clientConn, options)
	if err != nil {
		srv.Close()
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		srv.Close()
	})
	return client
}

// readCommand reads a command, literals included. Synchronizing literals
// are accepted with a continuation request.
func readCommand(br *bufio.Reader, write func(string) error) (tag, cmd string, err error) {
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")
		sb.WriteString(line)

		start := strings.LastIndexByte(line, '{')
		if start < 0 || !strings.HasSuffix(line, "}") {
			break
		}
		sizeStr := strings.TrimSuffix(line[start+1:len(line)-1], "+")
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			break
		}
		if !strings.HasSuffix(line, "+}") {
			if err := write("+ Ready for literal data"); err != nil {
				return "", "", err
			}
		}
		lit := make([]byte, size)
		if _, err := io.ReadFull(br, lit); err != nil {
			return "", "", err
		}
		sb.WriteString("\r\n")
		sb.Write(lit)
	}

	tag, cmd, _ = strings.Cut(sb.String(), " ")
	return tag, cmd, nil
}

const preauthGreeting = "* PREAUTH [CAPABILITY IMAP4rev1] Logged in as testuser"

func preauth(caps ...string) string {
	return "* PREAUTH [CAPABILITY " + strings.Join(append([]string{"IMAP4rev1"}, caps...), " ") + "] Logged in"
}

// selectInbox is the exchange of Select("INBOX") for a mailbox of
// numMessages messages, UID validity 1 and next UID 10.
func selectInbox(numMessages int, args string) exchange {
	cmd := `SELECT "INBOX"`
	if args != "" {
		cmd += " " + args
	}
	return exchange{
		cmd: cmd,
		reply: []string{
			fmt.Sprintf("* %v EXISTS", numMessages),
			"* 0 RECENT",
			"* OK [UIDVALIDITY 1] UIDs valid",
			"* OK [UIDNEXT 10] Predicted next UID",
			"* OK [HIGHESTMODSEQ 100] Highest",
			`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`,
			"OK [READ-WRITE] SELECT completed",
		},
	}
}

// literal formats s as a literal.
func literal(s string) string {
	return fmt.Sprintf("{%v}\r\n%v", len(s), s)
}

func TestNew_greetingBye(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	go io.WriteString(serverConn, "* BYE Too many connections\r\n")

	_, err := imapclient.New(clientConn, nil)
	if !errors.Is(err, imap.ErrBye) {
		t.Errorf("New() = %v, want %v", err, imap.ErrBye)
	}
}

func TestNew_preauth(t *testing.T) {
	client := newTestClient(t, nil, preauth("SORT"), nil)
	if state := client.State(); state != imap.ConnStateAuthenticated {
		t.Errorf("State() = %v, want %v", state, imap.ConnStateAuthenticated)
	}
	if !client.Caps().Has(imap.CapSort) {
		t.Errorf("Caps() = %v, want SORT", client.Caps())
	}
}

func TestClient_Login(t *testing.T) {
	client := newTestClient(t, nil, "* OK [CAPABILITY IMAP4rev1 AUTH=PLAIN] ready", []exchange{
		{`LOGIN "jdoe" "s3cr\"et"`, []string{"OK [CAPABILITY IMAP4rev1 SORT] Logged in"}},
	})
	if err := client.Login("jdoe", `s3cr"et`); err != nil {
		t.Fatalf("Login() = %v", err)
	}
	assert.Equal(t, imap.ConnStateAuthenticated, client.State())
	assert.True(t, client.Caps().Has(imap.CapSort))

	history := client.History()
	require.Len(t, history, 1)
	assert.Equal(t, "LOGIN", history[0].Command, "credentials must not be recorded")
	assert.Equal(t, imap.StatusResponseTypeOK, history[0].Status)
}

func TestClient_ListMailboxes(t *testing.T) {
	cache := imapcache.New(nil)
	client := newTestClient(t, &imapclient.Options{Cache: cache}, preauthGreeting, []exchange{
		{`LIST "" "*"`, []string{
			`* LIST (\HasChildren) "." INBOX`,
			`* LIST (\HasNoChildren \Sent) "." INBOX.Sent`,
			`* LIST (\HasNoChildren) "." "Work.Projects"`,
			"OK LIST completed",
		}},
	})

	folders, err := client.ListMailboxes(nil)
	if err != nil {
		t.Fatalf("ListMailboxes() = %v", err)
	}
	assert.ElementsMatch(t, []string{"INBOX", "INBOX.Sent", "Work", "Work.Projects"}, folders.Names())

	sent := folders["INBOX.Sent"]
	require.NotNil(t, sent)
	assert.Equal(t, "INBOX", sent.Parent)
	assert.Equal(t, "Sent", sent.Basename)
	assert.Equal(t, ".", sent.Delim)
	assert.Equal(t, imap.MailboxAttrSent, sent.SpecialUse)
	assert.True(t, folders["INBOX"].HasKids)

	work := folders["Work"]
	require.NotNil(t, work)
	assert.True(t, work.Placeholder)
	assert.True(t, work.NoSelect)
	assert.True(t, work.HasKids)

	// Served from the cache, unaffected by changes to the first result
	sent.Basename = "changed"
	sent.Attrs[0] = imap.MailboxAttrNoSelect
	delete(folders, "Work")
	again, err := client.ListMailboxes(nil)
	if err != nil {
		t.Fatalf("ListMailboxes() = %v", err)
	}
	assert.Len(t, again, 4)
	assert.Equal(t, "Sent", again["INBOX.Sent"].Basename)
	assert.Equal(t, imap.MailboxAttrHasNoChildren, again["INBOX.Sent"].Attrs[0])
	history := client.History()
	require.Len(t, history, 2)
	assert.False(t, history[0].Cached)
	assert.True(t, history[1].Cached)
}

func TestClient_MessageStructure(t *testing.T) {
	cache := imapcache.New(nil)
	client := newTestClient(t, &imapclient.Options{Cache: cache}, preauthGreeting, []exchange{
		selectInbox(1, ""),
		{"UID FETCH 7 BODYSTRUCTURE", []string{
			`* 1 FETCH (UID 7 BODYSTRUCTURE (("TEXT" "PLAIN" ("CHARSET" "UTF-8") NIL NIL "7BIT" 25 1)` +
				`("TEXT" "HTML" ("CHARSET" "UTF-8") NIL NIL "7BIT" 80 2) "ALTERNATIVE"))`,
			"OK FETCH completed",
		}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}

	bs, err := client.MessageStructure(7)
	if err != nil {
		t.Fatalf("MessageStructure() = %v", err)
	}
	require.Len(t, bs.Children, 2)
	assert.Equal(t, "utf-8", bs.Children[0].Charset())

	bs.Children[0].Params["charset"] = "us-ascii"
	bs.Children = bs.Children[1:]

	// Served from the cache, unaffected by changes to the first result
	again, err := client.MessageStructure(7)
	if err != nil {
		t.Fatalf("MessageStructure() = %v", err)
	}
	require.Len(t, again.Children, 2)
	assert.Equal(t, "utf-8", again.Children[0].Charset())
	assert.True(t, client.History()[len(client.History())-1].Cached)
}

func TestClient_Select(t *testing.T) {
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		{`SELECT "INBOX"`, []string{
			"* 172 EXISTS",
			"* 1 RECENT",
			"* OK [UNSEEN 12] Message 12 is first unseen",
			"* OK [UIDVALIDITY 3857529045] UIDs valid",
			"* OK [UIDNEXT 4392] Predicted next UID",
			`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`,
			`* OK [PERMANENTFLAGS (\Deleted \Seen \*)] Limited`,
			"OK [READ-WRITE] SELECT completed",
		}},
	})

	state, err := client.Select("inbox")
	if err != nil {
		t.Fatalf("Select() = %v", err)
	}
	assert.Equal(t, "INBOX", state.Name)
	assert.EqualValues(t, 172, state.NumMessages)
	assert.EqualValues(t, 1, state.NumRecent)
	assert.EqualValues(t, 12, state.FirstUnseen)
	assert.EqualValues(t, 3857529045, state.UIDValidity)
	assert.EqualValues(t, 4392, state.UIDNext)
	assert.Len(t, state.Flags, 5)
	assert.Equal(t, []imap.Flag{imap.FlagDeleted, imap.FlagSeen, imap.FlagWildcard}, state.PermanentFlags)
	assert.False(t, state.ReadOnly)
	assert.Equal(t, imap.ConnStateSelected, client.State())
}

const summaryFetch = "UID FETCH 5 (FLAGS INTERNALDATE RFC822.SIZE BODY.PEEK[HEADER.FIELDS (SUBJECT FROM TO DATE CONTENT-TYPE X-PRIORITY)])"

const summaryHeader = "Subject: =?UTF-8?Q?Caf=C3=A9?=\r\n" +
	"From: Fred Foobar <foobar@example.org>\r\n" +
	"Date: Wed, 17 Jul 1996 02:23:25 -0700\r\n" +
	"Content-Type: text/plain; charset=ISO-8859-1\r\n" +
	"X-Priority: 1 (Highest)\r\n" +
	"\r\n"

func summaryReply(flags string) string {
	return `* 1 FETCH (UID 5 FLAGS (` + flags + `) INTERNALDATE "17-Jul-1996 02:44:25 -0700" RFC822.SIZE 4286 ` +
		"BODY[HEADER.FIELDS (SUBJECT FROM TO DATE CONTENT-TYPE X-PRIORITY)] " + literal(summaryHeader) + ")"
}

func TestClient_MessageList(t *testing.T) {
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		selectInbox(1, ""),
		{summaryFetch, []string{summaryReply(""), "OK FETCH completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}

	list, err := client.MessageList([]imap.UID{5})
	if err != nil {
		t.Fatalf("MessageList() = %v", err)
	}
	msg := list[5]
	require.NotNil(t, msg)
	assert.Equal(t, "Café", msg.Subject)
	assert.Equal(t, "Fred Foobar <foobar@example.org>", msg.From)
	assert.Equal(t, "17-Jul-1996 02:44:25 -0700", msg.InternalDate)
	assert.EqualValues(t, 4286, msg.Size)
	assert.Equal(t, "text/plain", msg.ContentType)
	assert.Equal(t, "iso-8859-1", msg.Charset)
	assert.Equal(t, 1, msg.XPriority)
	assert.Empty(t, msg.Flags)
}

// TestClient_repair checks that a flag change reported by a CONDSTORE
// server is applied to the cached results instead of dropping them.
func TestClient_repair(t *testing.T) {
	cache := imapcache.New(nil)
	client := newTestClient(t, &imapclient.Options{Cache: cache}, preauth("ENABLE", "CONDSTORE"), []exchange{
		{"ENABLE CONDSTORE", []string{"* ENABLED CONDSTORE", "OK Enabled"}},
		selectInbox(1, "(CONDSTORE)"),
		{summaryFetch, []string{summaryReply(""), "OK FETCH completed"}},
		{"UID SEARCH (ALL)", []string{"* SEARCH 5", "OK SEARCH completed"}},
		{"NOOP", []string{`* 1 FETCH (UID 5 FLAGS (\Seen) MODSEQ (11))`, "OK NOOP completed"}},
	})

	enabled, err := client.Enable()
	if err != nil {
		t.Fatalf("Enable() = %v", err)
	}
	assert.True(t, enabled.Has(imap.CapCondStore))
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if _, err := client.MessageList([]imap.UID{5}); err != nil {
		t.Fatalf("MessageList() = %v", err)
	}
	if _, err := client.Search("ALL", nil, nil); err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if _, err := client.Poll(); err != nil {
		t.Fatalf("Poll() = %v", err)
	}

	list, err := client.MessageList([]imap.UID{5})
	if err != nil {
		t.Fatalf("MessageList() = %v", err)
	}
	require.NotNil(t, list[5])
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, list[5].Flags)

	uids, err := client.Search("ALL", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	assert.Equal(t, imap.UIDList{5}, uids)

	history := client.History()
	require.True(t, len(history) >= 2)
	assert.True(t, history[len(history)-2].Cached)
	assert.True(t, history[len(history)-1].Cached)
}

// TestClient_unexplainedChange checks that a FETCH notification without a
// UID drops the cached results of the mailbox.
func TestClient_unexplainedChange(t *testing.T) {
	cache := imapcache.New(nil)
	client := newTestClient(t, &imapclient.Options{Cache: cache}, preauthGreeting, []exchange{
		selectInbox(3, ""),
		{"UID SEARCH (UNSEEN)", []string{"* SEARCH 4 5", "OK SEARCH completed"}},
		{"NOOP", []string{`* 2 FETCH (FLAGS (\Seen))`, "OK NOOP completed"}},
		{"UID SEARCH (UNSEEN)", []string{"* SEARCH 5", "OK SEARCH completed"}},
	})

	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	uids, err := client.Search("unseen", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	assert.Equal(t, imap.UIDList{4, 5}, uids)
	if _, err := client.Poll(); err != nil {
		t.Fatalf("Poll() = %v", err)
	}
	uids, err = client.Search("UNSEEN", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	assert.Equal(t, imap.UIDList{5}, uids)
}

func TestClient_Search_terms(t *testing.T) {
	client := newTestClient(t, &imapclient.Options{SearchCharset: "UTF-8"}, preauthGreeting, []exchange{
		selectInbox(3, ""),
		{`UID SEARCH CHARSET UTF-8 (UNDELETED) UID 1:4 SUBJECT "invoice"`, []string{
			"* SEARCH 2 4 (MODSEQ 917162500)",
			"OK SEARCH completed",
		}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	uids, err := client.Search("UNDELETED", []imap.UID{1, 2, 3, 4}, []imapclient.SearchTerm{{Field: "subject", Value: "invoice"}})
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	assert.Equal(t, imap.UIDList{2, 4}, uids)
}

func TestClient_Sort(t *testing.T) {
	client := newTestClient(t, &imapclient.Options{SortSpeedup: true}, preauth("SORT"), []exchange{
		selectInbox(3, ""),
		{"UID SORT (DATE) US-ASCII ALL", []string{"* SORT 5 3 4", "OK SORT completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	uids, err := client.Sort(&imapclient.SortOptions{Key: "date", Reverse: true})
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	assert.Equal(t, imap.UIDList{4, 3, 5}, uids)
}

func TestClient_SortByFetch(t *testing.T) {
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		selectInbox(3, ""),
		{"UID FETCH 1:* (FLAGS RFC822.SIZE)", []string{
			"* 1 FETCH (UID 3 FLAGS () RFC822.SIZE 300)",
			`* 2 FETCH (UID 4 FLAGS (\Seen) RFC822.SIZE 100)`,
			"* 3 FETCH (UID 7 FLAGS () RFC822.SIZE 25)",
			"OK FETCH completed",
		}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	uids, err := client.Sort(&imapclient.SortOptions{Key: "SIZE", Filter: "UNSEEN"})
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	assert.Equal(t, imap.UIDList{7, 3}, uids)
}

func TestClient_MailboxPage(t *testing.T) {
	client := newTestClient(t, nil, preauth("SORT"), []exchange{
		selectInbox(3, ""),
		{"UID SORT (ARRIVAL) US-ASCII ALL", []string{"* SORT 3 5 4", "OK SORT completed"}},
		{summaryFetch, []string{summaryReply(`\Flagged`), "OK FETCH completed"}},
	})

	total, page, err := client.MailboxPage("INBOX", &imapclient.PageOptions{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("MailboxPage() = %v", err)
	}
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, imap.UID(5), page[0].UID)
	assert.True(t, page[0].HasFlag(imap.FlagFlagged))
}

func TestClient_StartMessageStream(t *testing.T) {
	content := "line one\r\nline two\r\n"
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		selectInbox(1, ""),
		{"UID FETCH 5 BODY.PEEK[1]", []string{
			"* 1 FETCH (UID 5 BODY[1] " + literal(content) + ")",
			"OK FETCH completed",
		}},
		{"NOOP", []string{"OK NOOP completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}

	stream, size, err := client.StartMessageStream(5, "1")
	if err != nil {
		t.Fatalf("StartMessageStream() = %v", err)
	}
	assert.EqualValues(t, len(content), size)

	if _, err := client.Poll(); err == nil {
		t.Errorf("Poll() during a stream = nil, want an error")
	}

	var lines []string
	for {
		line, err := stream.ReadLine()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("ReadLine() = %v", err)
		}
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"line one\r\n", "line two\r\n"}, lines)

	if _, err := client.Poll(); err != nil {
		t.Errorf("Poll() after the stream = %v", err)
	}
}

func TestClient_StartMessageStream_malformed(t *testing.T) {
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		selectInbox(1, ""),
		{"UID FETCH 5 BODY.PEEK[1]", []string{"* 1 FETCH (UID 5 BODY[1] {x}"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}

	if _, _, err := client.StartMessageStream(5, "1"); !errors.Is(err, imap.ErrIncomplete) {
		t.Fatalf("StartMessageStream() = %v, want %v", err, imap.ErrIncomplete)
	}
	assert.Equal(t, imap.ConnStateLogout, client.State())

	// The rest of the response is never read as the reply to another command.
	if _, err := client.Poll(); err == nil {
		t.Errorf("Poll() after a broken stream = nil, want an error")
	}
}

func TestClient_validation(t *testing.T) {
	// Invalid arguments are refused before anything is sent: the server
	// fails the test on any command.
	client := newTestClient(t, nil, preauthGreeting, nil)

	var verr *imap.ValidationError
	if _, err := client.Select("INBOX\r\nA1 DELETE INBOX"); !errors.As(err, &verr) {
		t.Errorf("Select() = %v, want a validation error", err)
	}
	if _, err := client.Search("ALL) (", nil, nil); !errors.As(err, &verr) {
		t.Errorf("Search() = %v, want a validation error", err)
	}
	for _, field := range []string{"", "SUBJECT\x00", "FROM\tX", "HEADER[", "TO%"} {
		terms := []imapclient.SearchTerm{{Field: field, Value: "x"}}
		if _, err := client.Search("ALL", nil, terms); !errors.As(err, &verr) {
			t.Errorf("Search() with field %q = %v, want a validation error", field, err)
		}
	}
	if _, err := client.MessageContent(1, "1.a", nil); !errors.As(err, &verr) {
		t.Errorf("MessageContent() = %v, want a validation error", err)
	}
	if _, err := client.Sort(&imapclient.SortOptions{Key: "COLOR"}); !errors.As(err, &verr) {
		t.Errorf("Sort() = %v, want a validation error", err)
	}
	if err := client.MessageAction("PURGE", []imap.UID{1}, ""); !errors.As(err, &verr) {
		t.Errorf("MessageAction() = %v, want a validation error", err)
	}
}

func TestClient_MessageContent_truncated(t *testing.T) {
	body := strings.Repeat("x", 100000)
	client := newTestClient(t, &imapclient.Options{MaxRead: 1024}, preauthGreeting, []exchange{
		selectInbox(1, ""),
		{"UID FETCH 5 BODY.PEEK[]", []string{
			"* 1 FETCH (UID 5 BODY[] " + literal(body) + ")",
			"OK FETCH completed",
		}},
		{"NOOP", []string{"OK NOOP completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}

	content, err := client.MessageContent(5, "", nil)
	if !errors.Is(err, imap.ErrTruncated) {
		t.Fatalf("MessageContent() = %v, want %v", err, imap.ErrTruncated)
	}
	assert.Less(t, len(content), len(body))

	// The connection is still in sync
	if _, err := client.Poll(); err != nil {
		t.Errorf("Poll() = %v", err)
	}
}

// TestClient_truncatedNotifications checks that a truncated response does
// not leave stale results in the cache.
func TestClient_truncatedNotifications(t *testing.T) {
	body := strings.Repeat("x", 4096)
	cache := imapcache.New(nil)
	client := newTestClient(t, &imapclient.Options{MaxRead: 1024, Cache: cache}, preauthGreeting, []exchange{
		selectInbox(3, ""),
		{"UID SEARCH (ALL)", []string{"* SEARCH 4 5 6", "OK SEARCH completed"}},
		{"UID FETCH 5 BODY.PEEK[]", []string{
			"* 2 FETCH (UID 5 BODY[] " + literal(body) + ")",
			"* 2 EXPUNGE",
			"OK FETCH completed",
		}},
		{"UID SEARCH (ALL)", []string{"* SEARCH 4 6", "OK SEARCH completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if _, err := client.Search("ALL", nil, nil); err != nil {
		t.Fatalf("Search() = %v", err)
	}

	if _, err := client.MessageContent(5, "", nil); !errors.Is(err, imap.ErrTruncated) {
		t.Fatalf("MessageContent() = %v, want %v", err, imap.ErrTruncated)
	}
	assert.Equal(t, int64(2), client.Mailbox().NumMessages)

	uids, err := client.Search("ALL", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	assert.Equal(t, imap.UIDList{4, 6}, uids)
}

func TestClient_History(t *testing.T) {
	client := newTestClient(t, &imapclient.Options{MaxHistory: 2}, preauthGreeting, []exchange{
		{"NOOP", []string{"OK first"}},
		{"CAPABILITY", []string{"* CAPABILITY IMAP4rev1", "OK second"}},
		{"NOOP", []string{"NO third"}},
	})
	client.Poll()
	client.Capability()
	if _, err := client.Poll(); err == nil {
		t.Errorf("Poll() = nil, want an error")
	}

	history := client.History()
	require.Len(t, history, 2)
	assert.Equal(t, "CAPABILITY", history[0].Command)
	assert.Equal(t, "NOOP", history[1].Command)
	assert.Equal(t, imap.StatusResponseTypeNo, history[1].Status)
}

func TestClient_Append(t *testing.T) {
	msg := "From: jdoe@example.org\r\nSubject: hi\r\n\r\nHello\r\n"
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		{`APPEND "Drafts" (\Draft) ` + literal(msg), []string{"OK [APPENDUID 38505 3955] APPEND completed"}},
	})

	cmd, err := client.Append("Drafts", []imap.Flag{imap.FlagDraft}, int64(len(msg)))
	if err != nil {
		t.Fatalf("Append() = %v", err)
	}
	if _, err := io.WriteString(cmd, msg); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if err := cmd.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

func TestClient_MessageAction_moveFallback(t *testing.T) {
	client := newTestClient(t, nil, preauth("UIDPLUS"), []exchange{
		selectInbox(3, ""),
		{`UID COPY 5:6 "Archive"`, []string{"OK COPY completed"}},
		{`UID STORE 5:6 +FLAGS.SILENT (\Deleted)`, []string{"OK STORE completed"}},
		{"UID EXPUNGE 5:6", []string{"* 2 EXPUNGE", "* 2 EXPUNGE", "OK EXPUNGE completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if err := client.MessageAction(imapclient.ActionMove, []imap.UID{6, 5}, "Archive"); err != nil {
		t.Fatalf("MessageAction() = %v", err)
	}
	assert.EqualValues(t, 1, client.Mailbox().NumMessages)
}

func TestClient_MessageAction_flags(t *testing.T) {
	client := newTestClient(t, nil, preauthGreeting, []exchange{
		selectInbox(3, ""),
		{`UID STORE 1:3,7 +FLAGS (\Seen)`, []string{`* 1 FETCH (UID 1 FLAGS (\Seen))`, "OK STORE completed"}},
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if err := client.MessageAction(imapclient.ActionRead, []imap.UID{1, 2, 3, 7}, "ignored"); err != nil {
		t.Fatalf("MessageAction() = %v", err)
	}
}

func TestClient_readOnly(t *testing.T) {
	client := newTestClient(t, &imapclient.Options{ReadOnly: true}, preauthGreeting, []exchange{
		selectInbox(3, ""),
	})
	if _, err := client.Select("INBOX"); err != nil {
		t.Fatalf("Select() = %v", err)
	}
	if err := client.MessageAction(imapclient.ActionDelete, []imap.UID{1}, ""); !errors.Is(err, imap.ErrReadOnly) {
		t.Errorf("MessageAction() = %v, want %v", err, imap.ErrReadOnly)
	}
	if _, err := client.Append("INBOX", nil, 10); !errors.Is(err, imap.ErrReadOnly) {
		t.Errorf("Append() = %v, want %v", err, imap.ErrReadOnly)
	}
	if err := client.CreateMailbox("Work"); !errors.Is(err, imap.ErrReadOnly) {
		t.Errorf("CreateMailbox() = %v, want %v", err, imap.ErrReadOnly)
	}
}

func TestClient_Enable_unsupported(t *testing.T) {
	client := newTestClient(t, nil, preauthGreeting, nil)
	enabled, err := client.Enable()
	if err != nil {
		t.Fatalf("Enable() = %v", err)
	}
	assert.Empty(t, enabled)
}
