// Command hmimap polls IMAP accounts and logs the first page of a mailbox.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/jasonmunro/hm-imap"
	"github.com/jasonmunro/hm-imap/imapcache"
	"github.com/jasonmunro/hm-imap/imapcache/sqlstore"
	"github.com/jasonmunro/hm-imap/imapclient"
)

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(w io.Writer, loglevel string) log.Logger {
	logger := log.NewJSONLogger(log.NewSyncWriter(w))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

func main() {
	configFlag := flag.String("config", "hmimap.yaml", "Provide path to configuration file in YAML or TOML format.")
	envFlag := flag.String("env", ".env", "Provide path to an optional file of environment variables.")
	loglevelFlag := flag.String("loglevel", "", "This flag sets the default logging level, overriding the config file.")
	debugFlag := flag.Bool("debug", false, "Write the raw IMAP traffic to stderr.")
	flag.Parse()

	if err := loadEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load environment file: %v\n", err)
		os.Exit(1)
	}

	conf, err := LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	loglevel := conf.LogLevel
	if *loglevelFlag != "" {
		loglevel = *loglevelFlag
	}
	logger := initLogger(os.Stderr, loglevel)

	for i := range conf.Accounts {
		if err := conf.Accounts[i].ResolvePassword(); err != nil {
			level.Error(logger).Log("msg", "missing credentials", "err", err)
			os.Exit(1)
		}
	}

	var store *sqlstore.Store
	if conf.CacheDB != "" {
		store, err = sqlstore.Open(conf.CacheDB)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open cache database", "path", conf.CacheDB, "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	var counters *cacheCounters
	if conf.MetricsAddr != "" {
		counters = newCacheCounters()
		go runPromHTTP(logger, conf.MetricsAddr)
	}

	var debug io.Writer
	if *debugFlag {
		debug = os.Stderr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i := range conf.Accounts {
		acct := &conf.Accounts[i]
		p := &poller{
			account: acct,
			logger:  log.With(logger, "account", acct.Name),
			store:   store,
			metrics: counters.forAccount(acct.Name),
			debug:   debug,
		}
		g.Go(func() error {
			return p.run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		level.Error(logger).Log("msg", "polling failed", "err", err)
		stop()
		if store != nil {
			store.Close()
		}
		os.Exit(2)
	}
}

// poller reads the first page of a mailbox of one account.
type poller struct {
	account *Account
	logger  log.Logger
	store   *sqlstore.Store
	metrics *imapcache.Metrics
	debug   io.Writer
}

func (p *poller) run(ctx context.Context) error {
	acct := p.account
	if err := ctx.Err(); err != nil {
		return err
	}
	cache := imapcache.New(&imapcache.Options{Logger: p.logger, Metrics: p.metrics})
	p.restore(ctx, cache)

	host, _, err := net.SplitHostPort(acct.Address)
	if err != nil {
		host = acct.Address
	}
	options := &imapclient.Options{
		Logger:                p.logger,
		DebugWriter:           p.debug,
		TLSConfig:             &tls.Config{ServerName: host},
		MaxRead:               acct.MaxRead,
		SortSpeedup:           acct.SortSpeedup,
		Cache:                 cache,
		ReadOnly:              acct.ReadOnly,
		BlacklistedExtensions: acct.Blacklisted(),
		ID: map[string]string{
			"name": "hmimap",
		},
	}

	var c *imapclient.Client
	if acct.TLS {
		c, err = imapclient.DialTLS(acct.Address, options)
	} else {
		c, err = imapclient.Dial(acct.Address, options)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", acct.Name, err)
	}
	defer c.Close()

	if acct.StartTLS {
		if err := c.StartTLS(nil); err != nil {
			return fmt.Errorf("%s: STARTTLS: %w", acct.Name, err)
		}
	}

	if c.State() == imap.ConnStateNotAuthenticated {
		if err := p.login(c); err != nil {
			return fmt.Errorf("%s: %w", acct.Name, err)
		}
	}
	level.Debug(p.logger).Log("msg", "authenticated", "caps", strings.Join(capNames(c.Caps()), " "))

	if c.Caps().Has(imap.CapID) {
		if server, err := c.ID(nil); err != nil {
			level.Warn(p.logger).Log("msg", "ID failed", "err", err)
		} else {
			level.Debug(p.logger).Log("msg", "server identified", "name", server["name"], "version", server["version"])
		}
	}
	if _, err := c.Enable(); err != nil {
		level.Warn(p.logger).Log("msg", "ENABLE failed", "err", err)
	}
	if c.Caps().Has(imap.CapCompressDeflate) {
		if err := c.Compress(); err != nil {
			return fmt.Errorf("%s: COMPRESS: %w", acct.Name, err)
		}
	}

	mailboxes, err := c.ListMailboxes(nil)
	if err != nil {
		return fmt.Errorf("%s: LIST: %w", acct.Name, err)
	}
	level.Info(p.logger).Log("msg", "listed mailboxes", "count", len(mailboxes))

	total, page, err := c.MailboxPage(acct.Mailbox, &imapclient.PageOptions{
		SortOptions: imapclient.SortOptions{Key: acct.SortKey, Reverse: true},
		Limit:       acct.PageSize,
	})
	if err != nil {
		return fmt.Errorf("%s: %s: %w", acct.Name, acct.Mailbox, err)
	}
	level.Info(p.logger).Log("msg", "mailbox page", "mailbox", acct.Mailbox, "total", total, "shown", len(page))
	for _, msg := range page {
		level.Info(p.logger).Log(
			"uid", msg.UID,
			"date", msg.Date,
			"from", msg.From,
			"subject", msg.Subject,
			"seen", msg.HasFlag(imap.FlagSeen),
			"size", msg.Size,
		)
	}

	if err := c.Logout(); err != nil {
		level.Warn(p.logger).Log("msg", "LOGOUT failed", "err", err)
	}
	p.save(ctx, cache)
	return nil
}

func (p *poller) login(c *imapclient.Client) error {
	acct := p.account
	if acct.Auth == "plain" {
		return c.Authenticate(sasl.NewPlainClient("", acct.Username, acct.Password))
	}
	return c.Login(acct.Username, acct.Password)
}

// restore loads the cache saved by a previous run. Failures only cost a
// cold cache.
func (p *poller) restore(ctx context.Context, cache *imapcache.Cache) {
	if p.store == nil {
		return
	}
	data, err := p.store.Get(ctx, p.account.Name)
	if err != nil {
		level.Warn(p.logger).Log("msg", "failed to read saved cache", "err", err)
		return
	}
	if data == nil {
		return
	}
	if err := cache.Load(data); err != nil {
		level.Warn(p.logger).Log("msg", "dropping unreadable saved cache", "err", err)
		return
	}
	level.Debug(p.logger).Log("msg", "restored cache", "entries", cache.Len())
}

func (p *poller) save(ctx context.Context, cache *imapcache.Cache) {
	if p.store == nil {
		return
	}
	data, err := cache.Dump(true)
	if err != nil {
		level.Warn(p.logger).Log("msg", "failed to serialize cache", "err", err)
		return
	}
	if err := p.store.Put(ctx, p.account.Name, data); err != nil {
		level.Warn(p.logger).Log("msg", "failed to save cache", "err", err)
	}
}

func capNames(caps imap.CapSet) []string {
	names := make([]string, 0, len(caps))
	for c := range caps {
		names = append(names, string(c))
	}
	return names
}
