package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonmunro/hm-imap"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_yaml(t *testing.T) {
	path := writeFile(t, "hmimap.yaml", `
log_level: info
cache_db: /var/lib/hmimap/cache.db
accounts:
  - name: work
    address: imap.example.org:993
    tls: true
    username: jdoe
    password_env: WORK_PASSWORD
    sort_key: date
    blacklisted_extensions: [sort, qresync]
  - address: localhost:143
    username: test
    password: pass
    auth: PLAIN
`)

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, "/var/lib/hmimap/cache.db", conf.CacheDB)
	require.Len(t, conf.Accounts, 2)

	work := conf.Accounts[0]
	assert.Equal(t, "work", work.Name)
	assert.True(t, work.TLS)
	assert.Equal(t, "login", work.Auth)
	assert.Equal(t, "INBOX", work.Mailbox)
	assert.Equal(t, "DATE", work.SortKey)
	assert.Equal(t, defaultPageSize, work.PageSize)
	assert.Equal(t, []imap.Cap{imap.CapSort, imap.CapQResync}, work.Blacklisted())

	local := conf.Accounts[1]
	assert.Equal(t, "test@localhost:143", local.Name)
	assert.Equal(t, "plain", local.Auth)
	assert.Equal(t, "ARRIVAL", local.SortKey)
}

func TestLoadConfig_toml(t *testing.T) {
	path := writeFile(t, "hmimap.toml", `
log_level = "warn"
metrics_addr = ":9100"

[[accounts]]
name = "home"
address = "mail.example.com:143"
starttls = true
username = "me"
password = "secret"
mailbox = "Archive"
page_size = 50
`)

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", conf.MetricsAddr)
	require.Len(t, conf.Accounts, 1)
	assert.Equal(t, "home", conf.Accounts[0].Name)
	assert.True(t, conf.Accounts[0].StartTLS)
	assert.Equal(t, "Archive", conf.Accounts[0].Mailbox)
	assert.Equal(t, 50, conf.Accounts[0].PageSize)
}

func TestLoadConfig_invalid(t *testing.T) {
	tests := map[string]string{
		"no accounts":    "log_level: info\n",
		"no address":     "accounts:\n  - name: a\n",
		"duplicate":      "accounts:\n  - name: a\n    address: h:1\n  - name: a\n    address: h:2\n",
		"tls conflict":   "accounts:\n  - address: h:1\n    tls: true\n    starttls: true\n",
		"unknown auth":   "accounts:\n  - address: h:1\n    auth: xoauth2\n",
		"bad sort key":   "accounts:\n  - address: h:1\n    sort_key: color\n",
		"bad mailbox":    "accounts:\n  - address: h:1\n    mailbox: \"a\\nb\"\n",
		"malformed yaml": "accounts: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "hmimap.yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), ".env")))

	t.Setenv("HMIMAP_TEST_PASSWORD", "")
	os.Unsetenv("HMIMAP_TEST_PASSWORD")
	require.NoError(t, loadEnv(writeFile(t, ".env", "HMIMAP_TEST_PASSWORD=from-env\n")))

	acct := &Account{Name: "test", PasswordEnv: "HMIMAP_TEST_PASSWORD"}
	require.NoError(t, acct.ResolvePassword())
	assert.Equal(t, "from-env", acct.Password)
}

func TestResolvePassword_configured(t *testing.T) {
	acct := &Account{Name: "test", Password: "inline", PasswordEnv: "HMIMAP_UNUSED"}
	require.NoError(t, acct.ResolvePassword())
	assert.Equal(t, "inline", acct.Password)
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(&buf, "warn")
	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "ts")
}

func TestCacheCounters_discard(t *testing.T) {
	var counters *cacheCounters
	m := counters.forAccount("test")
	require.NotNil(t, m)
	m.Hits.Add(1)
}
