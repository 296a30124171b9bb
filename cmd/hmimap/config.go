package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/jasonmunro/hm-imap"
)

const defaultPageSize = 20

// Config holds the settings of hmimap. It is read from YAML, or from TOML if
// the file name ends with ".toml".
type Config struct {
	LogLevel    string    `yaml:"log_level" toml:"log_level"`
	MetricsAddr string    `yaml:"metrics_addr" toml:"metrics_addr"`
	CacheDB     string    `yaml:"cache_db" toml:"cache_db"`
	Accounts    []Account `yaml:"accounts" toml:"accounts"`
}

// Account describes one IMAP account to poll.
type Account struct {
	Name     string `yaml:"name" toml:"name"`
	Address  string `yaml:"address" toml:"address"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	StartTLS bool   `yaml:"starttls" toml:"starttls"`
	// Auth is "login" or "plain".
	Auth        string `yaml:"auth" toml:"auth"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	PasswordEnv string `yaml:"password_env" toml:"password_env"`

	Mailbox     string   `yaml:"mailbox" toml:"mailbox"`
	PageSize    int      `yaml:"page_size" toml:"page_size"`
	SortKey     string   `yaml:"sort_key" toml:"sort_key"`
	ReadOnly    bool     `yaml:"read_only" toml:"read_only"`
	MaxRead     int64    `yaml:"max_read" toml:"max_read"`
	SortSpeedup bool     `yaml:"sort_speedup" toml:"sort_speedup"`
	Blacklist   []string `yaml:"blacklisted_extensions" toml:"blacklisted_extensions"`
}

// LoadConfig reads and checks the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	conf := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, conf); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %v", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %v", path, err)
		}
		if err := yaml.Unmarshal(data, conf); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %v", path, err)
		}
	}

	if len(conf.Accounts) == 0 {
		return nil, errors.New("config defines no account")
	}
	names := make(map[string]bool, len(conf.Accounts))
	for i := range conf.Accounts {
		acct := &conf.Accounts[i]
		if acct.Address == "" {
			return nil, fmt.Errorf("account %d: missing address", i)
		}
		if acct.Name == "" {
			acct.Name = acct.Username + "@" + acct.Address
		}
		if names[acct.Name] {
			return nil, fmt.Errorf("account '%s' is defined twice", acct.Name)
		}
		names[acct.Name] = true
		if acct.TLS && acct.StartTLS {
			return nil, fmt.Errorf("account '%s': tls and starttls are exclusive", acct.Name)
		}
		switch strings.ToLower(acct.Auth) {
		case "", "login":
			acct.Auth = "login"
		case "plain":
			acct.Auth = "plain"
		default:
			return nil, fmt.Errorf("account '%s': unknown auth method '%s'", acct.Name, acct.Auth)
		}
		if acct.Mailbox == "" {
			acct.Mailbox = "INBOX"
		}
		if err := imap.ValidateMailbox(acct.Mailbox); err != nil {
			return nil, fmt.Errorf("account '%s': %v", acct.Name, err)
		}
		if acct.SortKey == "" {
			acct.SortKey = "ARRIVAL"
		}
		acct.SortKey = strings.ToUpper(acct.SortKey)
		if err := imap.ValidateSortKey(acct.SortKey); err != nil {
			return nil, fmt.Errorf("account '%s': %v", acct.Name, err)
		}
		if acct.PageSize <= 0 {
			acct.PageSize = defaultPageSize
		}
	}
	return conf, nil
}

// Blacklisted returns the extensions to hide from the client.
func (acct *Account) Blacklisted() []imap.Cap {
	caps := make([]imap.Cap, len(acct.Blacklist))
	for i, name := range acct.Blacklist {
		caps[i] = imap.Cap(strings.ToUpper(name))
	}
	return caps
}

// loadEnv reads environment variables from the file at path, if it exists.
// Variables already set take precedence.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ResolvePassword fills in the account password from the environment, or
// from an interactive prompt if stdin is a terminal.
func (acct *Account) ResolvePassword() error {
	if acct.Password != "" {
		return nil
	}
	if acct.PasswordEnv != "" {
		acct.Password = os.Getenv(acct.PasswordEnv)
		if acct.Password != "" {
			return nil
		}
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("account '%s': no password configured", acct.Name)
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", acct.Name)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("account '%s': failed to read password: %v", acct.Name, err)
	}
	acct.Password = string(password)
	return nil
}
