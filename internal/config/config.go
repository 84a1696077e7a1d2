package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultScanDays      = 3
	defaultOracleModel   = "gpt-4o-mini"
	defaultOracleTimeout = 45
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Store    StoreConfig  `yaml:"store"`
	Accounts []Account    `yaml:"accounts"`
	Oracle   OracleConfig `yaml:"oracle"`
	Scan     ScanConfig   `yaml:"scan,omitempty"`
	Notify   NotifyConfig `yaml:"notify,omitempty"`
}

// StoreConfig locates the tracking CSV and the scan history database.
type StoreConfig struct {
	CSVPath     string `yaml:"csv_path"`
	HistoryPath string `yaml:"history_path,omitempty"`
}

// Account holds IMAP settings for one monitored mailbox.
type Account struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"` // App password, not the main password
	Server   string `yaml:"server"`   // e.g. "imap.gmail.com"
	Port     int    `yaml:"port"`     // e.g. 993
	Folder   string `yaml:"folder"`   // default "INBOX"
}

// OracleConfig holds the chat-completion endpoint settings for email
// classification.
type OracleConfig struct {
	APIKey     string `yaml:"api_key,omitempty"` // falls back to OPENAI_API_KEY
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ScanConfig controls the reconciliation pass.
type ScanConfig struct {
	Days   int  `yaml:"days"` // trailing search window
	DryRun bool `yaml:"dry_run,omitempty"`
}

// NotifyConfig controls the optional post-scan digest email.
type NotifyConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Provider string     `yaml:"provider"` // "smtp", "resend", "sendgrid"
	From     string     `yaml:"from"`
	To       string     `yaml:"to"`
	APIKey   string     `yaml:"api_key,omitempty"` // resend/sendgrid
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".jobtrail", "config.yaml")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.CSVPath == "" {
		c.Store.CSVPath = "applications.csv"
	}
	if c.Store.HistoryPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			c.Store.HistoryPath = "jobtrail_history.db"
		} else {
			c.Store.HistoryPath = filepath.Join(home, ".jobtrail", "history.db")
		}
	}
	if c.Scan.Days == 0 {
		c.Scan.Days = defaultScanDays
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = defaultOracleModel
	}
	if c.Oracle.TimeoutSec == 0 {
		c.Oracle.TimeoutSec = defaultOracleTimeout
	}
	if c.Oracle.APIKey == "" {
		c.Oracle.APIKey = os.Getenv("JOBTRAIL_OPENAI_API_KEY")
	}
	if c.Oracle.APIKey == "" {
		c.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	for i := range c.Accounts {
		if c.Accounts[i].Folder == "" {
			c.Accounts[i].Folder = "INBOX"
		}
		if c.Accounts[i].Server == "" {
			c.Accounts[i].Server = "imap.gmail.com"
		}
		if c.Accounts[i].Port == 0 {
			c.Accounts[i].Port = 993
		}
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Store.CSVPath == "" {
		return fmt.Errorf("store: csv_path is required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("accounts: at least one mail account is required")
	}
	for i, a := range c.Accounts {
		if a.Email == "" {
			return fmt.Errorf("accounts[%d]: email address is required", i)
		}
		if a.Password == "" {
			return fmt.Errorf("accounts[%d]: password (app password) is required", i)
		}
		if a.Server == "" {
			return fmt.Errorf("accounts[%d]: IMAP server is required", i)
		}
		if a.Port == 0 {
			return fmt.Errorf("accounts[%d]: IMAP port is required", i)
		}
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle: api_key is required (or set OPENAI_API_KEY)")
	}
	return nil
}

// ValidateNotify validates digest settings; only called when notification is
// enabled.
func (c *Config) ValidateNotify() error {
	if !c.Notify.Enabled {
		return fmt.Errorf("notify: digest is not enabled in config")
	}
	if c.Notify.From == "" || c.Notify.To == "" {
		return fmt.Errorf("notify: from and to addresses are required")
	}
	switch c.Notify.Provider {
	case "smtp":
		if c.Notify.SMTP.Host == "" {
			return fmt.Errorf("notify.smtp: host is required")
		}
		if c.Notify.SMTP.Port == 0 {
			return fmt.Errorf("notify.smtp: port is required")
		}
	case "resend", "sendgrid":
		if c.Notify.APIKey == "" {
			return fmt.Errorf("notify: api_key is required for %s", c.Notify.Provider)
		}
	default:
		return fmt.Errorf("notify: unknown provider %q (smtp, resend, sendgrid)", c.Notify.Provider)
	}
	return nil
}
