package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/mirrorme/config.yaml"

// Config holds all MirrorMe configuration.
type Config struct {
	Sync    SyncConfig    `yaml:"sync"`
	Capture CaptureConfig `yaml:"capture"`
	Storage StorageConfig `yaml:"storage"`
	Browser BrowserConfig `yaml:"browser"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
	Secrets SecretsConfig `yaml:"secrets"`
}

type SyncConfig struct {
	APIBase         string `yaml:"api_base"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	BatchSize       int    `yaml:"batch_size"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Compression     string `yaml:"compression"`
}

type CaptureConfig struct {
	QueueCapacity      int      `yaml:"queue_capacity"`
	UseDefaultDenylist bool     `yaml:"use_default_denylist"`
	DenylistDomains    []string `yaml:"denylist_domains"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type BrowserConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ControlURL         string `yaml:"control_url"`
	Bin                string `yaml:"bin"`
	Headless           bool   `yaml:"headless"`
	PollIntervalMillis int    `yaml:"poll_interval_millis"`
}

type DaemonConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxRequestSize int      `yaml:"max_request_size"`
	// AllowedOrigins are web origins allowed to call the control endpoint
	// besides extension pages.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

type SecretsConfig struct {
	KeyFile   string `yaml:"key_file"`
	TokenFile string `yaml:"token_file"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read, contains invalid YAML or
// fails validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Sync.APIBase == "" {
		problems = append(problems, "sync.api_base is required")
	}
	if c.Sync.IntervalMinutes <= 0 {
		problems = append(problems, "sync.interval_minutes must be positive")
	}
	if c.Sync.BatchSize <= 0 || c.Sync.BatchSize > 50 {
		problems = append(problems, "sync.batch_size must be between 1 and 50")
	}
	if c.Sync.TimeoutSeconds < 0 {
		problems = append(problems, "sync.timeout_seconds must not be negative")
	}
	switch c.Sync.Compression {
	case "", "none", "gzip", "zstd":
	default:
		problems = append(problems, fmt.Sprintf("sync.compression %q is not one of none, gzip, zstd", c.Sync.Compression))
	}
	if c.Capture.QueueCapacity <= 0 {
		problems = append(problems, "capture.queue_capacity must be positive")
	}
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		problems = append(problems, "daemon.port must be between 1 and 65535")
	}
	for _, o := range c.Daemon.AllowedOrigins {
		if o == "*" || o == "null" || !strings.Contains(o, "://") {
			problems = append(problems, fmt.Sprintf("daemon.allowed_origins entry %q must be a scheme://host origin", o))
		}
	}
	if c.Secrets.TokenFile == "" {
		problems = append(problems, "secrets.token_file is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// DatabasePath returns the absolute SQLite file path.
func (c *Config) DatabasePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// KeyPath returns the age identity path. Relative key files live under the
// storage directory.
func (c *Config) KeyPath() (string, error) {
	return c.underStorage(c.Secrets.KeyFile)
}

// TokenPath returns the control token path, resolved like KeyPath.
func (c *Config) TokenPath() (string, error) {
	return c.underStorage(c.Secrets.TokenFile)
}

func (c *Config) underStorage(name string) (string, error) {
	p, err := ExpandPath(name)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// DaemonAddr is the host:port the control server listens on.
func (c *Config) DaemonAddr() string {
	return net.JoinHostPort(c.Daemon.Host, strconv.Itoa(c.Daemon.Port))
}

// DaemonURL is the base URL clients use to reach the control server.
func (c *Config) DaemonURL() string {
	return "http://" + c.DaemonAddr()
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}

// SyncTimeout is zero when the transport default applies.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Sync.TimeoutSeconds) * time.Second
}

func (c *Config) BrowserPollInterval() time.Duration {
	if c.Browser.PollIntervalMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Browser.PollIntervalMillis) * time.Millisecond
}

// Denylist returns the configured domains, preceded by the curated defaults
// unless those are switched off.
func (c *Config) Denylist() []string {
	var out []string
	if c.Capture.UseDefaultDenylist {
		out = append(out, DefaultDenylistDomains()...)
	}
	return append(out, c.Capture.DenylistDomains...)
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
