package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// Apply modes.
const (
	ApplyXattr = "xattr" // write the sync-ignore extended attribute
	ApplyLog   = "log"   // log decisions only (dry run)
	ApplyNone  = "none"  // keep the rule registry current, flag nothing
)

// ProjectConfigNames are looked up in the watch root, in order.
var ProjectConfigNames = []string{".syncignore.yaml", ".syncignore.yml"}

// Config represents the complete syncignore configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Rules    RulesConfig    `yaml:"rules" json:"rules"`
	Resolver ResolverConfig `yaml:"resolver" json:"resolver"`
	Apply    ApplyConfig    `yaml:"apply" json:"apply"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// WatchConfig configures the watched tree and the notification source.
type WatchConfig struct {
	// Root is the directory to watch. The command-line argument wins.
	Root string `yaml:"root" json:"root"`

	// IgnoreSuffixes are the file names treated as ignore files.
	IgnoreSuffixes []string `yaml:"ignore_suffixes" json:"ignore_suffixes"`

	// Exclude lists gitignore-style patterns that are never watched,
	// scanned or flagged.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Debounce is the event coalescing window (e.g. "200ms").
	Debounce string `yaml:"debounce" json:"debounce"`

	// PollInterval is the scan interval of the polling fallback.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	EventBufferSize int  `yaml:"event_buffer_size" json:"event_buffer_size"`
	ForcePolling    bool `yaml:"force_polling" json:"force_polling"`
}

// RulesConfig configures how ignore files are read.
type RulesConfig struct {
	MaxFileSize int64  `yaml:"max_file_size" json:"max_file_size"`
	ReadTimeout string `yaml:"read_timeout" json:"read_timeout"`
	ReadRetries int    `yaml:"read_retries" json:"read_retries"`
}

// ResolverConfig configures the decision engine.
type ResolverConfig struct {
	// CacheSize is the number of cached decisions; 0 disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ApplyConfig configures what happens with decisions.
type ApplyConfig struct {
	// Mode is xattr, log or none.
	Mode string `yaml:"mode" json:"mode"`

	// Reconcile re-flags a directory subtree when its rules change.
	Reconcile bool `yaml:"reconcile" json:"reconcile"`

	// Initial flags the whole tree once at startup.
	Initial bool `yaml:"initial" json:"initial"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Watch: WatchConfig{
			IgnoreSuffixes:  []string{".gitignore", ".dropboxignore"},
			Exclude:         []string{".dropbox.cache/"},
			Debounce:        "200ms",
			PollInterval:    "5s",
			EventBufferSize: 1000,
		},
		Rules: RulesConfig{
			MaxFileSize: 1 << 20,
			ReadTimeout: "2s",
			ReadRetries: 2,
		},
		Resolver: ResolverConfig{
			CacheSize: 4096,
		},
		Apply: ApplyConfig{
			Mode:      ApplyXattr,
			Reconcile: true,
			Initial:   true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/syncignore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/syncignore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "syncignore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "syncignore", "config.yaml")
	}
	return filepath.Join(home, ".config", "syncignore", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// FindProjectConfig returns the project configuration file in root, or ""
// if there is none.
func FindProjectConfig(root string) string {
	if root == "" {
		return ""
	}
	for _, name := range ProjectConfigNames {
		if p := filepath.Join(root, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/syncignore/config.yaml)
//  3. Project config (.syncignore.yaml in root), skipped when root is empty
//  4. Explicit file (--config), which must exist
//  5. Environment variables (SYNCIGNORE_*)
func Load(root, explicit string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.LoadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := FindProjectConfig(root); path != "" {
		if err := cfg.LoadYAML(path); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, syerrors.New(syerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicit), err)
		}
		if err := cfg.LoadYAML(explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML overlays the file at path onto c. Keys absent from the file keep
// their current values; unknown keys are rejected.
func (c *Config) LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return syerrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return syerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// ApplyEnv applies SYNCIGNORE_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup("SYNCIGNORE_" + key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	var errs []error
	parseInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("SYNCIGNORE_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	parseBool := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("SYNCIGNORE_%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	setList := func(key string, dst *[]string) {
		if v, ok := get(key); ok {
			*dst = splitList(v)
		}
	}

	setString("ROOT", &c.Watch.Root)
	setList("IGNORE_SUFFIXES", &c.Watch.IgnoreSuffixes)
	setList("EXCLUDE", &c.Watch.Exclude)
	setString("DEBOUNCE", &c.Watch.Debounce)
	setString("POLL_INTERVAL", &c.Watch.PollInterval)
	parseInt("EVENT_BUFFER_SIZE", &c.Watch.EventBufferSize)
	parseBool("FORCE_POLLING", &c.Watch.ForcePolling)

	if v, ok := get("MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SYNCIGNORE_MAX_FILE_SIZE: %w", err))
		} else {
			c.Rules.MaxFileSize = n
		}
	}
	setString("READ_TIMEOUT", &c.Rules.ReadTimeout)
	parseInt("READ_RETRIES", &c.Rules.ReadRetries)

	parseInt("CACHE_SIZE", &c.Resolver.CacheSize)

	setString("APPLY_MODE", &c.Apply.Mode)
	parseBool("RECONCILE", &c.Apply.Reconcile)
	parseBool("INITIAL_APPLY", &c.Apply.Initial)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)
	setString("LOG_FORMAT", &c.Logging.Format)

	if len(errs) > 0 {
		return syerrors.ConfigError("invalid environment override", errors.Join(errs...))
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return syerrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if len(c.Watch.IgnoreSuffixes) == 0 {
		return invalid("watch.ignore_suffixes must not be empty")
	}
	for _, s := range c.Watch.IgnoreSuffixes {
		if s == "" || strings.ContainsAny(s, `/\`) {
			return invalid("watch.ignore_suffixes entries must be file names, got %q", s)
		}
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
		return invalid("watch.debounce must be a non-negative duration, got %q", c.Watch.Debounce)
	}
	if d, err := time.ParseDuration(c.Watch.PollInterval); err != nil || d <= 0 {
		return invalid("watch.poll_interval must be a positive duration, got %q", c.Watch.PollInterval)
	}
	if c.Watch.EventBufferSize < 0 {
		return invalid("watch.event_buffer_size must be non-negative, got %d", c.Watch.EventBufferSize)
	}

	if c.Rules.MaxFileSize <= 0 {
		return invalid("rules.max_file_size must be positive, got %d", c.Rules.MaxFileSize)
	}
	if d, err := time.ParseDuration(c.Rules.ReadTimeout); err != nil || d <= 0 {
		return invalid("rules.read_timeout must be a positive duration, got %q", c.Rules.ReadTimeout)
	}
	if c.Rules.ReadRetries < 0 {
		return invalid("rules.read_retries must be non-negative, got %d", c.Rules.ReadRetries)
	}

	if c.Resolver.CacheSize < 0 {
		return invalid("resolver.cache_size must be non-negative, got %d", c.Resolver.CacheSize)
	}

	switch strings.ToLower(c.Apply.Mode) {
	case ApplyXattr, ApplyLog, ApplyNone:
	default:
		return invalid("apply.mode must be 'xattr', 'log' or 'none', got %q", c.Apply.Mode)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return invalid("logging.format must be 'text' or 'json', got %q", c.Logging.Format)
	}
	return nil
}

// DebounceDuration returns watch.debounce. Call Validate first.
func (c *Config) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// PollIntervalDuration returns watch.poll_interval. Call Validate first.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Watch.PollInterval)
	return d
}

// ReadTimeoutDuration returns rules.read_timeout. Call Validate first.
func (c *Config) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Rules.ReadTimeout)
	return d
}

// Marshal returns the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file, creating parent
// directories.
func (c *Config) WriteYAML(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
