package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// isolate points the user config at an empty directory and clears the
// SYNCIGNORE_* variables the tests use.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, key := range []string{"ROOT", "DEBOUNCE", "APPLY_MODE", "LOG_LEVEL", "IGNORE_SUFFIXES", "RECONCILE", "CACHE_SIZE", "FORCE_POLLING"} {
		t.Setenv("SYNCIGNORE_"+key, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults are applied and valid
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{".gitignore", ".dropboxignore"}, cfg.Watch.IgnoreSuffixes)
	assert.Equal(t, []string{".dropbox.cache/"}, cfg.Watch.Exclude)
	assert.Equal(t, 200*time.Millisecond, cfg.DebounceDuration())
	assert.Equal(t, 5*time.Second, cfg.PollIntervalDuration())
	assert.Equal(t, 1000, cfg.Watch.EventBufferSize)
	assert.False(t, cfg.Watch.ForcePolling)
	assert.Equal(t, int64(1<<20), cfg.Rules.MaxFileSize)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeoutDuration())
	assert.Equal(t, 2, cfg.Rules.ReadRetries)
	assert.Equal(t, 4096, cfg.Resolver.CacheSize)
	assert.Equal(t, ApplyXattr, cfg.Apply.Mode)
	assert.True(t, cfg.Apply.Reconcile)
	assert.True(t, cfg.Apply.Initial)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectFile_OverridesOnlyGivenKeys(t *testing.T) {
	// Given: a project file setting two keys
	isolate(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".syncignore.yaml"), `
watch:
  debounce: 50ms
apply:
  reconcile: false
`)

	// When
	cfg, err := Load(root, "")

	// Then: those keys change, the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.DebounceDuration())
	assert.False(t, cfg.Apply.Reconcile)
	assert.True(t, cfg.Apply.Initial)
	assert.Equal(t, "5s", cfg.Watch.PollInterval)
	assert.Equal(t, []string{".gitignore", ".dropboxignore"}, cfg.Watch.IgnoreSuffixes)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".syncignore.yml"), "resolver:\n  cache_size: 7\n")

	cfg, err := Load(root, "")

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Resolver.CacheSize)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".syncignore.yaml"), "resolver:\n  cache_size: 1\n")
	writeFile(t, filepath.Join(root, ".syncignore.yml"), "resolver:\n  cache_size: 2\n")

	cfg, err := Load(root, "")

	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Resolver.CacheSize)
}

func TestLoad_Layering(t *testing.T) {
	// Given: user, project and explicit files plus an env override
	xdg := isolate(t)
	root := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "custom.yaml")

	writeFile(t, filepath.Join(xdg, "syncignore", "config.yaml"), `
logging:
  level: warn
resolver:
  cache_size: 10
watch:
  debounce: 1s
apply:
  mode: log
`)
	writeFile(t, filepath.Join(root, ".syncignore.yaml"), `
resolver:
  cache_size: 20
watch:
  debounce: 2s
`)
	writeFile(t, explicit, `
watch:
  debounce: 3s
`)
	t.Setenv("SYNCIGNORE_APPLY_MODE", "none")

	// When
	cfg, err := Load(root, explicit)

	// Then: each layer wins over the previous one
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Resolver.CacheSize)
	assert.Equal(t, 3*time.Second, cfg.DebounceDuration())
	assert.Equal(t, ApplyNone, cfg.Apply.Mode)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		project  string
		explicit bool
		env      map[string]string
		wantCode string
	}{
		{name: "invalid yaml", project: "watch: [unclosed", wantCode: syerrors.ErrCodeConfigInvalid},
		{name: "unknown key", project: "watch:\n  debounse: 1s\n", wantCode: syerrors.ErrCodeConfigInvalid},
		{name: "wrong type", project: "resolver:\n  cache_size: many\n", wantCode: syerrors.ErrCodeConfigInvalid},
		{name: "invalid value", project: "apply:\n  mode: paint\n", wantCode: syerrors.ErrCodeConfigInvalid},
		{name: "missing explicit file", explicit: true, wantCode: syerrors.ErrCodeConfigNotFound},
		{name: "bad env int", env: map[string]string{"SYNCIGNORE_CACHE_SIZE": "lots"}, wantCode: syerrors.ErrCodeConfigInvalid},
		{name: "bad env bool", env: map[string]string{"SYNCIGNORE_FORCE_POLLING": "sometimes"}, wantCode: syerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			root := t.TempDir()
			if tt.project != "" {
				writeFile(t, filepath.Join(root, ".syncignore.yaml"), tt.project)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			explicit := ""
			if tt.explicit {
				explicit = filepath.Join(root, "missing.yaml")
			}

			cfg, err := Load(root, explicit)

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Equal(t, tt.wantCode, syerrors.GetCode(err))
		})
	}
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "syncignore", "config.yaml"), "{{{")

	_, err := Load("", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.yaml")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".syncignore.yaml"), "")

	cfg, err := Load(root, "")

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestApplyEnv(t *testing.T) {
	// Given: a full set of overrides
	env := map[string]string{
		"SYNCIGNORE_ROOT":              "/data/Dropbox",
		"SYNCIGNORE_IGNORE_SUFFIXES":   ".gitignore, .syncignore ,",
		"SYNCIGNORE_EXCLUDE":           ".cache/",
		"SYNCIGNORE_DEBOUNCE":          "75ms",
		"SYNCIGNORE_POLL_INTERVAL":     "1s",
		"SYNCIGNORE_EVENT_BUFFER_SIZE": "10",
		"SYNCIGNORE_FORCE_POLLING":     "true",
		"SYNCIGNORE_MAX_FILE_SIZE":     "4096",
		"SYNCIGNORE_READ_TIMEOUT":      "500ms",
		"SYNCIGNORE_READ_RETRIES":      "0",
		"SYNCIGNORE_CACHE_SIZE":        "0",
		"SYNCIGNORE_APPLY_MODE":        "log",
		"SYNCIGNORE_RECONCILE":         "false",
		"SYNCIGNORE_INITIAL_APPLY":     "0",
		"SYNCIGNORE_LOG_LEVEL":         "debug",
		"SYNCIGNORE_LOG_FILE":          "/tmp/s.log",
		"SYNCIGNORE_LOG_FORMAT":        "json",
		"SYNCIGNORE_UNRELATED":         "x",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := NewConfig()

	// When
	require.NoError(t, cfg.ApplyEnv(lookup))

	// Then
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/data/Dropbox", cfg.Watch.Root)
	assert.Equal(t, []string{".gitignore", ".syncignore"}, cfg.Watch.IgnoreSuffixes)
	assert.Equal(t, []string{".cache/"}, cfg.Watch.Exclude)
	assert.Equal(t, 75*time.Millisecond, cfg.DebounceDuration())
	assert.Equal(t, time.Second, cfg.PollIntervalDuration())
	assert.Equal(t, 10, cfg.Watch.EventBufferSize)
	assert.True(t, cfg.Watch.ForcePolling)
	assert.Equal(t, int64(4096), cfg.Rules.MaxFileSize)
	assert.Equal(t, 500*time.Millisecond, cfg.ReadTimeoutDuration())
	assert.Equal(t, 0, cfg.Rules.ReadRetries)
	assert.Equal(t, 0, cfg.Resolver.CacheSize)
	assert.Equal(t, ApplyLog, cfg.Apply.Mode)
	assert.False(t, cfg.Apply.Reconcile)
	assert.False(t, cfg.Apply.Initial)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/s.log", cfg.Logging.File)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyEnv_EmptyValueDoesNotOverride(t *testing.T) {
	cfg := NewConfig()

	err := cfg.ApplyEnv(func(string) (string, bool) { return "  ", true })

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no suffixes", func(c *Config) { c.Watch.IgnoreSuffixes = nil }, "ignore_suffixes"},
		{"suffix with slash", func(c *Config) { c.Watch.IgnoreSuffixes = []string{"a/.gitignore"} }, "ignore_suffixes"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, "watch.debounce"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = "-1s" }, "watch.debounce"},
		{"zero poll interval", func(c *Config) { c.Watch.PollInterval = "0s" }, "poll_interval"},
		{"negative buffer", func(c *Config) { c.Watch.EventBufferSize = -1 }, "event_buffer_size"},
		{"zero max file size", func(c *Config) { c.Rules.MaxFileSize = 0 }, "max_file_size"},
		{"bad read timeout", func(c *Config) { c.Rules.ReadTimeout = "" }, "read_timeout"},
		{"negative retries", func(c *Config) { c.Rules.ReadRetries = -1 }, "read_retries"},
		{"negative cache", func(c *Config) { c.Resolver.CacheSize = -1 }, "cache_size"},
		{"bad mode", func(c *Config) { c.Apply.Mode = "tag" }, "apply.mode"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("zero debounce is allowed", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Watch.Debounce = "0s"
		assert.NoError(t, cfg.Validate())
	})
}

func TestGetUserConfigPath(t *testing.T) {
	t.Run("respects XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		assert.Equal(t, filepath.Join("/custom/config", "syncignore", "config.yaml"), GetUserConfigPath())
		assert.Equal(t, filepath.Join("/custom/config", "syncignore"), GetUserConfigDir())
	})

	t.Run("defaults to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "syncignore", "config.yaml"), GetUserConfigPath())
	})
}

func TestUserConfigExists(t *testing.T) {
	xdg := isolate(t)
	assert.False(t, UserConfigExists())

	writeFile(t, filepath.Join(xdg, "syncignore", "config.yaml"), "version: 1\n")
	assert.True(t, UserConfigExists())
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	assert.Empty(t, FindProjectConfig(root))
	assert.Empty(t, FindProjectConfig(""))

	// A directory with the config name does not count.
	require.NoError(t, os.Mkdir(filepath.Join(root, ".syncignore.yaml"), 0o755))
	assert.Empty(t, FindProjectConfig(root))

	writeFile(t, filepath.Join(root, ".syncignore.yml"), "version: 1\n")
	assert.Equal(t, filepath.Join(root, ".syncignore.yml"), FindProjectConfig(root))
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	// Given: a customised config
	cfg := NewConfig()
	cfg.Watch.Root = "/data/Dropbox"
	cfg.Apply.Mode = ApplyLog
	cfg.Apply.Reconcile = false
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	// When: it is written and loaded back
	require.NoError(t, cfg.WriteYAML(path))
	loaded := NewConfig()
	require.NoError(t, loaded.LoadYAML(path))

	// Then
	assert.Equal(t, cfg, loaded)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mode: log")
}
