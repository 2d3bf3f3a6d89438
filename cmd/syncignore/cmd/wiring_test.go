package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/syncignore/internal/config"
	"github.com/Aman-CERP/syncignore/internal/registry"
)

func TestWatcherOptions(t *testing.T) {
	// Given: the default config and a registry built from it
	cfg := config.NewConfig()
	cfg.Watch.Debounce = "50ms"
	require.NoError(t, cfg.Validate())
	reg, err := registry.New(t.TempDir(), registryOptions(cfg))
	require.NoError(t, err)

	// When
	opts := watcherOptions(cfg, reg)

	// Then: config values carry over and only ignore-file deletes are kept
	assert.Equal(t, 50*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, cfg.Watch.Exclude, opts.Exclude)
	require.NotNil(t, opts.KeepDeletes)
	assert.True(t, opts.KeepDeletes(filepath.Join(reg.Root(), "sub", ".gitignore")))
	assert.True(t, opts.KeepDeletes(filepath.Join(reg.Root(), ".dropboxignore")))
	assert.False(t, opts.KeepDeletes(filepath.Join(reg.Root(), "a.log")))
}
