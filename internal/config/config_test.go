package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7667", cfg.Server.ListenAddress)
	assert.Equal(t, 4, cfg.Game.Width)
	assert.Equal(t, 4, cfg.Game.Height)
	assert.Equal(t, "classic", cfg.Game.Deck)
	assert.Equal(t, 1000, cfg.Game.PauseMs)
	assert.Equal(t, "decks", cfg.Decks.Dir)
	assert.False(t, cfg.Stats.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7667", cfg.Server.ListenAddress)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_address: ":9000"
game:
  width: 6
  height: 5
  deck: "animals"
  pause_ms: 500
stats:
  enabled: true
  dsn: "postgres://localhost/memory"
logging:
  level: "debug"
  format: "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
	assert.Equal(t, 6, cfg.Game.Width)
	assert.Equal(t, 5, cfg.Game.Height)
	assert.Equal(t, "animals", cfg.Game.Deck)
	assert.Equal(t, 500, cfg.Game.PauseMs)
	assert.True(t, cfg.Stats.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// unset sections keep their defaults
	assert.Equal(t, "decks", cfg.Decks.Dir)
}

func TestLoadRejectsOddCellCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
game:
  width: 3
  height: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
