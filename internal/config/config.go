// Package config loads the BlueMemory configuration from a YAML file with
// sensible defaults for local play.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full configuration tree.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Decks   DecksConfig   `mapstructure:"decks"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig configures the session listener.
type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// GameConfig configures the board of a hosted game.
type GameConfig struct {
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Deck    string `mapstructure:"deck"`
	PauseMs int    `mapstructure:"pause_ms"`
}

// DecksConfig configures deck storage and the download source.
type DecksConfig struct {
	Dir         string `mapstructure:"dir"`
	DownloadURL string `mapstructure:"download_url"`
}

// StatsConfig configures the optional Postgres stats recorder.
type StatsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// LoggingConfig configures log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen_address", ":7667")
	v.SetDefault("game.width", 4)
	v.SetDefault("game.height", 4)
	v.SetDefault("game.deck", "classic")
	v.SetDefault("game.pause_ms", 1000)
	v.SetDefault("decks.dir", "decks")
	v.SetDefault("decks.download_url", "http://www.weird-webdesign.de/memory/")
	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.dsn", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Game.Width*cfg.Game.Height%2 != 0 {
		return nil, fmt.Errorf("board %dx%d has an odd number of cells", cfg.Game.Width, cfg.Game.Height)
	}

	return &cfg, nil
}
