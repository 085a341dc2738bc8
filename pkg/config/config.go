// Package config loads the server's playferrous.toml, per spec.md §6:
// server configuration is a tagged launcher array and tagged presentation
// array, plus the ambient logging and database concerns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/playferrous/playferrous/pkg/logging"
)

// Config is the full parsed form of playferrous.toml.
type Config struct {
	Launchers     []LauncherConfig     `toml:"launcher"`
	Presentations []PresentationConfig `toml:"presentation"`
	Logging       logging.Config       `toml:"logging"`
	Database      DatabaseConfig       `toml:"database"`
}

// LauncherConfig is a tagged union over launcher implementations. Today
// the sole built-in tag is "process" (spec.md §4.4/§6).
type LauncherConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"` // used when Type == "process"
}

// PresentationConfig is a tagged union over presentation transports.
// Today the sole built-in tag is "ssh" (spec.md §6).
type PresentationConfig struct {
	Type    string `toml:"type"`
	Port    int    `toml:"port"`     // used when Type == "ssh"
	KeyPath string `toml:"key_path"` // used when Type == "ssh"
}

// DatabaseConfig configures the persistence pool. DSN is usually supplied
// via the DATABASE_URL environment variable rather than the file
// (spec.md §6), but an explicit value here takes precedence.
type DatabaseConfig struct {
	Driver         string `toml:"driver"` // postgres, sqlite3, mysql
	DSN            string `toml:"dsn"`
	MaxConnections int    `toml:"max_connections"`
}

const defaultMaxConnections = 5

// Load reads and parses the TOML file at path, expanding ${VAR}-style
// environment references in the raw text before decoding, matching the
// teacher's env-expansion convention in its own Load function.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = os.Getenv("DATABASE_URL")
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = defaultMaxConnections
	}

	return &cfg, nil
}

// LauncherByType returns the first launcher config tagged typ, if any.
func (c *Config) LauncherByType(typ string) (LauncherConfig, bool) {
	for _, l := range c.Launchers {
		if l.Type == typ {
			return l, true
		}
	}
	return LauncherConfig{}, false
}

// ParseDuration parses durationStr, returning fallback on a parse error,
// matching the teacher's lenient duration-parsing helper.
func ParseDuration(durationStr string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(durationStr); err == nil {
		return d
	}
	return fallback
}
