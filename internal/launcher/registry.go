// Package launcher implements the launcher registry (C4, spec.md §4.4): a
// configuration-driven set of launchers keyed by a tagged union. Today the
// sole built-in tag is "process", whose configuration is a directory path.
package launcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/playferrous/playferrous/internal/gameproc"
	"github.com/playferrous/playferrous/pkg/apperr"
	"github.com/playferrous/playferrous/pkg/config"
)

// ErrUnknownGameType is returned when resolving a game type whose
// executable does not exist under the configured launcher path.
var ErrUnknownGameType = fmt.Errorf("unknown-game-type")

// Launcher resolves a game type to a spawned subprocess driver.
type Launcher interface {
	Launch(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error)
}

// ProcessLauncher is the sole built-in launcher: it resolves a game type
// by joining its configured directory with <game_type><exe-suffix>.
type ProcessLauncher struct {
	dir string
	log *slog.Logger
}

// NewProcessLauncher constructs a ProcessLauncher rooted at dir.
func NewProcessLauncher(dir string, log *slog.Logger) *ProcessLauncher {
	return &ProcessLauncher{dir: dir, log: log}
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// Launch joins the launcher's directory with gameType and the
// platform-executable suffix; if the resulting file does not exist, it
// fails with ErrUnknownGameType (spec.md §4.4).
func (l *ProcessLauncher) Launch(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error) {
	path := filepath.Join(l.dir, gameType+exeSuffix())

	if _, err := os.Stat(path); err != nil {
		return nil, apperr.Wrapf(apperr.KindPresentation, "launcher: %s: %w", gameType, ErrUnknownGameType)
	}

	return gameproc.Launch(path, setup, l.log)
}

// Registry selects a Launcher implementation for a given game type by
// consulting the configured launchers in order.
type Registry struct {
	launchers []Launcher
}

// NewRegistry builds a Registry from the parsed launcher configs in
// playferrous.toml. Unrecognized launcher types are skipped.
func NewRegistry(configs []config.LauncherConfig, log *slog.Logger) *Registry {
	reg := &Registry{}
	for _, c := range configs {
		switch c.Type {
		case "process":
			reg.launchers = append(reg.launchers, NewProcessLauncher(c.Path, log))
		default:
			log.Warn("launcher: unrecognized launcher type, skipping", "type", c.Type)
		}
	}
	return reg
}

// Launch tries each configured launcher in order until one resolves
// gameType, returning ErrUnknownGameType if none do.
func (r *Registry) Launch(gameType string, setup gameproc.GameSetup) (*gameproc.Driver, error) {
	var lastErr error
	for _, l := range r.launchers {
		driver, err := l.Launch(gameType, setup)
		if err == nil {
			return driver, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = apperr.Wrapf(apperr.KindPresentation, "launcher: no launchers configured: %w", ErrUnknownGameType)
	}
	return nil, lastErr
}
