package launcher

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/playferrous/playferrous/internal/gameproc"
	"github.com/playferrous/playferrous/pkg/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessLauncherUnknownGameType(t *testing.T) {
	l := NewProcessLauncher(t.TempDir(), discardLogger())

	_, err := l.Launch("no-such-game", gameproc.GameSetup{})
	if !errors.Is(err, ErrUnknownGameType) {
		t.Fatalf("Launch() error = %v, want ErrUnknownGameType", err)
	}
}

func TestProcessLauncherResolvesPath(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "rock-paper-scissors"+exeSuffix())
	if err := os.WriteFile(exe, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	l := NewProcessLauncher(dir, discardLogger())

	// The file exists, so resolution proceeds past ErrUnknownGameType and
	// fails only because the stub script exits before shaking hands.
	_, err := l.Launch("rock-paper-scissors", gameproc.GameSetup{GameType: "rock-paper-scissors"})
	if errors.Is(err, ErrUnknownGameType) {
		t.Fatalf("Launch() unexpectedly reported unknown game type for an existing file")
	}
}

func TestRegistrySkipsUnrecognizedLauncherType(t *testing.T) {
	reg := NewRegistry([]config.LauncherConfig{{Type: "docker", Path: "/nope"}}, discardLogger())
	_, err := reg.Launch("anything", gameproc.GameSetup{})
	if !errors.Is(err, ErrUnknownGameType) {
		t.Fatalf("Launch() error = %v, want ErrUnknownGameType", err)
	}
}
