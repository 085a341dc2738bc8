// Command playferrousd is the server entrypoint (spec.md §6): it wires
// together every component (C1-C10) and the persistence/directory
// collaborators, then serves presentation connections until signalled to
// stop.
//
// Deliberate deviation from the teacher's cmd/*-service/main.go: no CLI
// flags. spec.md §6 names a single fixed configuration path; there is
// nothing here for a flag to select between.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playferrous/playferrous/internal/connection"
	"github.com/playferrous/playferrous/internal/directory"
	"github.com/playferrous/playferrous/internal/gamesession"
	"github.com/playferrous/playferrous/internal/launcher"
	"github.com/playferrous/playferrous/internal/presentation"
	"github.com/playferrous/playferrous/internal/proposal"
	"github.com/playferrous/playferrous/internal/store"
	"github.com/playferrous/playferrous/pkg/config"
	"github.com/playferrous/playferrous/pkg/logging"
	"github.com/playferrous/playferrous/pkg/metrics"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const configPath = "./playferrous.toml"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playferrousd: load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := logging.NewLogger("playferrousd", cfg.Logging)

	metricsRegistry := metrics.NewRegistry("playferrousd", version, buildTime, gitCommit, logger)
	go func() {
		if err := metricsRegistry.StartMetricsServer(metricsPort()); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persistence, err := store.Open(ctx, cfg.Database, logger.With("component", "store"))
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer persistence.Close()

	jwtSecret := os.Getenv("PLAYFERROUS_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("PLAYFERROUS_JWT_SECRET must be set")
		os.Exit(1)
	}
	userDirectory := directory.New(persistence, []byte(jwtSecret), ticketTTL, logger.With("component", "directory"))

	launcherRegistry := launcher.NewRegistry(cfg.Launchers, logger.With("component", "launcher"))
	proposalManager := proposal.NewManager(logger.With("component", "proposal"), metricsRegistry.Orchestration)
	gameManager := gamesession.NewManager(launcherRegistry, persistence, logger.With("component", "gamesession"), metricsRegistry.Orchestration)
	connRegistry := connection.NewRegistry(persistence, proposalManager, gameManager, logger.With("component", "connection"), metricsRegistry.Orchestration)

	servers, err := startPresentationServers(ctx, cfg.Presentations, connRegistry, userDirectory, logger)
	if err != nil {
		logger.Error("start presentation servers", "error", err)
		os.Exit(1)
	}
	if len(servers) == 0 {
		logger.Error("no presentation servers configured")
		os.Exit(1)
	}

	logger.Info("playferrousd started", "presentations", len(servers))

	<-ctx.Done()
	logger.Info("shutting down")

	for _, s := range servers {
		if err := s.Stop(); err != nil {
			logger.Error("stop presentation server", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsRegistry.StopMetricsServer(shutdownCtx); err != nil {
		logger.Error("stop metrics server", "error", err)
	}

	logger.Info("playferrousd stopped")
}

// ticketTTL bounds how long a directory-issued session ticket remains
// valid; spec.md names no specific figure, so this matches the SSH
// handshake's own expectation of completing promptly after Authenticate
// returns.
const ticketTTL = 5 * time.Minute

// metricsPort reads the metrics HTTP port from the environment rather
// than a CLI flag or playferrous.toml field, since pkg/config's
// Config has no [metrics] table (spec.md §6 does not name one) and this
// entrypoint takes no flags.
func metricsPort() int {
	if v := os.Getenv("PLAYFERROUS_METRICS_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			return port
		}
	}
	return 9090
}

func startPresentationServers(ctx context.Context, configs []config.PresentationConfig, registry *connection.Registry, dir *directory.Directory, logger *slog.Logger) ([]*presentation.Server, error) {
	var servers []*presentation.Server
	for _, pc := range configs {
		if pc.Type != "ssh" {
			logger.Warn("unsupported presentation type, skipping", "type", pc.Type)
			continue
		}

		srv, err := presentation.NewServer(presentation.Config{Port: pc.Port, KeyPath: pc.KeyPath}, registry, dir, logger.With("component", "presentation"))
		if err != nil {
			return nil, fmt.Errorf("ssh presentation on port %d: %w", pc.Port, err)
		}
		if err := srv.Start(ctx); err != nil {
			return nil, fmt.Errorf("ssh presentation on port %d: %w", pc.Port, err)
		}
		servers = append(servers, srv)
	}
	return servers, nil
}
