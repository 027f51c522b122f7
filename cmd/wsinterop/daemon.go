package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/1broseidon/wsinterop/internal/config"
	"github.com/1broseidon/wsinterop/internal/daemon"
	"github.com/1broseidon/wsinterop/internal/platform"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the protocol daemon",
	Long: `Run the daemon in the foreground. It serves clients on a unix socket
until interrupted; changes to log_level and policy in the config file are
picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if socketFlag != "" {
		cfg.SocketPath = socketFlag
	}

	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	srv, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: path,
		Source:     source,
		Logger:     logger,
		Level:      level,
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return srv.Run(ctx)
}

func newSource(cfg *config.Config, logger *slog.Logger) (platform.Source, error) {
	switch cfg.Source {
	case config.SourceStatic:
		logger.Info("using static workspaces", "workspaces", cfg.StaticWorkspaces)
		return platform.NewStaticSource(cfg.StaticWorkspaces), nil
	case config.SourceX11:
		src, err := platform.NewX11Source(cfg.Display, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to display: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
