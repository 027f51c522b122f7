package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/wsinterop/internal/client"
	"github.com/1broseidon/wsinterop/internal/config"
	"github.com/1broseidon/wsinterop/internal/runtimepath"
)

const dialTimeout = 5 * time.Second

var (
	configFlag string
	socketFlag string
)

var rootCmd = &cobra.Command{
	Use:   "wsinterop",
	Short: "Share window-to-workspace membership between clients",
	Long: `wsinterop runs a small protocol daemon that mirrors the window
manager's desktops as workspaces and its windows as foreign toplevels,
and tells each client which toplevel is on which workspace.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default is $HOME/.config/wsinterop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "daemon socket (default from config, then $XDG_RUNTIME_DIR/wsinterop.sock)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig returns the effective config and the path it was looked up
// at. A missing file yields the defaults.
func loadConfig() (*config.Config, string, error) {
	path := configFlag
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return res.Config, path, nil
}

func socketPath() (string, error) {
	if socketFlag != "" {
		return socketFlag, nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	return runtimepath.SocketPath(cfg.SocketPath)
}

// dial connects to the running daemon.
func dial(ctx context.Context) (*client.Session, error) {
	path, err := socketPath()
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return client.Dial(dctx, path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
