// Package daemon runs the protocol server and keeps its workspaces and
// toplevels in step with a window-system source.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/wsinterop/internal/config"
	"github.com/1broseidon/wsinterop/internal/interop"
	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/platform"
	"github.com/1broseidon/wsinterop/internal/runtimepath"
	"github.com/1broseidon/wsinterop/internal/toplevel"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

// Options configures a Server.
type Options struct {
	Config *config.Config
	// ConfigPath enables hot reload of log level and policy when set.
	ConfigPath string
	Source     platform.Source
	Logger     *slog.Logger
	// Level is adjusted on reload. Nil disables log level changes.
	Level *slog.LevelVar
}

// Server owns the display and every protocol global.
type Server struct {
	cfg        *config.Config
	configPath string
	source     platform.Source
	logger     *slog.Logger
	level      *slog.LevelVar

	display    *ipc.Display
	loop       *ipc.Loop
	socket     *ipc.Server
	workspaces *workspace.Manager
	toplevels  *toplevel.List
	interop    *interop.Manager
	sync       *StateSynchronizer
	policy     *Policy
}

// New builds the protocol globals. Nothing is served until Run.
func New(opts Options) (*Server, error) {
	if opts.Source == nil {
		return nil, errors.New("daemon: no window source")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	socketPath, err := runtimepath.SocketPath(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("resolve socket path: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		logger:     logger,
		level:      opts.Level,
	}
	s.display = ipc.NewDisplay(ipc.Options{
		Logger:              logger.With("component", "ipc"),
		MaxObjectsPerClient: cfg.Limits.MaxObjectsPerClient,
	})
	s.loop = ipc.NewLoop(0)
	s.socket = ipc.NewServer(socketPath, s.display, s.loop, cfg.Limits.OutboundQueue, logger.With("component", "socket"))
	s.workspaces = workspace.NewManager(s.display, logger)
	s.toplevels = toplevel.NewList(s.display, logger)
	s.interop = interop.NewManager(s.display, cfg.Protocol.InteropVersion, resolvers(s.workspaces, s.toplevels), logger)
	s.sync = NewStateSynchronizer(SyncDeps{
		Workspaces: s.workspaces,
		Toplevels:  s.toplevels,
		Interop:    s.interop,
		Logger:     logger.With("component", "sync"),
	})
	s.policy = NewPolicy(s.source, s.sync, cfg.Policy.AllowClientRequests, logger.With("component", "policy"))
	s.sync.SetPolicy(s.policy)
	return s, nil
}

func resolvers(ws *workspace.Manager, tl *toplevel.List) interop.Resolvers {
	return interop.Resolvers{
		Toplevel: func(r *ipc.Resource) (interop.Toplevel, bool) {
			t, ok := tl.FromResource(r)
			if !ok {
				return nil, false
			}
			return t, true
		},
		Workspace: func(r *ipc.Resource) (interop.Workspace, bool) {
			w, ok := ws.FromResource(r)
			if !ok {
				return nil, false
			}
			return w, true
		},
		Context: ws.ContextOf,
	}
}

// SocketPath returns the path clients connect to.
func (s *Server) SocketPath() string { return s.socket.SocketPath() }

// Run serves clients until ctx is cancelled or the source fails, then
// destroys the display so every client sees its objects go away.
func (s *Server) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	snap, err := TakeSnapshot(s.source)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	s.loop.Call(func() { s.sync.Resync(snap.Desktops, snap.Windows) })

	if err := s.socket.Start(); err != nil {
		s.loop.Call(s.display.Destroy)
		return fmt.Errorf("failed to start socket server: %w", err)
	}
	s.logger.Info("daemon started",
		"socket", s.socket.SocketPath(),
		"workspaces", len(snap.Desktops),
		"windows", len(snap.Windows))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		watchErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.source.Watch(runCtx, s.post); err != nil && runCtx.Err() == nil {
			watchErr = fmt.Errorf("window source: %w", err)
			cancel()
		}
	}()

	if s.cfg.ReconcileInterval > 0 {
		rec := NewReconciler(ReconcilerConfig{
			Interval: s.cfg.ReconcileInterval,
			Logger:   s.logger.With("component", "reconciler"),
		}, s.source, s.resync)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Run(runCtx)
		}()
	}

	if s.configPath != "" {
		watcher, err := NewConfigWatcher(s.configPath, s.reload, s.logger.With("component", "config"))
		if err != nil {
			s.logger.Warn("config hot reload disabled", "error", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				watcher.Run(runCtx)
			}()
		}
	}

	<-runCtx.Done()
	wg.Wait()

	s.logger.Info("daemon stopping")
	s.loop.Call(s.display.Destroy)
	s.socket.Stop()
	return watchErr
}

// post hands a source event to the loop.
func (s *Server) post(ev platform.Event) {
	s.loop.Post(func() {
		s.sync.Apply(ev)
		s.display.Reap()
	})
}

func (s *Server) resync(snap Snapshot) {
	s.loop.Post(func() {
		s.sync.Resync(snap.Desktops, snap.Windows)
		s.display.Reap()
	})
}

// reload applies the settings that can change without a restart.
func (s *Server) reload(cfg *config.Config) {
	if s.level != nil {
		s.level.Set(cfg.SlogLevel())
	}
	allow := cfg.Policy.AllowClientRequests
	s.loop.Post(func() { s.policy.SetAllow(allow) })
}

// Do runs fn on the loop and waits for it. It returns false once the
// server has stopped.
func (s *Server) Do(fn func()) bool {
	return s.loop.Call(fn)
}

// Synchronizer exposes the view model. Only use it from Do.
func (s *Server) Synchronizer() *StateSynchronizer { return s.sync }
