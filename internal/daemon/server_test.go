package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/wsinterop/internal/config"
	"github.com/1broseidon/wsinterop/internal/platform"
)

func shortTempDir(t *testing.T) string {
	t.Helper()
	// unix socket paths are limited to ~100 bytes
	dir, err := os.MkdirTemp("", "wsi")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Source = config.SourceStatic
	cfg.SocketPath = filepath.Join(shortTempDir(t), "test.sock")
	cfg.ReconcileInterval = 20 * time.Millisecond
	return cfg
}

type runningServer struct {
	*Server
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, opts Options) *runningServer {
	t.Helper()
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningServer{Server: srv, cancel: cancel, done: make(chan error, 1)}
	go func() { rs.done <- srv.Run(ctx) }()
	t.Cleanup(func() { rs.stop(t) })

	waitFor(t, "socket", func() bool {
		_, err := os.Stat(srv.SocketPath())
		return err == nil
	})
	return rs
}

func (rs *runningServer) stop(t *testing.T) {
	t.Helper()
	rs.cancel()
	select {
	case err, ok := <-rs.done:
		if !ok {
			return
		}
		if err != nil {
			t.Errorf("run: %v", err)
		}
		close(rs.done)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (rs *runningServer) viewCount() int {
	n := -1
	rs.Do(func() { n = len(rs.Synchronizer().Views()) })
	return n
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Options{Config: config.DefaultConfig()}); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "loud"
	_, err := New(Options{Config: cfg, Source: platform.NewStaticSource([]string{"a"})})
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestServer_RunFollowsSource(t *testing.T) {
	src := platform.NewStaticSource([]string{"a", "b"})
	src.AddWindow(platform.Window{ID: 1, Title: "one"})
	rs := startServer(t, Options{Config: testConfig(t), Source: src})

	if n := rs.viewCount(); n != 1 {
		t.Fatalf("tracking %d windows after start, want 1", n)
	}

	src.AddWindow(platform.Window{ID: 2, Desktop: 1})
	waitFor(t, "second window", func() bool { return rs.viewCount() == 2 })

	src.RemoveWindow(1)
	waitFor(t, "window removal", func() bool { return rs.viewCount() == 1 })

	var names []string
	rs.Do(func() { names = workspaceNames(rs.Synchronizer().Workspaces()) })
	if !equalStrings(names, []string{"a", "b"}) {
		t.Errorf("workspaces = %v", names)
	}
}

// lateSource changes windows after the daemon's first read but before
// Watch registers, the window an X server leaves open at startup.
type lateSource struct {
	*platform.StaticSource
}

func (s lateSource) Watch(ctx context.Context, emit func(platform.Event)) error {
	s.AddWindow(platform.Window{ID: 5, Title: "late", Desktop: 1})
	s.RemoveWindow(1)
	return s.StaticSource.Watch(ctx, emit)
}

func TestServer_TracksChangesBeforeWatch(t *testing.T) {
	src := platform.NewStaticSource([]string{"a", "b"})
	src.AddWindow(platform.Window{ID: 1, Title: "early"})
	cfg := testConfig(t)
	cfg.ReconcileInterval = 0
	rs := startServer(t, Options{Config: cfg, Source: lateSource{src}})

	waitFor(t, "late window", func() bool {
		var late, early bool
		rs.Do(func() {
			_, late = rs.Synchronizer().View(5)
			_, early = rs.Synchronizer().View(1)
		})
		return late && !early
	})
}

func TestServer_StopRemovesSocket(t *testing.T) {
	rs := startServer(t, Options{Config: testConfig(t), Source: platform.NewStaticSource([]string{"a"})})
	path := rs.SocketPath()

	rs.stop(t)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket left behind: %v", err)
	}
	if rs.Do(func() {}) {
		t.Error("loop still running after stop")
	}
}

func TestServer_Reload(t *testing.T) {
	level := new(slog.LevelVar)
	rs := startServer(t, Options{Config: testConfig(t), Source: platform.NewStaticSource([]string{"a"}), Level: level})

	cfg := config.DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Policy.AllowClientRequests = false
	rs.reload(cfg)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	allowed := true
	rs.Do(func() { allowed = rs.policy.Allowed() })
	if allowed {
		t.Error("policy flag not applied")
	}
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got := make(chan *config.Config, 4)
	w, err := NewConfigWatcher(path, func(c *config.Config) { got <- c }, nil)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	w.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-got:
			if cfg.LogLevel == "warn" {
				return
			}
		case <-timeout:
			t.Fatal("no reload with the new level")
		}
	}
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "config.yaml")
	if _, err := NewConfigWatcher(path, func(*config.Config) {}, nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
