//go:build linux

package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// X11Source mirrors EWMH desktops and client windows.
type X11Source struct {
	conn   *x11.Connection
	logger *slog.Logger
	// known is only touched on the X event loop goroutine once Watch runs.
	known map[xproto.Window]bool
}

var _ Source = (*X11Source)(nil)

// NewX11Source opens a connection to display ("" means $DISPLAY).
func NewX11Source(display string, logger *slog.Logger) (*X11Source, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &X11Source{
		conn:   conn,
		logger: logger.With("component", "x11"),
		known:  make(map[xproto.Window]bool),
	}, nil
}

// Close closes the underlying X11 connection.
func (s *X11Source) Close() error {
	if s != nil && s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *X11Source) Desktops() ([]Desktop, error) {
	count, err := s.conn.GetDesktopCount()
	if err != nil {
		return nil, err
	}
	names := s.conn.GetDesktopNames(count)
	out := make([]Desktop, count)
	for i := range out {
		out[i] = Desktop{Index: i, Name: names[i]}
	}
	return out, nil
}

func (s *X11Source) Windows() ([]Window, error) {
	clients, err := s.conn.ClientList()
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	out := make([]Window, 0, len(clients))
	for _, win := range clients {
		out = append(out, s.window(win))
	}
	return out, nil
}

func (s *X11Source) window(win xproto.Window) Window {
	desktop, err := s.conn.GetWindowDesktop(uint32(win))
	if err != nil {
		desktop = AllDesktops
	}
	return Window{
		ID:      WindowID(win),
		AppID:   s.conn.WindowAppID(win),
		Title:   s.conn.WindowTitle(win),
		Desktop: desktop,
	}
}

func (s *X11Source) SetWindowDesktop(id WindowID, desktop int) error {
	return s.conn.SetWindowDesktop(uint32(id), desktop)
}

// Watch follows root window properties for the client list and desktops,
// and each client's properties for title, class and desktop changes.
func (s *X11Source) Watch(ctx context.Context, emit func(Event)) error {
	root := s.conn.Root
	err := s.conn.WatchProperties(root, func(_ xproto.Window, atom string) {
		switch atom {
		case "_NET_CLIENT_LIST":
			s.syncClients(emit)
		case "_NET_NUMBER_OF_DESKTOPS", "_NET_DESKTOP_NAMES":
			desktops, err := s.Desktops()
			if err != nil {
				s.logger.Warn("failed to read desktops", "error", err)
				return
			}
			emit(Event{Kind: DesktopsChanged, Desktops: desktops})
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch root window: %w", err)
	}

	// Root changes are watched from here on; the client list read after
	// that point covers windows mapped or closed since the caller's
	// snapshot.
	desktops, err := s.Desktops()
	if err != nil {
		return fmt.Errorf("failed to read desktops: %w", err)
	}
	clients, err := s.conn.ClientList()
	if err != nil {
		return fmt.Errorf("failed to get client list: %w", err)
	}
	windows := make([]Window, 0, len(clients))
	for _, win := range clients {
		s.track(win, emit)
		windows = append(windows, s.window(win))
	}
	emit(Event{Kind: Synced, Desktops: desktops, Windows: windows})

	go func() {
		<-ctx.Done()
		s.conn.Quit()
	}()
	s.conn.EventLoop()
	return nil
}

func (s *X11Source) track(win xproto.Window, emit func(Event)) {
	s.known[win] = true
	err := s.conn.WatchProperties(win, func(win xproto.Window, atom string) {
		switch atom {
		case "_NET_WM_NAME", "WM_NAME", "WM_CLASS", "_NET_WM_DESKTOP":
			emit(Event{Kind: WindowChanged, Window: s.window(win)})
		}
	})
	if err != nil {
		s.logger.Debug("cannot watch window", "window", win, "error", err)
	}
}

func (s *X11Source) syncClients(emit func(Event)) {
	clients, err := s.conn.ClientList()
	if err != nil {
		s.logger.Warn("failed to get client list", "error", err)
		return
	}
	current := make(map[xproto.Window]bool, len(clients))
	for _, win := range clients {
		current[win] = true
		if !s.known[win] {
			s.track(win, emit)
			emit(Event{Kind: WindowAdded, Window: s.window(win)})
		}
	}
	for win := range s.known {
		if !current[win] {
			delete(s.known, win)
			s.conn.Unwatch(win)
			emit(Event{Kind: WindowRemoved, Window: Window{ID: WindowID(win)}})
		}
	}
}
