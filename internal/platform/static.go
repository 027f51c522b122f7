package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// StaticSource is an in-memory Source. It serves fixed desktops from
// configuration when no window system is available, and lets tests drive
// window changes directly.
type StaticSource struct {
	// emitMu orders emitted events; mu guards the state.
	emitMu   sync.Mutex
	mu       sync.Mutex
	desktops []Desktop
	windows  map[WindowID]Window
	emit     func(Event)
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source with one desktop per name.
func NewStaticSource(names []string) *StaticSource {
	s := &StaticSource{windows: make(map[WindowID]Window)}
	s.desktops = desktopsFromNames(names)
	return s
}

func desktopsFromNames(names []string) []Desktop {
	out := make([]Desktop, len(names))
	for i, n := range names {
		out[i] = Desktop{Index: i, Name: n}
	}
	return out
}

func (s *StaticSource) Desktops() ([]Desktop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Desktop(nil), s.desktops...), nil
}

func (s *StaticSource) Windows() ([]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Window, 0, len(s.windows))
	for _, w := range s.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetWindowDesktop moves the window immediately and reports the change.
func (s *StaticSource) SetWindowDesktop(id WindowID, desktop int) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	w, ok := s.windows[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("window %d: %w", id, ErrUnknownWindow)
	}
	if desktop != AllDesktops && (desktop < 0 || desktop >= len(s.desktops)) {
		s.mu.Unlock()
		return fmt.Errorf("desktop %d out of range", desktop)
	}
	w.Desktop = desktop
	s.windows[id] = w
	emit := s.emit
	s.mu.Unlock()

	if emit != nil {
		emit(Event{Kind: WindowChanged, Window: w})
	}
	return nil
}

// Watch registers emit, reports the current state and blocks until ctx
// is done.
func (s *StaticSource) Watch(ctx context.Context, emit func(Event)) error {
	s.emitMu.Lock()
	s.mu.Lock()
	s.emit = emit
	s.mu.Unlock()
	desktops, _ := s.Desktops()
	windows, _ := s.Windows()
	emit(Event{Kind: Synced, Desktops: desktops, Windows: windows})
	s.emitMu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.emit = nil
	s.mu.Unlock()
	return nil
}

func (s *StaticSource) Close() error { return nil }

// SetDesktops replaces the desktop list.
func (s *StaticSource) SetDesktops(names []string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.desktops = desktopsFromNames(names)
	desktops := append([]Desktop(nil), s.desktops...)
	emit := s.emit
	s.mu.Unlock()
	if emit != nil {
		emit(Event{Kind: DesktopsChanged, Desktops: desktops})
	}
}

// AddWindow adds or replaces a window.
func (s *StaticSource) AddWindow(w Window) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	_, existed := s.windows[w.ID]
	s.windows[w.ID] = w
	emit := s.emit
	s.mu.Unlock()
	if emit == nil {
		return
	}
	kind := WindowAdded
	if existed {
		kind = WindowChanged
	}
	emit(Event{Kind: kind, Window: w})
}

// RemoveWindow drops a window.
func (s *StaticSource) RemoveWindow(id WindowID) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	_, existed := s.windows[id]
	delete(s.windows, id)
	emit := s.emit
	s.mu.Unlock()
	if existed && emit != nil {
		emit(Event{Kind: WindowRemoved, Window: Window{ID: id}})
	}
}
