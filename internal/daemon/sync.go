package daemon

import (
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/foreign"
	"github.com/1broseidon/wsinterop/internal/interop"
	"github.com/1broseidon/wsinterop/internal/platform"
	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/toplevel"
	"github.com/1broseidon/wsinterop/internal/view"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

// SyncDeps are the protocol objects the synchronizer publishes through.
type SyncDeps struct {
	Workspaces *workspace.Manager
	Toplevels  *toplevel.List
	Interop    *interop.Manager
	Logger     *slog.Logger
}

type trackedWindow struct {
	view    *view.View
	adapter *foreign.Toplevel
	desktop int
}

// StateSynchronizer mirrors the source's desktops and windows into
// workspaces and views. All methods must run on the loop.
type StateSynchronizer struct {
	deps     SyncDeps
	policy   foreign.Policy
	logger   *slog.Logger
	desktops []*workspace.Workspace
	windows  *registry.Ordered[platform.WindowID, *trackedWindow]
}

// NewStateSynchronizer creates a synchronizer with no desktops or windows.
func NewStateSynchronizer(deps SyncDeps) *StateSynchronizer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StateSynchronizer{
		deps:    deps,
		logger:  logger,
		windows: registry.New[platform.WindowID, *trackedWindow](),
	}
}

// SetPolicy sets the policy handed to views published from now on.
func (s *StateSynchronizer) SetPolicy(p foreign.Policy) {
	s.policy = p
}

// Apply applies one source event.
func (s *StateSynchronizer) Apply(ev platform.Event) {
	switch ev.Kind {
	case platform.DesktopsChanged:
		s.SetDesktops(ev.Desktops)
	case platform.WindowAdded, platform.WindowChanged:
		s.HandleWindow(ev.Window)
	case platform.WindowRemoved:
		s.HandleWindowClosed(ev.Window.ID)
	case platform.Synced:
		s.Resync(ev.Desktops, ev.Windows)
	default:
		s.logger.Warn("unknown source event", "kind", ev.Kind)
	}
}

// Resync brings the whole model in line with a fresh snapshot of the
// source: desktops first, then window additions and updates, then
// removals of windows the snapshot no longer lists.
func (s *StateSynchronizer) Resync(desktops []platform.Desktop, windows []platform.Window) {
	s.SetDesktops(desktops)
	seen := make(map[platform.WindowID]bool, len(windows))
	for _, w := range windows {
		seen[w.ID] = true
		s.HandleWindow(w)
	}
	for _, id := range s.windows.Keys() {
		if !seen[id] {
			s.logger.Info("window vanished", "window_id", id)
			s.HandleWindowClosed(id)
		}
	}
}

// SetDesktops creates, renames and destroys workspaces so that there is
// one per desktop. Views leave a removed workspace before it is
// destroyed.
func (s *StateSynchronizer) SetDesktops(desktops []platform.Desktop) {
	next := make([]*workspace.Workspace, len(desktops))
	for i, d := range desktops {
		if i < len(s.desktops) {
			next[i] = s.desktops[i]
			next[i].SetName(d.Name)
			continue
		}
		next[i] = s.deps.Workspaces.Create(d.Name)
		s.logger.Debug("workspace created", "desktop", i, "workspace", d.Name)
	}
	var removed []*workspace.Workspace
	if len(s.desktops) > len(next) {
		removed = s.desktops[len(next):]
	}
	s.desktops = next

	for _, tw := range s.windows.Values() {
		tw.view.SetWorkspaces(s.workspacesFor(tw.desktop))
	}
	for _, ws := range removed {
		s.logger.Debug("workspace removed", "workspace", ws.Name())
		ws.Destroy()
	}
}

// HandleWindow tracks a new window or applies changes to a known one.
func (s *StateSynchronizer) HandleWindow(w platform.Window) {
	tw, ok := s.windows.Get(w.ID)
	if !ok {
		v := view.New(view.ID(w.ID), w.Title, w.AppID, s.workspacesFor(w.Desktop))
		tw = &trackedWindow{view: v, desktop: w.Desktop}
		tw.adapter = foreign.Init(foreign.Deps{
			List:    s.deps.Toplevels,
			Interop: s.deps.Interop,
			Policy:  s.policy,
			Logger:  s.logger,
		}, v)
		s.windows.Set(w.ID, tw)
		s.logger.Debug("window tracked", "window_id", w.ID, "app_id", w.AppID, "desktop", w.Desktop)
		return
	}
	tw.view.SetTitle(w.Title)
	tw.view.SetAppID(w.AppID)
	if tw.desktop != w.Desktop {
		s.logger.Debug("window moved", "window_id", w.ID, "from", tw.desktop, "to", w.Desktop)
		tw.desktop = w.Desktop
	}
	tw.view.SetWorkspaces(s.workspacesFor(w.Desktop))
}

// HandleWindowClosed withdraws a window. Unknown IDs are ignored.
func (s *StateSynchronizer) HandleWindowClosed(id platform.WindowID) {
	tw, ok := s.windows.Get(id)
	if !ok {
		return
	}
	s.windows.Delete(id)
	tw.adapter.Finish()
	tw.view.Destroy()
	s.logger.Debug("window closed", "window_id", id)
}

// View returns the view tracking a window.
func (s *StateSynchronizer) View(id platform.WindowID) (*view.View, bool) {
	tw, ok := s.windows.Get(id)
	if !ok {
		return nil, false
	}
	return tw.view, true
}

// Views returns every tracked view in the order the windows appeared.
func (s *StateSynchronizer) Views() []*view.View {
	out := make([]*view.View, 0, s.windows.Len())
	for _, tw := range s.windows.Values() {
		out = append(out, tw.view)
	}
	return out
}

// Workspaces returns the workspace of every desktop, by desktop index.
func (s *StateSynchronizer) Workspaces() []*workspace.Workspace {
	return append([]*workspace.Workspace(nil), s.desktops...)
}

// DesktopIndex returns the desktop a workspace represents.
func (s *StateSynchronizer) DesktopIndex(ws *workspace.Workspace) (int, bool) {
	for i, cur := range s.desktops {
		if cur == ws {
			return i, true
		}
	}
	return 0, false
}

// MoveWindow puts a tracked window on desktop.
func (s *StateSynchronizer) MoveWindow(id platform.WindowID, desktop int) {
	tw, ok := s.windows.Get(id)
	if !ok {
		return
	}
	tw.desktop = desktop
	tw.view.SetWorkspaces(s.workspacesFor(desktop))
}

// Close withdraws every window.
func (s *StateSynchronizer) Close() {
	for _, id := range s.windows.Keys() {
		s.HandleWindowClosed(id)
	}
}

func (s *StateSynchronizer) workspacesFor(desktop int) []*workspace.Workspace {
	if desktop == platform.AllDesktops {
		return s.Workspaces()
	}
	if desktop < 0 || desktop >= len(s.desktops) {
		return nil
	}
	return []*workspace.Workspace{s.desktops[desktop]}
}
