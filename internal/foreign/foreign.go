// Package foreign exposes tracked views as foreign toplevels and keeps
// their workspace associations in step with the view model.
package foreign

import (
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/interop"
	"github.com/1broseidon/wsinterop/internal/toplevel"
	"github.com/1broseidon/wsinterop/internal/view"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

// Policy decides what to do with client requests to move a view. It may
// call back into the view model synchronously.
type Policy interface {
	RequestJoin(v *view.View, ws *workspace.Workspace)
	RequestLeave(v *view.View, ws *workspace.Workspace)
}

// Deps are the protocol objects an adapter publishes through.
type Deps struct {
	List    *toplevel.List
	Interop *interop.Manager
	Policy  Policy
	Logger  *slog.Logger
}

// Toplevel binds one view to its foreign toplevel and workspace handle.
type Toplevel struct {
	view     *view.View
	logger   *slog.Logger
	handle   *toplevel.Toplevel
	wsHandle *interop.Handle
}

// Init publishes v: a toplevel carrying its title and app id, a workspace
// handle joined to every workspace the view is on, and listeners that
// follow the view from then on.
func Init(deps Deps, v *view.View) *Toplevel {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Toplevel{
		view:   v,
		logger: logger.With("view", v.ID()),
	}
	t.handle = deps.List.Create(toplevel.State{Title: v.Title(), AppID: v.AppID()})
	t.wsHandle = deps.Interop.Register(t.handle)
	for _, ws := range v.Workspaces() {
		t.wsHandle.Join(ws)
	}

	t.handle.OnDestroy(func() { t.handle = nil })
	h := t.wsHandle
	h.OnDestroy(func(*interop.Handle) { t.wsHandle = nil })
	h.Own(
		v.Events.NewTitle.Connect(func(string) { t.pushState() }),
		v.Events.NewAppID.Connect(func(string) { t.pushState() }),
		v.Events.WorkspaceChanged.Connect(t.workspaceChanged),
	)
	if deps.Policy != nil {
		h.Own(
			h.RequestJoin.Connect(func(ws interop.Workspace) {
				if w := t.workspace(ws); w != nil {
					deps.Policy.RequestJoin(t.view, w)
				}
			}),
			h.RequestLeave.Connect(func(ws interop.Workspace) {
				if w := t.workspace(ws); w != nil {
					deps.Policy.RequestLeave(t.view, w)
				}
			}),
		)
	}
	return t
}

// Toplevel returns the published toplevel, or nil once finished.
func (t *Toplevel) Toplevel() *toplevel.Toplevel { return t.handle }

// Handle returns the workspace handle, or nil once finished.
func (t *Toplevel) Handle() *interop.Handle { return t.wsHandle }

// View returns the adapted view.
func (t *Toplevel) View() *view.View { return t.view }

// Finish withdraws the toplevel. Its destroy notification tears the
// workspace handle and every adapter listener down.
func (t *Toplevel) Finish() {
	if t.handle == nil {
		return
	}
	t.handle.Destroy()
}

func (t *Toplevel) pushState() {
	if t.handle == nil {
		return
	}
	t.handle.UpdateState(toplevel.State{Title: t.view.Title(), AppID: t.view.AppID()})
}

func (t *Toplevel) workspaceChanged(c view.WorkspaceChange) {
	if t.wsHandle == nil {
		return
	}
	left, joined := c.Diff()
	for _, ws := range left {
		t.wsHandle.Leave(ws)
	}
	for _, ws := range joined {
		t.wsHandle.Join(ws)
	}
}

func (t *Toplevel) workspace(ws interop.Workspace) *workspace.Workspace {
	w, ok := ws.(*workspace.Workspace)
	if !ok {
		t.logger.Warn("workspace request for foreign workspace type", "type", ws)
		return nil
	}
	return w
}
