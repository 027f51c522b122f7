// Package view models the windows the daemon tracks, independent of the
// protocol objects that expose them.
package view

import (
	"fmt"

	"github.com/1broseidon/wsinterop/internal/signal"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

// ID identifies a window in the source it came from.
type ID uint32

// WorkspaceChange is emitted when a view moves between workspaces.
type WorkspaceChange struct {
	Old []*workspace.Workspace
	New []*workspace.Workspace
}

// View is one tracked window.
type View struct {
	id         ID
	title      string
	appID      string
	workspaces []*workspace.Workspace
	destroyed  bool

	Events struct {
		NewTitle         signal.Signal[string]
		NewAppID         signal.Signal[string]
		WorkspaceChanged signal.Signal[WorkspaceChange]
		Destroy          signal.Signal[*View]
	}
}

// New creates a view. workspaces may be empty for windows that are not on
// any known workspace yet.
func New(id ID, title, appID string, workspaces []*workspace.Workspace) *View {
	return &View{
		id:         id,
		title:      title,
		appID:      appID,
		workspaces: dedupe(workspaces),
	}
}

func (v *View) ID() ID          { return v.id }
func (v *View) Title() string   { return v.title }
func (v *View) AppID() string   { return v.appID }
func (v *View) Destroyed() bool { return v.destroyed }
func (v *View) String() string  { return fmt.Sprintf("view %d (%s)", v.id, v.appID) }

// Workspaces returns the workspaces the view is on.
func (v *View) Workspaces() []*workspace.Workspace {
	return append([]*workspace.Workspace(nil), v.workspaces...)
}

// On reports whether the view is on ws.
func (v *View) On(ws *workspace.Workspace) bool {
	for _, cur := range v.workspaces {
		if cur == ws {
			return true
		}
	}
	return false
}

func (v *View) SetTitle(title string) {
	if v.destroyed || v.title == title {
		return
	}
	v.title = title
	v.Events.NewTitle.Emit(title)
}

func (v *View) SetAppID(appID string) {
	if v.destroyed || v.appID == appID {
		return
	}
	v.appID = appID
	v.Events.NewAppID.Emit(appID)
}

// SetWorkspaces moves the view. Nothing is emitted when the set of
// workspaces is unchanged, whatever the order.
func (v *View) SetWorkspaces(workspaces []*workspace.Workspace) {
	if v.destroyed {
		return
	}
	next := dedupe(workspaces)
	if sameSet(v.workspaces, next) {
		return
	}
	change := WorkspaceChange{Old: v.workspaces, New: next}
	v.workspaces = next
	v.Events.WorkspaceChanged.Emit(change)
}

// Destroy emits the destroy signal and drops every listener. Destroying a
// view twice panics.
func (v *View) Destroy() {
	if v.destroyed {
		panic(fmt.Sprintf("view: %d destroyed twice", v.id))
	}
	v.destroyed = true
	v.Events.Destroy.Emit(v)
	v.Events.NewTitle.DisconnectAll()
	v.Events.NewAppID.DisconnectAll()
	v.Events.WorkspaceChanged.DisconnectAll()
	v.Events.Destroy.DisconnectAll()
}

func dedupe(in []*workspace.Workspace) []*workspace.Workspace {
	out := make([]*workspace.Workspace, 0, len(in))
	seen := make(map[*workspace.Workspace]bool, len(in))
	for _, ws := range in {
		if ws == nil || seen[ws] {
			continue
		}
		seen[ws] = true
		out = append(out, ws)
	}
	return out
}

func sameSet(a, b []*workspace.Workspace) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[*workspace.Workspace]bool, len(a))
	for _, ws := range a {
		set[ws] = true
	}
	for _, ws := range b {
		if !set[ws] {
			return false
		}
	}
	return true
}

// Diff splits a change into the workspaces left and the workspaces joined.
func (c WorkspaceChange) Diff() (left, joined []*workspace.Workspace) {
	in := func(list []*workspace.Workspace, ws *workspace.Workspace) bool {
		for _, cur := range list {
			if cur == ws {
				return true
			}
		}
		return false
	}
	for _, ws := range c.Old {
		if !in(c.New, ws) {
			left = append(left, ws)
		}
	}
	for _, ws := range c.New {
		if !in(c.Old, ws) {
			joined = append(joined, ws)
		}
	}
	return left, joined
}
