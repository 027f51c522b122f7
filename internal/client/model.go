package client

import (
	"context"
	"fmt"

	"github.com/1broseidon/wsinterop/internal/ipc"
)

// EventKind says what changed.
type EventKind int

const (
	ToplevelAdded EventKind = iota
	ToplevelChanged
	ToplevelClosed
	WorkspaceAdded
	WorkspaceRenamed
	WorkspaceRemoved
	Entered
	Left
)

func (k EventKind) String() string {
	switch k {
	case ToplevelAdded:
		return "toplevel-added"
	case ToplevelChanged:
		return "toplevel-changed"
	case ToplevelClosed:
		return "toplevel-closed"
	case WorkspaceAdded:
		return "workspace-added"
	case WorkspaceRenamed:
		return "workspace-renamed"
	case WorkspaceRemoved:
		return "workspace-removed"
	case Entered:
		return "enter"
	case Left:
		return "leave"
	default:
		return "unknown"
	}
}

// Event is one change seen by the session. Toplevel is unset for
// workspace events, Workspace for toplevel events.
type Event struct {
	Kind      EventKind
	Toplevel  Toplevel
	Workspace string
}

// Toplevel is a snapshot of one window.
type Toplevel struct {
	Identifier string   `json:"identifier"`
	Title      string   `json:"title"`
	AppID      string   `json:"app_id"`
	Workspaces []string `json:"workspaces"`
}

// Workspace is a snapshot of one workspace.
type Workspace struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type workspaceState struct {
	proxy     ipc.ObjectID
	id        uint64
	name      string
	announced bool
}

type toplevelState struct {
	proxy      ipc.ObjectID
	handle     ipc.ObjectID
	identifier string
	title      string
	appID      string
	workspaces []ipc.ObjectID
	ready      bool
	dirty      bool
}

// Snapshot returns every settled toplevel in announcement order.
func (s *Session) Snapshot() []Toplevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toplevel, 0, len(s.topOrder))
	for _, id := range s.topOrder {
		if t := s.toplevels[id]; t.ready {
			out = append(out, s.toplevelSnapshot(t))
		}
	}
	return out
}

// Workspaces returns the announced workspaces in announcement order.
func (s *Session) Workspaces() []Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workspace, 0, len(s.wsOrder))
	for _, id := range s.wsOrder {
		if ws := s.workspaces[id]; ws.announced {
			out = append(out, Workspace{ID: ws.id, Name: ws.name})
		}
	}
	return out
}

// Move asks the daemon to put the toplevel on the named workspace only: it
// enters the workspace and leaves every other one it is on. Whether the
// move happens is up to the daemon's policy; the outcome shows up as enter
// and leave events.
func (s *Session) Move(ctx context.Context, identifier, workspaceName string) error {
	s.mu.Lock()
	top := s.findToplevel(identifier)
	if top == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownToplevel, identifier)
	}
	if top.handle == 0 {
		s.mu.Unlock()
		return fmt.Errorf("toplevel %s has no workspace handle", identifier)
	}
	target := s.findWorkspace(workspaceName)
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownWorkspace, workspaceName)
	}
	handle := top.handle
	var others []ipc.ObjectID
	for _, id := range top.workspaces {
		if id != target.proxy {
			others = append(others, id)
		}
	}
	s.mu.Unlock()

	if err := s.send(handle, "enter_workspace", ipc.Fields{"workspace": target.proxy}); err != nil {
		return err
	}
	for _, id := range others {
		if err := s.send(handle, "leave_workspace", ipc.Fields{"workspace": id}); err != nil {
			return err
		}
	}
	return s.Roundtrip(ctx)
}

// must hold mu
func (s *Session) findToplevel(identifier string) *toplevelState {
	for _, id := range s.topOrder {
		if t := s.toplevels[id]; t.identifier == identifier {
			return t
		}
	}
	return nil
}

// must hold mu
func (s *Session) findWorkspace(name string) *workspaceState {
	for _, id := range s.wsOrder {
		if ws := s.workspaces[id]; ws.announced && ws.name == name {
			return ws
		}
	}
	return nil
}

func (s *Session) toplevelSnapshot(t *toplevelState) Toplevel {
	names := make([]string, 0, len(t.workspaces))
	for _, id := range t.workspaces {
		if ws, ok := s.workspaces[id]; ok {
			names = append(names, ws.name)
		}
	}
	return Toplevel{
		Identifier: t.identifier,
		Title:      t.title,
		AppID:      t.appID,
		Workspaces: names,
	}
}

func (s *Session) dispatch(msg ipc.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.callbacks[msg.Object]; ok && msg.Op == "done" {
		delete(s.callbacks, msg.Object)
		close(ch)
		return
	}
	switch {
	case msg.Object == ipc.DisplayID:
		s.displayEvent(msg)
	case msg.Object == s.wsManager:
		s.workspaceManagerEvent(msg)
	case msg.Object == s.list:
		s.listEvent(msg)
	default:
		if ws, ok := s.workspaces[msg.Object]; ok {
			s.workspaceEvent(ws, msg)
		} else if t, ok := s.toplevels[msg.Object]; ok {
			s.toplevelEvent(t, msg)
		} else if t, ok := s.handles[msg.Object]; ok {
			s.handleEvent(t, msg)
		}
	}
}

func (s *Session) displayEvent(msg ipc.Message) {
	switch msg.Op {
	case "global":
		var args struct {
			Name      uint32 `json:"name"`
			Interface string `json:"interface"`
			Version   uint32 `json:"version"`
		}
		if s.decode(msg, &args) {
			s.globals[args.Interface] = global{name: args.Name, version: args.Version}
		}
	case "error":
		var args struct {
			ObjectID ipc.ObjectID `json:"object_id"`
			Code     uint32       `json:"code"`
			Message  string       `json:"message"`
		}
		if s.decode(msg, &args) && s.err == nil {
			s.err = &ProtocolError{Object: args.ObjectID, Code: args.Code, Message: args.Message}
		}
	}
}

func (s *Session) workspaceManagerEvent(msg ipc.Message) {
	switch msg.Op {
	case "workspace":
		var args struct {
			Workspace ipc.ObjectID `json:"workspace"`
		}
		if s.decode(msg, &args) {
			s.workspaces[args.Workspace] = &workspaceState{proxy: args.Workspace}
			s.wsOrder = append(s.wsOrder, args.Workspace)
		}
	case "done":
		for _, id := range s.wsOrder {
			if ws := s.workspaces[id]; !ws.announced {
				ws.announced = true
				s.emit(Event{Kind: WorkspaceAdded, Workspace: ws.name})
			}
		}
	}
}

func (s *Session) workspaceEvent(ws *workspaceState, msg ipc.Message) {
	switch msg.Op {
	case "id":
		var args struct {
			ID uint64 `json:"id"`
		}
		if s.decode(msg, &args) {
			ws.id = args.ID
		}
	case "name":
		var args struct {
			Name string `json:"name"`
		}
		if s.decode(msg, &args) {
			ws.name = args.Name
			if ws.announced {
				s.emit(Event{Kind: WorkspaceRenamed, Workspace: ws.name})
			}
		}
	case "removed":
		delete(s.workspaces, ws.proxy)
		s.wsOrder = removeID(s.wsOrder, ws.proxy)
		for _, t := range s.toplevels {
			t.workspaces = removeID(t.workspaces, ws.proxy)
		}
		s.emit(Event{Kind: WorkspaceRemoved, Workspace: ws.name})
		s.destroyProxy(ws.proxy)
	}
}

func (s *Session) listEvent(msg ipc.Message) {
	if msg.Op != "toplevel" {
		return
	}
	var args struct {
		Toplevel ipc.ObjectID `json:"toplevel"`
	}
	if !s.decode(msg, &args) {
		return
	}
	t := &toplevelState{proxy: args.Toplevel}
	s.toplevels[t.proxy] = t
	s.topOrder = append(s.topOrder, t.proxy)
	if s.interop == 0 || s.wsManager == 0 {
		return
	}
	t.handle = s.allocID()
	s.handles[t.handle] = t
	s.sendAsync(s.interop, "create_handle", ipc.Fields{
		"id":                t.handle,
		"toplevel":          t.proxy,
		"workspace_manager": s.wsManager,
	})
}

func (s *Session) toplevelEvent(t *toplevelState, msg ipc.Message) {
	switch msg.Op {
	case "identifier":
		var args struct {
			Identifier string `json:"identifier"`
		}
		if s.decode(msg, &args) {
			t.identifier = args.Identifier
		}
	case "title":
		var args struct {
			Title string `json:"title"`
		}
		if s.decode(msg, &args) && args.Title != t.title {
			t.title = args.Title
			t.dirty = true
		}
	case "app_id":
		var args struct {
			AppID string `json:"app_id"`
		}
		if s.decode(msg, &args) && args.AppID != t.appID {
			t.appID = args.AppID
			t.dirty = true
		}
	case "done":
		switch {
		case !t.ready:
			t.ready = true
			s.emit(Event{Kind: ToplevelAdded, Toplevel: s.toplevelSnapshot(t)})
		case t.dirty:
			s.emit(Event{Kind: ToplevelChanged, Toplevel: s.toplevelSnapshot(t)})
		}
		t.dirty = false
	case "closed":
		delete(s.toplevels, t.proxy)
		s.topOrder = removeID(s.topOrder, t.proxy)
		if t.handle != 0 {
			delete(s.handles, t.handle)
			s.destroyProxy(t.handle)
		}
		if t.ready {
			s.emit(Event{Kind: ToplevelClosed, Toplevel: s.toplevelSnapshot(t)})
		}
		s.destroyProxy(t.proxy)
	}
}

func (s *Session) handleEvent(t *toplevelState, msg ipc.Message) {
	var args struct {
		Workspace ipc.ObjectID `json:"workspace"`
	}
	if !s.decode(msg, &args) {
		return
	}
	ws, ok := s.workspaces[args.Workspace]
	if !ok {
		return
	}
	switch msg.Op {
	case "workspace_enter":
		for _, id := range t.workspaces {
			if id == ws.proxy {
				return
			}
		}
		t.workspaces = append(t.workspaces, ws.proxy)
		if t.ready {
			s.emit(Event{Kind: Entered, Toplevel: s.toplevelSnapshot(t), Workspace: ws.name})
		}
	case "workspace_leave":
		t.workspaces = removeID(t.workspaces, ws.proxy)
		if t.ready {
			s.emit(Event{Kind: Left, Toplevel: s.toplevelSnapshot(t), Workspace: ws.name})
		}
	}
}

// destroyProxy releases an object the daemon revoked.
func (s *Session) destroyProxy(id ipc.ObjectID) {
	s.sendAsync(id, "destroy", nil)
}

// sendAsync sends from the reader; failures end the session through the
// reader itself.
func (s *Session) sendAsync(object ipc.ObjectID, op string, fields ipc.Fields) {
	if err := s.send(object, op, fields); err != nil {
		s.logger.Debug("request failed", "object", object, "op", op, "error", err)
	}
}

func (s *Session) decode(msg ipc.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		s.logger.Debug("malformed event", "object", msg.Object, "op", msg.Op, "error", err)
		return false
	}
	return true
}

func removeID(list []ipc.ObjectID, id ipc.ObjectID) []ipc.ObjectID {
	out := list[:0]
	for _, cur := range list {
		if cur != id {
			out = append(out, cur)
		}
	}
	return out
}
