// Package workspace serves the workspace manager global. Each binding of the
// manager gets its own authorization context, and every workspace proxy
// created for that binding carries it.
package workspace

import (
	"errors"
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/signal"
)

const (
	ManagerInterface   = "ext_workspace_manager_v1"
	WorkspaceInterface = "ext_workspace_handle_v1"
	Version            = 1

	KindManager   ipc.Kind = "workspace_manager"
	KindWorkspace ipc.Kind = "workspace"
)

// managerOwner marks a live manager binding. There is one manager per display.
const managerOwner = 1

// Manager owns the set of workspaces and the manager global.
type Manager struct {
	display    *ipc.Display
	global     *ipc.Global
	logger     *slog.Logger
	workspaces *registry.Ordered[uint64, *Workspace]
	bindings   *registry.Ordered[ipc.Context, *ipc.Resource]
	nextID     uint64
	destroyed  bool
}

// Workspace is one workspace as seen by every bound client.
type Workspace struct {
	id        uint64
	name      string
	manager   *Manager
	resources *registry.Ordered[*ipc.Resource, struct{}]
	destroyed bool
	onDestroy signal.Signal[*Workspace]
}

// NewManager creates the manager global on d. Destroying the display
// destroys every workspace and then the global.
func NewManager(d *ipc.Display, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = d.Logger()
	}
	m := &Manager{
		display:    d,
		logger:     logger.With("component", "workspace"),
		workspaces: registry.New[uint64, *Workspace](),
		bindings:   registry.New[ipc.Context, *ipc.Resource](),
	}
	m.global = d.CreateGlobal(ManagerInterface, Version, m.bind)
	d.OnDestroy(m.destroy)
	return m
}

func (m *Manager) bind(c *ipc.Client, version uint32, id ipc.ObjectID) {
	r, ok := ipc.BindResource(c, ManagerInterface, version, id)
	if !ok {
		return
	}
	ctx := m.display.NewContext()
	r.SetAddon(ipc.Addon{Kind: KindManager, Ctx: ctx, Owner: managerOwner})
	r.SetHandlers(ipc.Handlers{
		"stop": func(r *ipc.Resource, _ ipc.Args) error {
			r.Send("finished", nil)
			m.bindings.Delete(r.Addon().Ctx)
			return nil
		},
	})
	m.bindings.Set(ctx, r)
	r.OnDestroy(func(r *ipc.Resource) {
		m.bindings.Delete(r.Addon().Ctx)
	})

	m.logger.Debug("workspace manager bound", "client", c.ID(), "ctx", ctx)
	for _, ws := range m.workspaces.Values() {
		ws.announce(r)
	}
	r.Send("done", nil)
}

// Create adds a workspace and announces it to every bound manager.
func (m *Manager) Create(name string) *Workspace {
	m.nextID++
	ws := &Workspace{
		id:        m.nextID,
		name:      name,
		manager:   m,
		resources: registry.New[*ipc.Resource, struct{}](),
	}
	m.workspaces.Set(ws.id, ws)
	for _, r := range m.bindings.Values() {
		ws.announce(r)
	}
	m.sendDone()
	m.logger.Debug("workspace created", "id", ws.id, "name", name)
	return ws
}

// Workspaces returns the live workspaces in creation order.
func (m *Manager) Workspaces() []*Workspace {
	return m.workspaces.Values()
}

// Lookup returns a live workspace by id.
func (m *Manager) Lookup(id uint64) (*Workspace, bool) {
	return m.workspaces.Get(id)
}

// ContextOf returns the authorization context of a bound manager resource.
func (m *Manager) ContextOf(r *ipc.Resource) (ipc.Context, bool) {
	if r == nil || r.Interface() != ManagerInterface {
		return 0, false
	}
	a := r.Addon()
	if a.Kind != KindManager || a.Inert() {
		return 0, false
	}
	return a.Ctx, true
}

// FromResource resolves a workspace proxy to its workspace. Proxies of
// removed workspaces resolve to nothing.
func (m *Manager) FromResource(r *ipc.Resource) (*Workspace, bool) {
	if r == nil || r.Interface() != WorkspaceInterface {
		return nil, false
	}
	a := r.Addon()
	if a.Kind != KindWorkspace || a.Inert() {
		return nil, false
	}
	return m.workspaces.Get(a.Owner)
}

func (m *Manager) sendDone() {
	for _, r := range m.bindings.Values() {
		r.Send("done", nil)
	}
}

func (m *Manager) destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	for _, ws := range m.workspaces.Values() {
		ws.Destroy()
	}
	m.global.Destroy()
}

// announce creates a proxy for ws under the manager binding r and sends the
// workspace's current state through it.
func (ws *Workspace) announce(mr *ipc.Resource) {
	c := mr.Client()
	r, err := c.NewServerResource(WorkspaceInterface, mr.Version())
	if err != nil {
		ws.manager.logger.Debug("cannot announce workspace", "client", c.ID(), "workspace", ws.id, "error", err)
		if errors.Is(err, ipc.ErrObjectLimit) {
			c.PostNoMemory()
		}
		return
	}
	r.SetAddon(ipc.Addon{Kind: KindWorkspace, Ctx: mr.Addon().Ctx, Owner: ws.id})
	ws.resources.Set(r, struct{}{})
	r.OnDestroy(func(r *ipc.Resource) {
		ws.resources.Delete(r)
	})

	mr.Send("workspace", ipc.Fields{"workspace": r.ID()})
	r.Send("id", ipc.Fields{"id": ws.id})
	r.Send("name", ipc.Fields{"name": ws.name})
}

// ID returns the workspace's id, unique for the manager's lifetime.
func (ws *Workspace) ID() uint64 { return ws.id }

// Name returns the workspace's current name.
func (ws *Workspace) Name() string { return ws.name }

// Destroyed reports whether the workspace was removed.
func (ws *Workspace) Destroyed() bool { return ws.destroyed }

// Resources returns the workspace's proxies, one per manager binding.
func (ws *Workspace) Resources() []*ipc.Resource {
	return ws.resources.Keys()
}

// OnDestroy registers fn to run when the workspace is removed. Listeners run
// while the workspace proxies are still enumerable.
func (ws *Workspace) OnDestroy(fn func()) *signal.Listener {
	return ws.onDestroy.Connect(func(*Workspace) { fn() })
}

// SetName renames the workspace.
func (ws *Workspace) SetName(name string) {
	if ws.destroyed || ws.name == name {
		return
	}
	ws.name = name
	for _, r := range ws.resources.Keys() {
		r.Send("name", ipc.Fields{"name": name})
	}
	ws.manager.sendDone()
}

// Destroy removes the workspace from every client. Destroying a workspace
// twice panics.
func (ws *Workspace) Destroy() {
	if ws.destroyed {
		panic("workspace: destroyed twice")
	}
	ws.destroyed = true
	ws.onDestroy.Emit(ws)
	ws.onDestroy.DisconnectAll()

	for _, r := range ws.resources.Keys() {
		r.Send("removed", nil)
		r.MakeInert()
	}
	ws.resources = registry.New[*ipc.Resource, struct{}]()
	ws.manager.workspaces.Delete(ws.id)
	ws.manager.sendDone()
	ws.manager.logger.Debug("workspace destroyed", "id", ws.id, "name", ws.name)
}
