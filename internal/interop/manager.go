// Package interop associates foreign toplevels with workspaces. It keeps
// one Handle per toplevel, one mapping per (Handle, Workspace) pair and
// reports every association to the clients allowed to see it.
package interop

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/signal"
)

const (
	ManagerInterface = "ext_foreign_toplevel_workspace_manager_v1"
	HandleInterface  = "ext_foreign_toplevel_workspace_handle_v1"

	// MaxVersion is the highest protocol version this package implements.
	MaxVersion = 1

	KindManager ipc.Kind = "toplevel_workspace_manager"
	KindHandle  ipc.Kind = "toplevel_workspace_handle"
)

const managerOwner = 1

// Toplevel is the window object a Handle tracks.
type Toplevel interface {
	// OnDestroy must fire while the toplevel's proxies are still live.
	OnDestroy(fn func()) *signal.Listener
	// SendDone emits the settle event on every proxy of the toplevel.
	SendDone()
}

// Workspace is the workspace object a mapping refers to.
type Workspace interface {
	// OnDestroy must fire while Resources still lists the proxies.
	OnDestroy(fn func()) *signal.Listener
	// Resources enumerates the workspace proxies of every client.
	Resources() []*ipc.Resource
}

// Resolvers map client-supplied proxies to collaborator objects. Each
// returns false when the proxy does not stand for a live object.
type Resolvers struct {
	Toplevel  func(*ipc.Resource) (Toplevel, bool)
	Workspace func(*ipc.Resource) (Workspace, bool)
	Context   func(*ipc.Resource) (ipc.Context, bool)
}

// Manager owns every Handle and the manager global.
type Manager struct {
	global    *ipc.Global
	logger    *slog.Logger
	resolve   Resolvers
	handles   *registry.Ordered[Toplevel, *Handle]
	byID      *registry.Ordered[uint64, *Handle]
	nextID    uint64
	destroyed bool
}

// NewManager creates the manager global on d, advertised at version.
// Versions this package does not implement are a programming error and
// panic.
func NewManager(d *ipc.Display, version uint32, resolve Resolvers, logger *slog.Logger) *Manager {
	if version == 0 || version > MaxVersion {
		panic(fmt.Sprintf("interop: unsupported manager version %d", version))
	}
	if resolve.Toplevel == nil || resolve.Workspace == nil || resolve.Context == nil {
		panic("interop: incomplete resolvers")
	}
	if logger == nil {
		logger = d.Logger()
	}
	m := &Manager{
		logger:  logger.With("component", "interop"),
		resolve: resolve,
		handles: registry.New[Toplevel, *Handle](),
		byID:    registry.New[uint64, *Handle](),
	}
	m.global = d.CreateGlobal(ManagerInterface, version, m.bind)
	d.OnDestroy(m.destroy)
	return m
}

// Register returns the Handle for top, creating it on first use.
func (m *Manager) Register(top Toplevel) *Handle {
	if h, ok := m.handles.Get(top); ok {
		return h
	}
	m.nextID++
	h := newHandle(m, m.nextID, top)
	m.handles.Set(top, h)
	m.byID.Set(h.id, h)
	return h
}

// Handle returns the Handle registered for top.
func (m *Manager) Handle(top Toplevel) (*Handle, bool) {
	return m.handles.Get(top)
}

// Handles returns every live Handle in registration order.
func (m *Manager) Handles() []*Handle {
	return m.handles.Values()
}

func (m *Manager) forget(h *Handle) {
	m.handles.Delete(h.toplevel)
	m.byID.Delete(h.id)
}

func (m *Manager) bind(c *ipc.Client, version uint32, id ipc.ObjectID) {
	r, ok := ipc.BindResource(c, ManagerInterface, version, id)
	if !ok {
		return
	}
	r.SetAddon(ipc.Addon{Kind: KindManager, Owner: managerOwner})
	r.SetHandlers(ipc.Handlers{
		"create_handle": m.createHandle,
	})
}

func (m *Manager) createHandle(r *ipc.Resource, args ipc.Args) error {
	id, err := args.NewID("id")
	if err != nil {
		return err
	}
	topRes, err := args.Object("toplevel")
	if err != nil {
		return err
	}
	wsmRes, err := args.Object("workspace_manager")
	if err != nil {
		return err
	}
	c := r.Client()

	ctx, ok := m.resolve.Context(wsmRes)
	if !ok {
		m.logger.Debug("create_handle: workspace manager not resolved", "client", c.ID())
		return nil
	}
	top, ok := m.resolve.Toplevel(topRes)
	if !ok {
		m.logger.Debug("create_handle: toplevel not resolved", "client", c.ID())
		return nil
	}
	h, ok := m.handles.Get(top)
	if !ok {
		m.logger.Debug("create_handle: toplevel has no handle", "client", c.ID())
		return nil
	}

	hr, err := c.NewResource(HandleInterface, r.Version(), id)
	if err != nil {
		if errors.Is(err, ipc.ErrObjectLimit) {
			c.PostNoMemory()
			return nil
		}
		return err
	}
	hr.SetAddon(ipc.Addon{Kind: KindHandle, Ctx: ctx, Owner: h.id})
	hr.SetHandlers(ipc.Handlers{
		"enter_workspace": m.requestHandler(func(h *Handle) *signal.Signal[Workspace] { return &h.RequestJoin }),
		"leave_workspace": m.requestHandler(func(h *Handle) *signal.Signal[Workspace] { return &h.RequestLeave }),
	})
	h.addResource(hr)
	m.logger.Debug("handle proxy created", "client", c.ID(), "handle", h.id, "ctx", ctx)

	for _, mp := range h.mappings.Values() {
		mp.send(hr, "workspace_enter")
	}
	return nil
}

// requestHandler resolves the workspace argument and emits the chosen
// request signal of the Handle behind the proxy.
func (m *Manager) requestHandler(pick func(*Handle) *signal.Signal[Workspace]) ipc.RequestFunc {
	return func(r *ipc.Resource, args ipc.Args) error {
		wsRes, err := args.Object("workspace")
		if err != nil {
			return err
		}
		a := r.Addon()
		if a.Kind != KindHandle || a.Inert() {
			return nil
		}
		h, ok := m.byID.Get(a.Owner)
		if !ok {
			return nil
		}
		ws, ok := m.resolve.Workspace(wsRes)
		if !ok {
			m.logger.Debug("workspace request: workspace not resolved", "client", r.Client().ID(), "handle", h.id)
			return nil
		}
		pick(h).Emit(ws)
		return nil
	}
}

func (m *Manager) destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	for _, h := range m.handles.Values() {
		h.destroy()
	}
	m.global.Destroy()
}
