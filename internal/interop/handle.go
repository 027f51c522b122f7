package interop

import (
	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/signal"
)

// Handle is the protocol's view of one toplevel: its client proxies and the
// workspaces it is on.
type Handle struct {
	id        uint64
	manager   *Manager
	toplevel  Toplevel
	resources *registry.Ordered[*ipc.Resource, struct{}]
	mappings  *registry.Ordered[Workspace, *mapping]
	owned     signal.Group
	destroyed bool

	// RequestJoin and RequestLeave carry client requests to move the
	// toplevel. The Handle never acts on them itself.
	RequestJoin  signal.Signal[Workspace]
	RequestLeave signal.Signal[Workspace]

	onDestroy signal.Signal[*Handle]
}

func newHandle(m *Manager, id uint64, top Toplevel) *Handle {
	h := &Handle{
		id:        id,
		manager:   m,
		toplevel:  top,
		resources: registry.New[*ipc.Resource, struct{}](),
		mappings:  registry.New[Workspace, *mapping](),
	}
	h.owned.Add(top.OnDestroy(h.destroy))
	return h
}

// ID returns the handle's id.
func (h *Handle) ID() uint64 { return h.id }

// Toplevel returns the tracked toplevel.
func (h *Handle) Toplevel() Toplevel { return h.toplevel }

// Destroyed reports whether the handle was torn down.
func (h *Handle) Destroyed() bool { return h.destroyed }

// Resources returns the handle's client proxies in creation order.
func (h *Handle) Resources() []*ipc.Resource {
	return h.resources.Keys()
}

// Workspaces returns the workspaces the toplevel is on, in join order.
func (h *Handle) Workspaces() []Workspace {
	return h.mappings.Keys()
}

// Mapped reports whether the toplevel is on ws.
func (h *Handle) Mapped(ws Workspace) bool {
	return h.mappings.Has(ws)
}

// Own ties listeners to the handle's lifetime: they are disconnected when
// the handle is torn down.
func (h *Handle) Own(ls ...*signal.Listener) {
	if h.destroyed {
		for _, l := range ls {
			if l != nil {
				l.Disconnect()
			}
		}
		return
	}
	h.owned.Add(ls...)
}

// OnDestroy registers fn to run at the end of the handle's teardown.
func (h *Handle) OnDestroy(fn func(*Handle)) *signal.Listener {
	return h.onDestroy.Connect(fn)
}

// Join puts the toplevel on ws. Joining a workspace twice is a no-op.
func (h *Handle) Join(ws Workspace) {
	if h.destroyed || h.mappings.Has(ws) {
		return
	}
	newMapping(h, ws)
}

// Leave takes the toplevel off ws. Leaving a workspace it is not on is a
// no-op.
func (h *Handle) Leave(ws Workspace) {
	if mp, ok := h.mappings.Get(ws); ok {
		mp.destroy()
	}
}

func (h *Handle) addResource(r *ipc.Resource) {
	h.resources.Set(r, struct{}{})
	r.OnDestroy(func(r *ipc.Resource) {
		h.resources.Delete(r)
	})
}

// destroy tears the handle down: mappings first so synced clients see
// leave, then proxies are revoked. Both the toplevel's destroy
// notification and manager shutdown lead here; only the first call acts.
func (h *Handle) destroy() {
	if h.destroyed {
		return
	}
	h.destroyed = true
	for _, mp := range h.mappings.Values() {
		mp.destroy()
	}
	for _, r := range h.resources.Keys() {
		if !r.Destroyed() {
			r.Destroy()
		}
	}
	h.owned.DisconnectAll()
	h.RequestJoin.DisconnectAll()
	h.RequestLeave.DisconnectAll()
	h.manager.forget(h)
	h.manager.logger.Debug("handle destroyed", "handle", h.id)
	h.onDestroy.Emit(h)
	h.onDestroy.DisconnectAll()
}
