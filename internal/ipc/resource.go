package ipc

import (
	"fmt"

	"github.com/1broseidon/wsinterop/internal/signal"
)

// Kind tags what a resource's Addon refers to. Each protocol package
// defines its own kinds.
type Kind string

// Addon is the typed per-resource data: which kind of object the resource
// stands for, the authorization context it was created under, and the id of
// the owning entity in that package's registry. An Owner of zero marks an
// inert resource whose object is gone.
type Addon struct {
	Kind  Kind
	Ctx   Context
	Owner uint64
}

// Inert reports whether the resource no longer refers to a live object.
func (a Addon) Inert() bool {
	return a.Owner == 0
}

// RequestFunc handles one request on a resource.
type RequestFunc func(r *Resource, args Args) error

// Handlers maps request names to handlers.
type Handlers map[string]RequestFunc

// Resource is one client's proxy for a server-side object.
type Resource struct {
	id        ObjectID
	iface     string
	version   uint32
	client    *Client
	handlers  Handlers
	addon     Addon
	destroyed bool
	onDestroy signal.Signal[*Resource]
}

// ID returns the object id in the client's table.
func (r *Resource) ID() ObjectID { return r.id }

// Interface returns the protocol interface name.
func (r *Resource) Interface() string { return r.iface }

// Version returns the negotiated interface version.
func (r *Resource) Version() uint32 { return r.version }

// Client returns the owning client.
func (r *Resource) Client() *Client { return r.client }

// Addon returns the typed per-resource data.
func (r *Resource) Addon() Addon { return r.addon }

// SetAddon replaces the typed per-resource data.
func (r *Resource) SetAddon(a Addon) { r.addon = a }

// MakeInert clears the owner so later requests resolve to nothing. The kind
// and context are kept for diagnostics.
func (r *Resource) MakeInert() { r.addon.Owner = 0 }

// SetHandlers installs the request table.
func (r *Resource) SetHandlers(h Handlers) { r.handlers = h }

// Destroyed reports whether the resource was destroyed.
func (r *Resource) Destroyed() bool { return r.destroyed }

// OnDestroy registers fn to run when the resource is destroyed, whatever the
// cause (client request, server revocation, disconnect).
func (r *Resource) OnDestroy(fn func(*Resource)) *signal.Listener {
	return r.onDestroy.Connect(fn)
}

// Send emits an event from this resource to its client. Events on destroyed
// resources or closing clients are dropped.
func (r *Resource) Send(op string, fields Fields) {
	if r.destroyed {
		return
	}
	r.client.send(r.id, op, fields)
}

// Destroy revokes the resource from the server side. The client keeps the
// id reserved until it sends its own destroy request; requests on it are
// ignored until then. Destroying a resource twice panics.
func (r *Resource) Destroy() {
	r.destroy(true)
}

func (r *Resource) destroy(revoke bool) {
	if r.destroyed {
		panic(fmt.Sprintf("ipc: %s@%d destroyed twice", r.iface, r.id))
	}
	r.destroyed = true
	r.onDestroy.Emit(r)
	r.onDestroy.DisconnectAll()
	c := r.client
	c.objects.Delete(r.id)
	if revoke && !c.closing {
		c.zombies[r.id] = struct{}{}
	}
}
