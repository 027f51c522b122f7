// Package toplevel serves the foreign toplevel list global: every tracked
// window is announced to bound clients with a stable identifier, its title
// and its app id.
package toplevel

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/signal"
)

const (
	ListInterface   = "ext_foreign_toplevel_list_v1"
	HandleInterface = "ext_foreign_toplevel_handle_v1"
	Version         = 1

	KindList     ipc.Kind = "toplevel_list"
	KindToplevel ipc.Kind = "toplevel"
)

const listOwner = 1

// State is the client-visible state of a toplevel.
type State struct {
	Title string
	AppID string
}

// List owns every toplevel and the list global.
type List struct {
	global    *ipc.Global
	logger    *slog.Logger
	toplevels *registry.Ordered[uint64, *Toplevel]
	bindings  *registry.Ordered[*ipc.Resource, struct{}]
	nextID    uint64
	destroyed bool
}

// Toplevel is one window as announced to clients.
type Toplevel struct {
	id         uint64
	identifier string
	state      State
	list       *List
	resources  *registry.Ordered[*ipc.Resource, struct{}]
	destroyed  bool
	onDestroy  signal.Signal[*Toplevel]
}

// NewList creates the list global on d. Destroying the display destroys
// every toplevel and then the global.
func NewList(d *ipc.Display, logger *slog.Logger) *List {
	if logger == nil {
		logger = d.Logger()
	}
	l := &List{
		logger:    logger.With("component", "toplevel"),
		toplevels: registry.New[uint64, *Toplevel](),
		bindings:  registry.New[*ipc.Resource, struct{}](),
	}
	l.global = d.CreateGlobal(ListInterface, Version, l.bind)
	d.OnDestroy(l.destroy)
	return l
}

func (l *List) bind(c *ipc.Client, version uint32, id ipc.ObjectID) {
	r, ok := ipc.BindResource(c, ListInterface, version, id)
	if !ok {
		return
	}
	r.SetAddon(ipc.Addon{Kind: KindList, Owner: listOwner})
	r.SetHandlers(ipc.Handlers{
		"stop": func(r *ipc.Resource, _ ipc.Args) error {
			if l.bindings.Delete(r) {
				r.Send("finished", nil)
			}
			return nil
		},
	})
	l.bindings.Set(r, struct{}{})
	r.OnDestroy(func(r *ipc.Resource) {
		l.bindings.Delete(r)
	})

	for _, t := range l.toplevels.Values() {
		t.announce(r)
	}
}

// Create adds a toplevel and announces it to every bound list.
func (l *List) Create(state State) *Toplevel {
	l.nextID++
	t := &Toplevel{
		id:         l.nextID,
		identifier: uuid.NewString(),
		state:      state,
		list:       l,
		resources:  registry.New[*ipc.Resource, struct{}](),
	}
	l.toplevels.Set(t.id, t)
	for _, r := range l.bindings.Keys() {
		t.announce(r)
	}
	l.logger.Debug("toplevel created", "id", t.id, "identifier", t.identifier, "app_id", state.AppID)
	return t
}

// Toplevels returns the live toplevels in creation order.
func (l *List) Toplevels() []*Toplevel {
	return l.toplevels.Values()
}

// FromResource resolves a toplevel proxy. Proxies of closed toplevels
// resolve to nothing.
func (l *List) FromResource(r *ipc.Resource) (*Toplevel, bool) {
	if r == nil || r.Interface() != HandleInterface {
		return nil, false
	}
	a := r.Addon()
	if a.Kind != KindToplevel || a.Inert() {
		return nil, false
	}
	return l.toplevels.Get(a.Owner)
}

func (l *List) destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	for _, t := range l.toplevels.Values() {
		t.Destroy()
	}
	l.global.Destroy()
}

func (t *Toplevel) announce(lr *ipc.Resource) {
	c := lr.Client()
	r, err := c.NewServerResource(HandleInterface, lr.Version())
	if err != nil {
		t.list.logger.Debug("cannot announce toplevel", "client", c.ID(), "toplevel", t.id, "error", err)
		if errors.Is(err, ipc.ErrObjectLimit) {
			c.PostNoMemory()
		}
		return
	}
	r.SetAddon(ipc.Addon{Kind: KindToplevel, Owner: t.id})
	t.resources.Set(r, struct{}{})
	r.OnDestroy(func(r *ipc.Resource) {
		t.resources.Delete(r)
	})

	lr.Send("toplevel", ipc.Fields{"toplevel": r.ID()})
	r.Send("identifier", ipc.Fields{"identifier": t.identifier})
	t.sendState(r)
	r.Send("done", nil)
}

func (t *Toplevel) sendState(r *ipc.Resource) {
	r.Send("title", ipc.Fields{"title": t.state.Title})
	r.Send("app_id", ipc.Fields{"app_id": t.state.AppID})
}

// ID returns the toplevel's id, unique for the list's lifetime.
func (t *Toplevel) ID() uint64 { return t.id }

// Identifier returns the opaque identifier sent to clients.
func (t *Toplevel) Identifier() string { return t.identifier }

// State returns the last state pushed to clients.
func (t *Toplevel) State() State { return t.state }

// Destroyed reports whether the toplevel was closed.
func (t *Toplevel) Destroyed() bool { return t.destroyed }

// Resources returns the toplevel's proxies.
func (t *Toplevel) Resources() []*ipc.Resource {
	return t.resources.Keys()
}

// OnDestroy registers fn to run when the toplevel is closed. Listeners run
// before clients see `closed`, while proxies are still enumerable.
func (t *Toplevel) OnDestroy(fn func()) *signal.Listener {
	return t.onDestroy.Connect(func(*Toplevel) { fn() })
}

// UpdateState pushes a new state to every proxy.
func (t *Toplevel) UpdateState(state State) {
	if t.destroyed {
		return
	}
	t.state = state
	for _, r := range t.resources.Keys() {
		t.sendState(r)
	}
	t.SendDone()
}

// SendDone ends an atomic batch of events on every proxy.
func (t *Toplevel) SendDone() {
	for _, r := range t.resources.Keys() {
		r.Send("done", nil)
	}
}

// Destroy closes the toplevel for every client. Destroying a toplevel
// twice panics.
func (t *Toplevel) Destroy() {
	if t.destroyed {
		panic("toplevel: destroyed twice")
	}
	t.destroyed = true
	t.onDestroy.Emit(t)
	t.onDestroy.DisconnectAll()

	for _, r := range t.resources.Keys() {
		r.Send("closed", nil)
		r.MakeInert()
	}
	t.resources = registry.New[*ipc.Resource, struct{}]()
	t.list.toplevels.Delete(t.id)
	t.list.logger.Debug("toplevel destroyed", "id", t.id, "identifier", t.identifier)
}
