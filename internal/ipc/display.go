package ipc

import (
	"errors"
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/signal"
)

// BindFunc creates the client's resource for a global. Implementations
// call Client.NewResource with id and report allocation failure with
// PostNoMemory.
type BindFunc func(c *Client, version uint32, id ObjectID)

// Global is an object advertised to every client.
type Global struct {
	name      uint32
	iface     string
	version   uint32
	bind      BindFunc
	display   *Display
	destroyed bool
}

// Name returns the numeric global name.
func (g *Global) Name() uint32 { return g.name }

// Interface returns the advertised interface.
func (g *Global) Interface() string { return g.iface }

// Version returns the highest advertised version.
func (g *Global) Version() uint32 { return g.version }

// Destroy withdraws the global from every client. Existing resources bound
// to it are untouched.
func (g *Global) Destroy() {
	if g.destroyed {
		return
	}
	g.destroyed = true
	d := g.display
	d.globals.Delete(g.name)
	for _, c := range d.clients.Values() {
		c.send(DisplayID, "global_remove", Fields{"name": g.name})
	}
}

// Options configures a Display.
type Options struct {
	Logger *slog.Logger
	// MaxObjectsPerClient bounds each client's object table; zero means
	// unlimited.
	MaxObjectsPerClient int
}

// Display owns the globals and connected clients of one server.
type Display struct {
	logger      *slog.Logger
	maxObjects  int
	globals     *registry.Ordered[uint32, *Global]
	clients     *registry.Ordered[ClientID, *Client]
	nextGlobal  uint32
	nextClient  ClientID
	nextContext Context
	destroyed   bool
	onDestroy   signal.Signal[struct{}]
}

// NewDisplay creates an empty display.
func NewDisplay(opts Options) *Display {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Display{
		logger:     logger,
		maxObjects: opts.MaxObjectsPerClient,
		globals:    registry.New[uint32, *Global](),
		clients:    registry.New[ClientID, *Client](),
	}
}

// Logger returns the display's logger.
func (d *Display) Logger() *slog.Logger { return d.logger }

// SetMaxObjectsPerClient changes the object limit for clients connecting
// from now on.
func (d *Display) SetMaxObjectsPerClient(n int) { d.maxObjects = n }

// NewContext allocates a fresh authorization context.
func (d *Display) NewContext() Context {
	d.nextContext++
	return d.nextContext
}

// CreateGlobal advertises a new global to current and future clients.
func (d *Display) CreateGlobal(iface string, version uint32, bind BindFunc) *Global {
	d.nextGlobal++
	g := &Global{
		name:    d.nextGlobal,
		iface:   iface,
		version: version,
		bind:    bind,
		display: d,
	}
	d.globals.Set(g.name, g)
	for _, c := range d.clients.Values() {
		c.sendGlobal(g)
	}
	return g
}

// Globals returns the advertised globals.
func (d *Display) Globals() []*Global {
	return d.globals.Values()
}

// Clients returns the connected clients.
func (d *Display) Clients() []*Client {
	return d.clients.Values()
}

// OnDestroy registers fn to run when the display is destroyed.
func (d *Display) OnDestroy(fn func()) *signal.Listener {
	return d.onDestroy.Connect(func(struct{}) { fn() })
}

// AddClient registers a new client delivering through sink and announces
// every global to it.
func (d *Display) AddClient(sink Sink) *Client {
	d.nextClient++
	c := &Client{
		id:         d.nextClient,
		display:    d,
		sink:       sink,
		logger:     d.logger,
		objects:    registry.New[ObjectID, *Resource](),
		zombies:    make(map[ObjectID]struct{}),
		nextServer: ServerIDBase,
		maxObjects: d.maxObjects,
	}
	r := &Resource{id: DisplayID, iface: DisplayInterface, version: 1, client: c}
	r.SetHandlers(Handlers{
		"bind": d.handleBind,
		"sync": d.handleSync,
	})
	c.objects.Set(DisplayID, r)
	d.clients.Set(c.id, c)

	d.logger.Debug("client connected", "client", c.id)
	for _, g := range d.globals.Values() {
		c.sendGlobal(g)
	}
	return c
}

func (c *Client) sendGlobal(g *Global) {
	c.send(DisplayID, "global", Fields{
		"name":      g.name,
		"interface": g.iface,
		"version":   g.version,
	})
}

func (d *Display) removeClient(c *Client) {
	d.clients.Delete(c.id)
	d.logger.Debug("client disconnected", "client", c.id)
}

func (d *Display) handleBind(r *Resource, args Args) error {
	name, err := args.Uint("name")
	if err != nil {
		return err
	}
	iface, err := args.String("interface")
	if err != nil {
		return err
	}
	version, err := args.Uint("version")
	if err != nil {
		return err
	}
	id, err := args.NewID("id")
	if err != nil {
		return err
	}

	g, ok := d.globals.Get(name)
	if !ok {
		return Errorf(DisplayID, ErrorInvalidObject, "unknown global %d", name)
	}
	if g.iface != iface {
		return Errorf(DisplayID, ErrorInvalidObject, "global %d is %s, not %s", name, g.iface, iface)
	}
	if version == 0 || version > g.version {
		return Errorf(DisplayID, ErrorInvalidObject, "%s version %d unsupported (max %d)", iface, version, g.version)
	}
	g.bind(r.client, version, id)
	return nil
}

func (d *Display) handleSync(r *Resource, args Args) error {
	id, err := args.NewID("callback")
	if err != nil {
		return err
	}
	r.client.send(id, "done", nil)
	r.client.send(DisplayID, "delete_id", Fields{"id": id})
	return nil
}

// Reap destroys clients that were marked broken outside of their own
// request dispatch, for example after a failed delivery during a broadcast.
func (d *Display) Reap() {
	for _, c := range d.clients.Values() {
		if c.broken {
			c.Destroy()
		}
	}
}

// Destroy tears the display down: destroy listeners run first so globals
// can release their objects, then every client is disconnected.
func (d *Display) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.onDestroy.Emit(struct{}{})
	d.onDestroy.DisconnectAll()
	for _, c := range d.clients.Values() {
		c.Destroy()
	}
}

// BindResource is a convenience for BindFunc implementations: it creates
// the resource and posts no_memory when the client is out of objects.
func BindResource(c *Client, iface string, version uint32, id ObjectID) (*Resource, bool) {
	r, err := c.NewResource(iface, version, id)
	if err != nil {
		if errors.Is(err, ErrObjectLimit) {
			c.PostNoMemory()
		} else {
			c.PostError(DisplayID, ErrorInvalidObject, err.Error())
		}
		return nil, false
	}
	return r, true
}
