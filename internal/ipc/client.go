package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/registry"
	"github.com/1broseidon/wsinterop/internal/signal"
)

// Sink delivers outbound messages for one client connection.
type Sink interface {
	Deliver(Message) error
	Close() error
}

// Client is the server-side state of one connected client.
type Client struct {
	id         ClientID
	display    *Display
	sink       Sink
	logger     *slog.Logger
	objects    *registry.Ordered[ObjectID, *Resource]
	zombies    map[ObjectID]struct{}
	nextServer ObjectID
	maxObjects int

	// broken is set once the client must be disconnected: a protocol error
	// was posted or delivery failed.
	broken    bool
	closing   bool
	destroyed bool
	onDestroy signal.Signal[*Client]
}

// ID returns the client's id.
func (c *Client) ID() ClientID { return c.id }

// Display returns the display the client is connected to.
func (c *Client) Display() *Display { return c.display }

// Broken reports whether the client is scheduled for disconnection.
func (c *Client) Broken() bool { return c.broken }

// Destroyed reports whether the client was destroyed.
func (c *Client) Destroyed() bool { return c.destroyed }

// Resource returns a live resource by id.
func (c *Client) Resource(id ObjectID) (*Resource, bool) {
	return c.objects.Get(id)
}

// Resources returns the client's live resources in creation order.
func (c *Client) Resources() []*Resource {
	return c.objects.Values()
}

// OnDestroy registers fn to run after the client is destroyed.
func (c *Client) OnDestroy(fn func(*Client)) *signal.Listener {
	return c.onDestroy.Connect(fn)
}

func (c *Client) inUse(id ObjectID) bool {
	if c.objects.Has(id) {
		return true
	}
	_, ok := c.zombies[id]
	return ok
}

// NewResource creates a resource with a client-allocated id. It fails with
// ErrObjectLimit when the client holds too many objects, which callers
// report with PostNoMemory.
func (c *Client) NewResource(iface string, version uint32, id ObjectID) (*Resource, error) {
	if c.closing || c.destroyed {
		return nil, ErrClientGone
	}
	if c.maxObjects > 0 && c.objects.Len() >= c.maxObjects {
		return nil, ErrObjectLimit
	}
	if c.inUse(id) {
		return nil, fmt.Errorf("object id %d already in use", id)
	}
	r := &Resource{
		id:      id,
		iface:   iface,
		version: version,
		client:  c,
	}
	c.objects.Set(id, r)
	return r, nil
}

// NewServerResource creates a resource with a server-allocated id, used for
// objects announced by events.
func (c *Client) NewServerResource(iface string, version uint32) (*Resource, error) {
	id := c.nextServer
	for c.inUse(id) {
		id++
	}
	c.nextServer = id + 1
	return c.NewResource(iface, version, id)
}

func (c *Client) send(object ObjectID, op string, fields Fields) {
	if c.closing || c.destroyed || c.broken {
		return
	}
	msg, err := NewMessage(object, op, fields)
	if err != nil {
		c.logger.Error("failed to encode event", "client", c.id, "object", object, "op", op, "error", err)
		return
	}
	if err := c.sink.Deliver(msg); err != nil {
		c.logger.Warn("dropping client after delivery failure", "client", c.id, "error", err)
		c.broken = true
	}
}

// PostError sends a protocol error on the display object and marks the
// client for disconnection. Only the first error is sent.
func (c *Client) PostError(object ObjectID, code uint32, message string) {
	if c.broken || c.closing || c.destroyed {
		return
	}
	c.logger.Debug("posting protocol error", "client", c.id, "object", object, "code", code, "message", message)
	c.send(DisplayID, "error", Fields{
		"object_id": object,
		"code":      code,
		"message":   message,
	})
	c.broken = true
}

// PostNoMemory reports an allocation failure to the client.
func (c *Client) PostNoMemory() {
	c.PostError(DisplayID, ErrorNoMemory, "no memory")
}

// Dispatch routes one request to its resource. Requests on revoked ids are
// ignored; a client that raised a protocol error is destroyed before
// Dispatch returns.
func (c *Client) Dispatch(msg Message) {
	if c.closing || c.destroyed {
		return
	}
	c.dispatch(msg)
	if c.broken {
		c.Destroy()
	}
}

func (c *Client) dispatch(msg Message) {
	if _, ok := c.zombies[msg.Object]; ok {
		if msg.Op == "destroy" {
			delete(c.zombies, msg.Object)
			c.send(DisplayID, "delete_id", Fields{"id": msg.Object})
		}
		return
	}

	r, ok := c.objects.Get(msg.Object)
	if !ok {
		c.PostError(DisplayID, ErrorInvalidObject, fmt.Sprintf("unknown object %d", msg.Object))
		return
	}

	args := Args{client: c, target: r.id}
	if len(msg.Args) > 0 {
		if err := json.Unmarshal(msg.Args, &args.fields); err != nil {
			c.PostError(r.id, ErrorInvalidMethod, fmt.Sprintf("malformed arguments for %s", msg.Op))
			return
		}
	}

	if msg.Op == "destroy" && r.iface != DisplayInterface {
		if fn, ok := r.handlers["destroy"]; ok {
			if err := fn(r, args); err != nil {
				c.handleError(r, msg.Op, err)
				return
			}
		}
		if !r.destroyed {
			r.destroy(false)
		}
		c.send(DisplayID, "delete_id", Fields{"id": r.id})
		return
	}

	fn, ok := r.handlers[msg.Op]
	if !ok {
		c.PostError(r.id, ErrorInvalidMethod, fmt.Sprintf("%s has no request %q", r.iface, msg.Op))
		return
	}
	if err := fn(r, args); err != nil {
		c.handleError(r, msg.Op, err)
	}
}

func (c *Client) handleError(r *Resource, op string, err error) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		c.PostError(perr.Object, perr.Code, perr.Message)
		return
	}
	c.logger.Error("request failed", "client", c.id, "interface", r.iface, "op", op, "error", err)
	c.PostError(r.id, ErrorImplementation, err.Error())
}

// Destroy disconnects the client: every resource is destroyed newest first,
// firing destroy callbacks, then the sink is closed. It is safe to call
// more than once.
func (c *Client) Destroy() {
	if c.closing || c.destroyed {
		return
	}
	c.closing = true
	ids := c.objects.Keys()
	for i := len(ids) - 1; i >= 0; i-- {
		if r, ok := c.objects.Get(ids[i]); ok && !r.destroyed {
			r.destroy(false)
		}
	}
	c.zombies = map[ObjectID]struct{}{}
	c.destroyed = true
	c.display.removeClient(c)
	c.onDestroy.Emit(c)
	c.onDestroy.DisconnectAll()
	if err := c.sink.Close(); err != nil {
		c.logger.Debug("closing client sink", "client", c.id, "error", err)
	}
}
