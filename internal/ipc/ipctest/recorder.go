// Package ipctest provides an in-memory client transport for protocol tests.
package ipctest

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/wsinterop/internal/ipc"
)

// Recorder is an ipc.Sink that keeps every delivered message.
type Recorder struct {
	msgs   []ipc.Message
	closed bool
	// Fail makes the next deliveries return the given error.
	Fail error
}

// Deliver records msg.
func (r *Recorder) Deliver(msg ipc.Message) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.closed = true
	return nil
}

// Closed reports whether the transport was closed.
func (r *Recorder) Closed() bool { return r.closed }

// Messages returns everything delivered so far.
func (r *Recorder) Messages() []ipc.Message { return r.msgs }

// Reset forgets recorded messages.
func (r *Recorder) Reset() { r.msgs = nil }

// Ops returns "object:op" strings for every message, in order.
func (r *Recorder) Ops() []string {
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, Op(m.Object, m.Op))
	}
	return out
}

// Op formats a message the way Ops does.
func Op(object ipc.ObjectID, op string) string {
	return fmt.Sprintf("%d:%s", object, op)
}

// Named returns the messages with the given op.
func (r *Recorder) Named(op string) []ipc.Message {
	var out []ipc.Message
	for _, m := range r.msgs {
		if m.Op == op {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message with the given op.
func (r *Recorder) Last(op string) (ipc.Message, bool) {
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Op == op {
			return r.msgs[i], true
		}
	}
	return ipc.Message{}, false
}

// Arg decodes a single argument of msg.
func Arg[T any](msg ipc.Message, name string) (T, error) {
	var zero T
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg.Args, &fields); err != nil {
		return zero, err
	}
	raw, ok := fields[name]
	if !ok {
		return zero, fmt.Errorf("message %s has no argument %q", msg.Op, name)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// Conn is a client connected through a Recorder.
type Conn struct {
	*Recorder
	Client *ipc.Client
}

// Connect adds a recording client to d.
func Connect(d *ipc.Display) *Conn {
	rec := &Recorder{}
	return &Conn{Recorder: rec, Client: d.AddClient(rec)}
}

// Request dispatches a request from the client.
func (c *Conn) Request(object ipc.ObjectID, op string, fields ipc.Fields) {
	msg, err := ipc.NewMessage(object, op, fields)
	if err != nil {
		panic(err)
	}
	c.Client.Dispatch(msg)
}

// Bind binds the global with the given interface at version into id.
func (c *Conn) Bind(d *ipc.Display, iface string, version uint32, id ipc.ObjectID) {
	for _, g := range d.Globals() {
		if g.Interface() == iface {
			c.Request(ipc.DisplayID, "bind", ipc.Fields{
				"name":      g.Name(),
				"interface": iface,
				"version":   version,
				"id":        id,
			})
			return
		}
	}
	panic("ipctest: no global " + iface)
}
