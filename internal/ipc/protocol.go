package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ObjectID names an object inside a single client's object table.
type ObjectID uint32

// ClientID identifies a connected client for logging.
type ClientID uint64

// Context is an authorization context. Proxies created through the same
// binding share a context; the daemon only ever compares contexts for
// equality.
type Context uint64

const (
	// DisplayID is the well-known id of the display object on every client.
	DisplayID ObjectID = 1
	// ServerIDBase is the first id the server allocates for objects it
	// creates on a client's behalf.
	ServerIDBase ObjectID = 0xff000000
)

// Display is the interface name of the per-client display object.
const DisplayInterface = "display"

// Protocol error codes, posted on the display object.
const (
	ErrorInvalidObject  uint32 = 0
	ErrorInvalidMethod  uint32 = 1
	ErrorNoMemory       uint32 = 2
	ErrorImplementation uint32 = 3
)

var (
	// ErrObjectLimit is returned when a client already holds the maximum
	// number of objects. It is the daemon's allocation failure.
	ErrObjectLimit = errors.New("client object limit reached")
	// ErrClientGone is returned when creating objects on a destroyed client.
	ErrClientGone = errors.New("client is gone")
	// ErrQueueFull is returned by a sink whose outbound queue overflowed.
	ErrQueueFull = errors.New("outbound queue full")
)

// Message is a single protocol message in either direction. Requests carry
// the target object and request name; events carry the source object and
// event name.
type Message struct {
	Object ObjectID        `json:"object"`
	Op     string          `json:"op"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Fields holds event arguments.
type Fields map[string]any

// NewMessage builds a message, encoding fields as its arguments.
func NewMessage(object ObjectID, op string, fields Fields) (Message, error) {
	msg := Message{Object: object, Op: op}
	if len(fields) > 0 {
		data, err := json.Marshal(fields)
		if err != nil {
			return Message{}, fmt.Errorf("failed to marshal %s args: %w", op, err)
		}
		msg.Args = data
	}
	return msg, nil
}

// ParseMessage parses a message from JSON bytes.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Object == 0 || msg.Op == "" {
		return Message{}, fmt.Errorf("message missing object or op")
	}
	return msg, nil
}

// Decode unmarshals the message arguments into v.
func (m Message) Decode(v any) error {
	if len(m.Args) == 0 {
		return nil
	}
	return json.Unmarshal(m.Args, v)
}

// ProtocolError is returned by request handlers to make the transport post
// an error to the client and disconnect it.
type ProtocolError struct {
	Object  ObjectID
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on object %d (code %d): %s", e.Object, e.Code, e.Message)
}

// Errorf builds a ProtocolError.
func Errorf(object ObjectID, code uint32, format string, args ...any) *ProtocolError {
	return &ProtocolError{Object: object, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Args gives typed access to request arguments.
type Args struct {
	client *Client
	target ObjectID
	fields map[string]json.RawMessage
}

func (a Args) raw(name string) (json.RawMessage, error) {
	v, ok := a.fields[name]
	if !ok {
		return nil, Errorf(a.target, ErrorInvalidMethod, "missing argument %q", name)
	}
	return v, nil
}

// Uint decodes an unsigned integer argument.
func (a Args) Uint(name string) (uint32, error) {
	raw, err := a.raw(name)
	if err != nil {
		return 0, err
	}
	var v uint32
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, Errorf(a.target, ErrorInvalidMethod, "argument %q: %v", name, err)
	}
	return v, nil
}

// String decodes a string argument.
func (a Args) String(name string) (string, error) {
	raw, err := a.raw(name)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", Errorf(a.target, ErrorInvalidMethod, "argument %q: %v", name, err)
	}
	return v, nil
}

// NewID decodes a new_id argument and checks that the id is free and in the
// client-allocated range.
func (a Args) NewID(name string) (ObjectID, error) {
	v, err := a.Uint(name)
	if err != nil {
		return 0, err
	}
	id := ObjectID(v)
	if id <= DisplayID || id >= ServerIDBase {
		return 0, Errorf(a.target, ErrorInvalidObject, "new id %d out of range", id)
	}
	if a.client.inUse(id) {
		return 0, Errorf(a.target, ErrorInvalidObject, "new id %d already in use", id)
	}
	return id, nil
}

// Object resolves an object argument. Unknown ids are a protocol error; ids
// of objects the server has already revoked resolve to nil so the caller
// can drop the request.
func (a Args) Object(name string) (*Resource, error) {
	v, err := a.Uint(name)
	if err != nil {
		return nil, err
	}
	id := ObjectID(v)
	if r, ok := a.client.objects.Get(id); ok {
		return r, nil
	}
	if _, ok := a.client.zombies[id]; ok {
		return nil, nil
	}
	return nil, Errorf(a.target, ErrorInvalidObject, "unknown object %d", id)
}
