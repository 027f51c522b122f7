// Package client is a protocol client for the wsinterop daemon. A Session
// binds the workspace, toplevel and interop globals and keeps a live model
// of which toplevel is on which workspace.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/1broseidon/wsinterop/internal/interop"
	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/toplevel"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

const (
	maxMessageSize = 1 << 20
	eventBuffer    = 256
)

var (
	// ErrClosed is returned once the connection is gone.
	ErrClosed = errors.New("session closed")
	// ErrUnknownToplevel is returned for identifiers the session has not seen.
	ErrUnknownToplevel = errors.New("unknown toplevel")
	// ErrUnknownWorkspace is returned for workspace names the session has not seen.
	ErrUnknownWorkspace = errors.New("unknown workspace")
)

// ProtocolError is a fatal error posted by the daemon.
type ProtocolError struct {
	Object  ipc.ObjectID
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("daemon error on object %d (code %d): %s", e.Object, e.Code, e.Message)
}

type global struct {
	name    uint32
	version uint32
}

// Session is one connection to the daemon.
type Session struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	enc     *json.Encoder

	mu         sync.Mutex
	nextID     ipc.ObjectID
	globals    map[string]global
	wsManager  ipc.ObjectID
	list       ipc.ObjectID
	interop    ipc.ObjectID
	workspaces map[ipc.ObjectID]*workspaceState
	wsOrder    []ipc.ObjectID
	toplevels  map[ipc.ObjectID]*toplevelState
	topOrder   []ipc.ObjectID
	handles    map[ipc.ObjectID]*toplevelState
	callbacks  map[ipc.ObjectID]chan struct{}
	err        error

	events chan Event
	done   chan struct{}
}

// Dial connects to the daemon at socketPath and waits until the initial
// state (workspaces, toplevels and their workspaces) has arrived.
func Dial(ctx context.Context, socketPath string) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	s := newSession(conn, slog.Default())
	go s.readLoop()

	if err := s.setup(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(conn net.Conn, logger *slog.Logger) *Session {
	return &Session{
		conn:       conn,
		logger:     logger,
		enc:        json.NewEncoder(conn),
		nextID:     ipc.DisplayID,
		globals:    make(map[string]global),
		workspaces: make(map[ipc.ObjectID]*workspaceState),
		toplevels:  make(map[ipc.ObjectID]*toplevelState),
		handles:    make(map[ipc.ObjectID]*toplevelState),
		callbacks:  make(map[ipc.ObjectID]chan struct{}),
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
	}
}

func (s *Session) setup(ctx context.Context) error {
	// globals are announced on connect, before the sync reply
	if err := s.Roundtrip(ctx); err != nil {
		return err
	}
	// the interop manager is bound before the toplevel list so every
	// announced toplevel can get its handle straight away
	for _, b := range []struct {
		iface string
		slot  *ipc.ObjectID
	}{
		{workspace.ManagerInterface, &s.wsManager},
		{interop.ManagerInterface, &s.interop},
		{toplevel.ListInterface, &s.list},
	} {
		if err := s.bind(b.iface, b.slot); err != nil {
			return err
		}
	}
	// first roundtrip: announcements and create_handle requests; second:
	// the initial enter events of every handle
	if err := s.Roundtrip(ctx); err != nil {
		return err
	}
	return s.Roundtrip(ctx)
}

func (s *Session) bind(iface string, slot *ipc.ObjectID) error {
	s.mu.Lock()
	g, ok := s.globals[iface]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("daemon does not advertise %s", iface)
	}
	id := s.allocID()
	*slot = id
	s.mu.Unlock()

	return s.send(ipc.DisplayID, "bind", ipc.Fields{
		"name":      g.name,
		"interface": iface,
		"version":   g.version,
		"id":        id,
	})
}

// allocID must be called with mu held.
func (s *Session) allocID() ipc.ObjectID {
	s.nextID++
	return s.nextID
}

func (s *Session) send(object ipc.ObjectID, op string, fields ipc.Fields) error {
	msg, err := ipc.NewMessage(object, op, fields)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", op, err)
	}
	return nil
}

// Roundtrip waits until the daemon has processed every request sent so far
// and the session has applied every event it sent in reply.
func (s *Session) Roundtrip(ctx context.Context) error {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	id := s.allocID()
	ch := make(chan struct{})
	s.callbacks[id] = ch
	s.mu.Unlock()

	if err := s.send(ipc.DisplayID, "sync", ipc.Fields{"callback": id}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the change stream. It is closed when the session ends.
// Events are dropped while the channel is full.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the connection is gone.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the session ended, or nil while it is alive.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close disconnects and waits for the reader to finish.
func (s *Session) Close() error {
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		msg, err := ipc.ParseMessage(scanner.Bytes())
		if err != nil {
			s.fail(err)
			return
		}
		s.dispatch(msg)
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.fail(fmt.Errorf("%w: %v", ErrClosed, err))
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("event dropped, channel full", "kind", ev.Kind)
	}
}
