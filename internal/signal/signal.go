// Package signal provides typed observer lists for single-threaded event
// dispatch. Listeners may connect or disconnect, including themselves and
// each other, while a signal is being emitted.
package signal

// Listener is a single subscription to a Signal.
type Listener struct {
	fn        func(any)
	connected bool
	detach    func(*Listener)
}

// Disconnect removes the listener from its signal. Calling it more than
// once is a no-op.
func (l *Listener) Disconnect() {
	if l == nil || !l.connected {
		return
	}
	l.connected = false
	if l.detach != nil {
		l.detach(l)
		l.detach = nil
	}
}

// Connected reports whether the listener is still attached.
func (l *Listener) Connected() bool {
	return l != nil && l.connected
}

// Signal dispatches values of type T to its listeners in connection order.
// The zero value is ready to use.
type Signal[T any] struct {
	listeners []*Listener
}

// Connect registers fn and returns the listener handle used to disconnect it.
func (s *Signal[T]) Connect(fn func(T)) *Listener {
	l := &Listener{
		fn:        func(v any) { fn(v.(T)) },
		connected: true,
	}
	l.detach = s.remove
	s.listeners = append(s.listeners, l)
	return l
}

func (s *Signal[T]) remove(l *Listener) {
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Emit calls every connected listener with v. Listeners connected during
// the emit are not called for this value; listeners disconnected during the
// emit are skipped.
func (s *Signal[T]) Emit(v T) {
	if len(s.listeners) == 0 {
		return
	}
	snapshot := make([]*Listener, len(s.listeners))
	copy(snapshot, s.listeners)
	for _, l := range snapshot {
		if !l.connected {
			continue
		}
		l.fn(v)
	}
}

// Len returns the number of connected listeners.
func (s *Signal[T]) Len() int {
	return len(s.listeners)
}

// DisconnectAll detaches every listener.
func (s *Signal[T]) DisconnectAll() {
	for _, l := range s.listeners {
		l.connected = false
		l.detach = nil
	}
	s.listeners = nil
}

// Group owns a set of listeners so they can be torn down together.
type Group struct {
	listeners []*Listener
}

// Add attaches listeners to the group. Nil listeners are ignored.
func (g *Group) Add(ls ...*Listener) {
	for _, l := range ls {
		if l != nil {
			g.listeners = append(g.listeners, l)
		}
	}
}

// Len returns the number of listeners owned by the group.
func (g *Group) Len() int {
	return len(g.listeners)
}

// DisconnectAll disconnects every owned listener and empties the group.
func (g *Group) DisconnectAll() {
	ls := g.listeners
	g.listeners = nil
	for _, l := range ls {
		l.Disconnect()
	}
}
