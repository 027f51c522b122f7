package ipc

import (
	"context"
)

// Loop runs posted functions one at a time on a single goroutine. Every
// request handler, signal handler and destroy callback in the daemon runs
// on the loop, so protocol state needs no locking.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

// NewLoop creates a loop with a task queue of the given capacity.
func NewLoop(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	return &Loop{
		tasks: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
}

// Post queues fn for execution. It blocks while the queue is full and
// returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call posts fn and waits for it to finish. It returns false if the loop
// stopped before fn ran.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Run executes queued functions until ctx is cancelled. Panics are not
// recovered: they signal broken invariants.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
