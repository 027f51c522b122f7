package platform

import (
	"context"
	"errors"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// AllDesktops is the desktop index of sticky windows.
const AllDesktops = -1

// ErrUnknownWindow is returned for operations on windows the source does
// not track.
var ErrUnknownWindow = errors.New("unknown window")

// Desktop is one virtual desktop.
type Desktop struct {
	Index int
	Name  string
}

// Window contains the metadata of a top-level window.
type Window struct {
	ID      WindowID
	AppID   string
	Title   string
	Desktop int
}

// EventKind says what changed in the window system.
type EventKind int

const (
	DesktopsChanged EventKind = iota
	WindowAdded
	WindowRemoved
	WindowChanged
	// Synced carries the full state once Watch is following changes.
	Synced
)

func (k EventKind) String() string {
	switch k {
	case DesktopsChanged:
		return "desktops"
	case WindowAdded:
		return "added"
	case WindowRemoved:
		return "removed"
	case WindowChanged:
		return "changed"
	case Synced:
		return "synced"
	default:
		return "unknown"
	}
}

// Event is a single change reported by a Source. Desktops is set for
// DesktopsChanged, Window for the window events; WindowRemoved only carries
// the ID. Synced sets Desktops and Windows.
type Event struct {
	Kind     EventKind
	Window   Window
	Desktops []Desktop
	Windows  []Window
}

// Source abstracts the window system the daemon mirrors.
type Source interface {
	Desktops() ([]Desktop, error)
	Windows() ([]Window, error)
	// SetWindowDesktop asks the window manager to move a window. The move
	// is reported back through Watch like any other change.
	SetWindowDesktop(id WindowID, desktop int) error
	// Watch reports changes until ctx is done. The first event is Synced,
	// sent once changes are being followed, so nothing that happened
	// before Watch started is lost. emit may be called from any goroutine.
	Watch(ctx context.Context, emit func(Event)) error
	Close() error
}
