package daemon

import (
	"log/slog"

	"github.com/1broseidon/wsinterop/internal/platform"
	"github.com/1broseidon/wsinterop/internal/view"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

// WindowModel is the part of the view model the policy needs.
type WindowModel interface {
	DesktopIndex(ws *workspace.Workspace) (int, bool)
	// MoveWindow records a move ahead of the source confirming it.
	MoveWindow(id platform.WindowID, desktop int)
}

// Policy turns client enter/leave requests into desktop moves on the
// source. A move the source accepts is applied to the model right away so
// that later requests in the same batch see it; the source event that
// follows is then a no-op.
type Policy struct {
	source   platform.Source
	desktops WindowModel
	allow    bool
	logger   *slog.Logger
}

// NewPolicy creates a policy. When allow is false every request is
// logged and dropped.
func NewPolicy(source platform.Source, desktops WindowModel, allow bool, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		source:   source,
		desktops: desktops,
		allow:    allow,
		logger:   logger,
	}
}

// SetAllow toggles whether client requests are honoured.
func (p *Policy) SetAllow(allow bool) {
	if p.allow != allow {
		p.logger.Info("client request policy changed", "allow", allow)
	}
	p.allow = allow
}

// Allowed reports whether client requests are honoured.
func (p *Policy) Allowed() bool { return p.allow }

// RequestJoin moves the view's window to ws. A view already on ws is left
// alone, which keeps sticky windows sticky.
func (p *Policy) RequestJoin(v *view.View, ws *workspace.Workspace) {
	if !p.allow {
		p.logger.Info("join request denied by policy", "window_id", v.ID(), "workspace", ws.Name())
		return
	}
	if v.On(ws) {
		return
	}
	p.move(v, ws)
}

// RequestLeave is honoured only for views on several workspaces: the
// window is moved to the first workspace it keeps. A window always stays
// on at least one desktop.
func (p *Policy) RequestLeave(v *view.View, ws *workspace.Workspace) {
	if !p.allow {
		p.logger.Info("leave request denied by policy", "window_id", v.ID(), "workspace", ws.Name())
		return
	}
	if !v.On(ws) {
		return
	}
	for _, cur := range v.Workspaces() {
		if cur != ws {
			p.move(v, cur)
			return
		}
	}
	p.logger.Info("leave request ignored, window would have no workspace",
		"window_id", v.ID(),
		"workspace", ws.Name())
}

func (p *Policy) move(v *view.View, ws *workspace.Workspace) {
	desktop, ok := p.desktops.DesktopIndex(ws)
	if !ok {
		p.logger.Debug("request for workspace without desktop", "workspace", ws.Name())
		return
	}
	if err := p.source.SetWindowDesktop(platform.WindowID(v.ID()), desktop); err != nil {
		p.logger.Warn("failed to move window",
			"window_id", v.ID(),
			"desktop", desktop,
			"error", err)
		return
	}
	p.logger.Debug("window moved on request", "window_id", v.ID(), "desktop", desktop)
	p.desktops.MoveWindow(platform.WindowID(v.ID()), desktop)
}
