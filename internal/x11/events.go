package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// PropertyFunc is called with the window and the name of a property that
// changed on it.
type PropertyFunc func(win xproto.Window, atom string)

// WatchProperties subscribes to PropertyNotify on win and calls fn for
// every change. Callbacks run on the EventLoop goroutine.
func (c *Connection) WatchProperties(win xproto.Window, fn PropertyFunc) error {
	if err := xwindow.New(c.XUtil, win).Listen(xproto.EventMaskPropertyChange); err != nil {
		return err
	}
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		fn(ev.Window, name)
	}).Connect(c.XUtil, win)
	return nil
}

// Unwatch drops every callback registered for win.
func (c *Connection) Unwatch(win xproto.Window) {
	xevent.Detach(c.XUtil, win)
}
