package interop

import (
	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/signal"
)

// mapping records that a Handle's toplevel is on a workspace. It is never
// visible to clients directly; they see its enter and leave events.
type mapping struct {
	handle    *Handle
	workspace Workspace
	onWsGone  *signal.Listener
}

func newMapping(h *Handle, ws Workspace) *mapping {
	mp := &mapping{handle: h, workspace: ws}
	mp.onWsGone = ws.OnDestroy(mp.destroy)
	h.mappings.Set(ws, mp)
	mp.broadcast("workspace_enter")
	return mp
}

func (mp *mapping) destroy() {
	mp.broadcast("workspace_leave")
	mp.onWsGone.Disconnect()
	mp.handle.mappings.Delete(mp.workspace)
}

func (mp *mapping) broadcast(op string) {
	for _, hr := range mp.handle.resources.Keys() {
		mp.send(hr, op)
	}
}

// send delivers op to one handle proxy, addressed to the first workspace
// proxy that shares its context, and settles the toplevel. Clients with no
// workspace proxy in that context get nothing.
func (mp *mapping) send(hr *ipc.Resource, op string) {
	ctx := hr.Addon().Ctx
	for _, wr := range mp.workspace.Resources() {
		if wr.Addon().Ctx != ctx {
			continue
		}
		hr.Send(op, ipc.Fields{"workspace": wr.ID()})
		mp.handle.toplevel.SendDone()
		return
	}
}
