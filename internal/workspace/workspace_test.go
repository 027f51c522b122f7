package workspace_test

import (
	"testing"

	"github.com/1broseidon/wsinterop/internal/ipc"
	"github.com/1broseidon/wsinterop/internal/ipc/ipctest"
	"github.com/1broseidon/wsinterop/internal/workspace"
)

func announced(t *testing.T, conn *ipctest.Conn) []ipc.ObjectID {
	t.Helper()
	var ids []ipc.ObjectID
	for _, msg := range conn.Named("workspace") {
		id, err := ipctest.Arg[ipc.ObjectID](msg, "workspace")
		if err != nil {
			t.Fatalf("decode workspace event: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestBind_AnnouncesExistingWorkspaces(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	m.Create("one")
	m.Create("two")

	conn := ipctest.Connect(d)
	conn.Reset()
	conn.Bind(d, workspace.ManagerInterface, 1, 5)

	ids := announced(t, conn)
	if len(ids) != 2 {
		t.Fatalf("announced %d workspaces, want 2", len(ids))
	}
	names := conn.Named("name")
	if len(names) != 2 {
		t.Fatalf("got %d name events, want 2", len(names))
	}
	for i, want := range []string{"one", "two"} {
		got, err := ipctest.Arg[string](names[i], "name")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("name[%d] = %q, want %q", i, got, want)
		}
		if names[i].Object != ids[i] {
			t.Errorf("name[%d] sent on %d, want %d", i, names[i].Object, ids[i])
		}
	}
	last, _ := conn.Last("done")
	if last.Object != 5 {
		t.Errorf("done sent on %d, want manager 5", last.Object)
	}
}

func TestBind_AllocatesContextPerBinding(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	ws := m.Create("main")

	conn := ipctest.Connect(d)
	conn.Bind(d, workspace.ManagerInterface, 1, 5)
	conn.Bind(d, workspace.ManagerInterface, 1, 6)

	m1, _ := conn.Client.Resource(5)
	m2, _ := conn.Client.Resource(6)
	ctx1, ok1 := m.ContextOf(m1)
	ctx2, ok2 := m.ContextOf(m2)
	if !ok1 || !ok2 {
		t.Fatal("ContextOf failed on bound managers")
	}
	if ctx1 == ctx2 {
		t.Fatalf("two bindings share context %d", ctx1)
	}

	proxies := ws.Resources()
	if len(proxies) != 2 {
		t.Fatalf("workspace has %d proxies, want 2", len(proxies))
	}
	if proxies[0].Addon().Ctx != ctx1 || proxies[1].Addon().Ctx != ctx2 {
		t.Errorf("proxy contexts = %d,%d, want %d,%d",
			proxies[0].Addon().Ctx, proxies[1].Addon().Ctx, ctx1, ctx2)
	}
	for _, p := range proxies {
		got, ok := m.FromResource(p)
		if !ok || got != ws {
			t.Errorf("FromResource(%d) = %v,%v, want workspace", p.ID(), got, ok)
		}
	}
}

func TestCreate_AnnouncesToBoundManagers(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	conn := ipctest.Connect(d)
	conn.Bind(d, workspace.ManagerInterface, 1, 5)
	conn.Reset()

	m.Create("late")

	ids := announced(t, conn)
	if len(ids) != 1 {
		t.Fatalf("announced %d workspaces, want 1", len(ids))
	}
	ops := conn.Ops()
	want := []string{
		"5:workspace",
		ipctest.Op(ids[0], "id"),
		ipctest.Op(ids[0], "name"),
		"5:done",
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %q, want %q", i, ops[i], want[i])
		}
	}
}

func TestSetName(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	ws := m.Create("old")
	conn := ipctest.Connect(d)
	conn.Bind(d, workspace.ManagerInterface, 1, 5)
	conn.Reset()

	ws.SetName("old")
	if len(conn.Messages()) != 0 {
		t.Fatalf("unchanged name sent %v", conn.Ops())
	}

	ws.SetName("new")
	msg, ok := conn.Last("name")
	if !ok {
		t.Fatal("no name event")
	}
	if got, _ := ipctest.Arg[string](msg, "name"); got != "new" {
		t.Errorf("name = %q, want %q", got, "new")
	}
	if ws.Name() != "new" {
		t.Errorf("Name() = %q", ws.Name())
	}
}

func TestDestroy_ListenersSeeLiveProxies(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	ws := m.Create("doomed")
	conn := ipctest.Connect(d)
	conn.Bind(d, workspace.ManagerInterface, 1, 5)
	conn.Reset()

	seen := -1
	ws.OnDestroy(func() {
		seen = len(ws.Resources())
		if len(conn.Named("removed")) != 0 {
			t.Error("removed sent before destroy listeners ran")
		}
	})
	ws.Destroy()

	if seen != 1 {
		t.Errorf("listener saw %d proxies, want 1", seen)
	}
	if len(conn.Named("removed")) != 1 {
		t.Errorf("removed events = %d, want 1", len(conn.Named("removed")))
	}
	if len(ws.Resources()) != 0 {
		t.Errorf("destroyed workspace still has %d proxies", len(ws.Resources()))
	}
	if _, ok := m.Lookup(ws.ID()); ok {
		t.Error("destroyed workspace still registered")
	}

	proxy, ok := conn.Client.Resource(removedProxy(t, conn))
	if !ok {
		t.Fatal("workspace proxy should stay in the client table until the client destroys it")
	}
	if !proxy.Addon().Inert() {
		t.Error("proxy of a removed workspace is not inert")
	}
	if _, ok := m.FromResource(proxy); ok {
		t.Error("inert proxy still resolves")
	}
}

func TestDestroy_TwicePanics(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	ws := m.Create("x")
	ws.Destroy()

	defer func() {
		if recover() == nil {
			t.Fatal("second Destroy did not panic")
		}
	}()
	ws.Destroy()
}

func TestContextOf_RejectsOtherResources(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	m.Create("x")
	conn := ipctest.Connect(d)
	conn.Bind(d, workspace.ManagerInterface, 1, 5)

	if _, ok := m.ContextOf(nil); ok {
		t.Error("ContextOf(nil) succeeded")
	}
	display, _ := conn.Client.Resource(ipc.DisplayID)
	if _, ok := m.ContextOf(display); ok {
		t.Error("ContextOf(display) succeeded")
	}
	ids := announced(t, conn)
	proxy, _ := conn.Client.Resource(ids[0])
	if _, ok := m.ContextOf(proxy); ok {
		t.Error("ContextOf(workspace proxy) succeeded")
	}
}

func TestDisplayDestroy_RemovesWorkspaces(t *testing.T) {
	d := ipc.NewDisplay(ipc.Options{})
	m := workspace.NewManager(d, nil)
	a := m.Create("a")
	b := m.Create("b")

	d.Destroy()

	if !a.Destroyed() || !b.Destroyed() {
		t.Fatal("workspaces survived display destroy")
	}
	if len(m.Workspaces()) != 0 {
		t.Errorf("%d workspaces left", len(m.Workspaces()))
	}
	if len(d.Globals()) != 0 {
		t.Errorf("%d globals left", len(d.Globals()))
	}
}

func removedProxy(t *testing.T, conn *ipctest.Conn) ipc.ObjectID {
	t.Helper()
	msg, ok := conn.Last("removed")
	if !ok {
		t.Fatal("no removed event")
	}
	return msg.Object
}
