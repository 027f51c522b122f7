package daemon

import (
	"testing"

	"github.com/1broseidon/wsinterop/internal/platform"
)

type policyFixture struct {
	*syncFixture
	source *platform.StaticSource
	policy *Policy
}

func newPolicyFixture(allow bool, windows ...platform.Window) *policyFixture {
	f := newSyncFixture()
	src := platform.NewStaticSource([]string{"a", "b", "c"})
	for _, w := range windows {
		src.AddWindow(w)
	}
	snap, _ := TakeSnapshot(src)
	p := NewPolicy(src, f.sync, allow, nil)
	f.sync.SetPolicy(p)
	f.sync.Resync(snap.Desktops, snap.Windows)
	return &policyFixture{syncFixture: f, source: src, policy: p}
}

func (f *policyFixture) desktop(t *testing.T, id platform.WindowID) int {
	t.Helper()
	windows, err := f.source.Windows()
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range windows {
		if w.ID == id {
			return w.Desktop
		}
	}
	t.Fatalf("window %d not in source", id)
	return 0
}

func TestPolicy_Join(t *testing.T) {
	f := newPolicyFixture(true, platform.Window{ID: 1, Desktop: 0})
	v, _ := f.sync.View(1)

	f.policy.RequestJoin(v, f.sync.Workspaces()[2])

	if got := f.desktop(t, 1); got != 2 {
		t.Errorf("desktop = %d, want 2", got)
	}
}

func TestPolicy_JoinCurrentKeepsSticky(t *testing.T) {
	f := newPolicyFixture(true, platform.Window{ID: 1, Desktop: platform.AllDesktops})
	v, _ := f.sync.View(1)

	f.policy.RequestJoin(v, f.sync.Workspaces()[1])

	if got := f.desktop(t, 1); got != platform.AllDesktops {
		t.Errorf("desktop = %d, want sticky", got)
	}
}

func TestPolicy_Leave(t *testing.T) {
	tests := []struct {
		name    string
		desktop int
		leave   int
		want    int
	}{
		{"only workspace", 1, 1, 1},
		{"not on workspace", 1, 0, 1},
		{"sticky leaves first", platform.AllDesktops, 0, 1},
		{"sticky leaves other", platform.AllDesktops, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPolicyFixture(true, platform.Window{ID: 1, Desktop: tt.desktop})
			v, _ := f.sync.View(1)

			f.policy.RequestLeave(v, f.sync.Workspaces()[tt.leave])

			if got := f.desktop(t, 1); got != tt.want {
				t.Errorf("desktop = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPolicy_Disallowed(t *testing.T) {
	f := newPolicyFixture(false, platform.Window{ID: 1, Desktop: platform.AllDesktops})
	v, _ := f.sync.View(1)
	ws := f.sync.Workspaces()

	f.policy.RequestLeave(v, ws[0])
	f.policy.RequestJoin(v, ws[0])
	if got := f.desktop(t, 1); got != platform.AllDesktops {
		t.Fatalf("desktop = %d, want unchanged", got)
	}

	f.policy.SetAllow(true)
	f.policy.RequestLeave(v, ws[0])
	if got := f.desktop(t, 1); got != 1 {
		t.Errorf("desktop = %d after allowing, want 1", got)
	}
}

func TestPolicy_ClientRequestReachesSource(t *testing.T) {
	f := newPolicyFixture(true, platform.Window{ID: 1, Desktop: 0})
	top := f.tl.Toplevels()[0]
	h, ok := f.im.Handle(top)
	if !ok {
		t.Fatal("no handle")
	}

	h.RequestJoin.Emit(f.sync.Workspaces()[1])

	if got := f.desktop(t, 1); got != 1 {
		t.Errorf("desktop = %d, want 1", got)
	}
}

func TestPolicy_MoveUpdatesModelBeforeSourceEvent(t *testing.T) {
	f := newPolicyFixture(true, platform.Window{ID: 1, Desktop: platform.AllDesktops})
	v, _ := f.sync.View(1)
	ws := f.sync.Workspaces()

	// unstick onto b: join b is a no-op, leaving a and c settles on b
	f.policy.RequestJoin(v, ws[1])
	f.policy.RequestLeave(v, ws[0])
	f.policy.RequestLeave(v, ws[2])

	if got := f.desktop(t, 1); got != 1 {
		t.Errorf("desktop = %d, want 1", got)
	}
	if got := workspaceNames(v.Workspaces()); !equalStrings(got, []string{"b"}) {
		t.Errorf("view on %v, want [b]", got)
	}
}
