package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/1broseidon/wsinterop/internal/platform"
)

// brokenSource fails every read.
type brokenSource struct {
	*platform.StaticSource
}

func (brokenSource) Desktops() ([]platform.Desktop, error) {
	return nil, errors.New("display gone")
}

func newBrokenSource() brokenSource {
	return brokenSource{platform.NewStaticSource([]string{"a"})}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcileNow_AppliesSnapshot(t *testing.T) {
	src := platform.NewStaticSource([]string{"a", "b"})
	src.AddWindow(platform.Window{ID: 1, Title: "one", Desktop: 1})

	var got []Snapshot
	r := NewReconciler(ReconcilerConfig{Logger: quietLogger()}, src, func(s Snapshot) {
		got = append(got, s)
	})
	r.ReconcileNow()

	if len(got) != 1 {
		t.Fatalf("applied %d snapshots, want 1", len(got))
	}
	if len(got[0].Desktops) != 2 || len(got[0].Windows) != 1 {
		t.Errorf("snapshot = %+v", got[0])
	}
}

func TestReconcileNow_SourceErrorSkipsApply(t *testing.T) {
	r := NewReconciler(ReconcilerConfig{Logger: quietLogger()}, newBrokenSource(), func(Snapshot) {
		t.Error("apply called after a failed read")
	})
	r.ReconcileNow()

	if _, err := TakeSnapshot(newBrokenSource()); err == nil {
		t.Error("TakeSnapshot hid the source error")
	}
}

func TestReconcileNow_RecoversPanic(t *testing.T) {
	src := platform.NewStaticSource([]string{"a"})
	r := NewReconciler(ReconcilerConfig{Logger: quietLogger()}, src, func(Snapshot) {
		panic("boom")
	})
	r.ReconcileNow()
}

func TestReconciler_RunTicksUntilCancelled(t *testing.T) {
	src := platform.NewStaticSource([]string{"a"})
	applied := make(chan struct{}, 16)
	r := NewReconciler(ReconcilerConfig{Interval: 5 * time.Millisecond, Logger: quietLogger()}, src, func(Snapshot) {
		select {
		case applied <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconcile pass")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
