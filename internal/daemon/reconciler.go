package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/wsinterop/internal/platform"
)

// Snapshot is the full state of a source at one point in time.
type Snapshot struct {
	Desktops []platform.Desktop
	Windows  []platform.Window
}

// TakeSnapshot reads desktops and windows from source.
func TakeSnapshot(source platform.Source) (Snapshot, error) {
	desktops, err := source.Desktops()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read desktops: %w", err)
	}
	windows, err := source.Windows()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read windows: %w", err)
	}
	return Snapshot{Desktops: desktops, Windows: windows}, nil
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically re-reads the source and hands the snapshot to
// apply, correcting drift from missed events.
type Reconciler struct {
	interval time.Duration
	source   platform.Source
	apply    func(Snapshot)
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler. apply is called from the
// reconciler's goroutine and must hand the snapshot over to the loop.
func NewReconciler(cfg ReconcilerConfig, source platform.Source, apply func(Snapshot)) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		interval: interval,
		source:   source,
		apply:    apply,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	snap, err := TakeSnapshot(r.source)
	if err != nil {
		r.logger.Error("reconciler: failed to read source", "error", err)
		return
	}
	r.apply(snap)
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}
