package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/craftbay/craftbay/internal/core/domain"
)

// WatchdogConfig tunes the reclamation loop.
type WatchdogConfig struct {
	// SweepInterval is the pause between sweeps. Defaults to
	// DefaultSweepInterval.
	SweepInterval time.Duration

	// IdleThreshold is the number of consecutive zero-player sweeps an
	// instance may accumulate before the sweep that pushes it past the
	// threshold stops it. Defaults to DefaultIdleThreshold.
	IdleThreshold int
}

const (
	DefaultSweepInterval = 60 * time.Second
	DefaultIdleThreshold = 15
)

func (c *WatchdogConfig) applyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
}

// Watchdog periodically enumerates managed instances and stops the ones
// that have been idle past the threshold. It discovers instances from the
// runtime on every sweep, so containers created at any time — or surviving
// a process restart — are picked up automatically.
//
// The idle counter map is owned exclusively by the watchdog goroutine;
// no other component reads or writes it. Counters are keyed by container
// identity, not owner: a deleted-and-recreated instance is a fresh
// container and must start from a clean counter.
type Watchdog struct {
	manager *Manager
	cfg     WatchdogConfig
	log     *slog.Logger

	idle map[string]int
}

// NewWatchdog wires a Watchdog around the lifecycle manager. logger nil
// falls back to slog.Default().
func NewWatchdog(manager *Manager, cfg WatchdogConfig, logger *slog.Logger) *Watchdog {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		manager: manager,
		cfg:     cfg,
		log:     logger,
		idle:    make(map[string]int),
	}
}

// Run sweeps until ctx is cancelled. An in-flight sweep always finishes;
// cancellation is only observed between sweeps.
func (w *Watchdog) Run(ctx context.Context) {
	w.log.Info("activity watchdog started",
		"sweep_interval", w.cfg.SweepInterval, "idle_threshold", w.cfg.IdleThreshold)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("activity watchdog stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one enumeration-and-idle-check cycle. Errors are handled per
// instance: one unreachable or failing instance never aborts the checks
// for the rest.
func (w *Watchdog) Sweep(ctx context.Context) {
	instances, err := w.manager.List(ctx)
	if err != nil {
		w.log.Error("sweep: list instances", "error", err)
		return
	}

	seen := make(map[string]struct{}, len(instances))
	for i := range instances {
		seen[instances[i].ID] = struct{}{}
		w.sweepInstance(ctx, &instances[i])
	}

	// Containers the runtime no longer lists drop out of the counter map.
	for id := range w.idle {
		if _, ok := seen[id]; !ok {
			delete(w.idle, id)
		}
	}

	w.log.Info("sweep complete", "instances", len(instances), "idle_counters", snapshot(w.idle))
}

func (w *Watchdog) sweepInstance(ctx context.Context, inst *domain.Instance) {
	if inst.State != domain.StateRunning {
		return
	}

	report, err := w.manager.Query(ctx, inst.Owner)
	if err != nil {
		w.log.Error("sweep: query instance", "owner", inst.Owner, "error", err)
		return
	}
	if report.Players == nil {
		// Still booting; no player count to judge idleness by.
		return
	}

	if report.Players.Online > 0 {
		w.idle[inst.ID] = 0
		return
	}

	w.idle[inst.ID]++
	if w.idle[inst.ID] <= w.cfg.IdleThreshold {
		return
	}

	w.log.Warn("stopping idle instance",
		"owner", inst.Owner, "idle_sweeps", w.idle[inst.ID])
	if err := w.manager.Stop(ctx, inst.Owner); err != nil {
		w.log.Error("sweep: stop idle instance", "owner", inst.Owner, "error", err)
	}
	// Reset regardless of the stop outcome; a stop that failed leaves a
	// running instance that simply accumulates idle sweeps again.
	w.idle[inst.ID] = 0
}

// snapshot copies the counter map for logging, so the log value is stable
// even if asynchronous handlers format it later.
func snapshot(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
