package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/metrics"
)

// Sweeper periodically expires overdue invites and recounts categories
// whose stored team count drifted from the teams table.
type Sweeper struct {
	invites  *InviteManager
	store    TeamRepository
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewSweeper(invites *InviteManager, s TeamRepository, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	return &Sweeper{invites: invites, store: s, interval: interval, metrics: m, logger: logging.OrDefault(logger)}
}

// Run sweeps every interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *Sweeper) Sweep(ctx context.Context) {
	expired, err := w.invites.Sweep(ctx)
	if err != nil {
		w.logger.Error("invite sweep failed", "error", err)
	} else if expired > 0 {
		w.logger.Info("expired overdue invites", "count", expired)
	}

	// categories touched within the last interval may have a saga in flight
	corrections, err := w.store.ReconcileCategoryCounts(ctx, w.interval)
	if err != nil {
		w.logger.Error("category reconcile failed", "error", err)
		return
	}
	for _, c := range corrections {
		w.logger.Warn("category count corrected", "category_id", c.CategoryID, "previous", c.Previous, "actual", c.Actual)
	}
	w.metrics.CategoryCorrected(len(corrections))
}
