package account

import (
	"context"
	"log/slog"
	"time"
)

// DeactivationSweeper periodically finalizes accounts whose
// deactivation grace period has elapsed. Each run is idempotent:
// accounts already finalized drop out of the DeactivationPending
// filter, so an interrupted run is safe to repeat. It must run in a
// single instance per deployment; duplicate sweeps are wasteful rather
// than unsafe.
type DeactivationSweeper struct {
	store     AccountStore
	lifecycle *LifecycleService
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
}

// NewDeactivationSweeper creates a sweeper that scans at the given
// interval (daily is sufficient).
func NewDeactivationSweeper(store AccountStore, lifecycle *LifecycleService, logger *slog.Logger, interval time.Duration) *DeactivationSweeper {
	return &DeactivationSweeper{
		store:     store,
		lifecycle: lifecycle,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the sweep loop until the context is cancelled. Ticks are
// processed one at a time on a single goroutine; a tick arriving while
// a sweep is still executing is dropped by the ticker, so runs never
// overlap.
func (s *DeactivationSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep performs one pass: find grace-elapsed DeactivationPending
// accounts and finalize each. Per-account failures are logged and do
// not abort the pass.
func (s *DeactivationSweeper) Sweep(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.lifecycle.GracePeriod())

	due, err := s.store.ListDeactivationDue(ctx, cutoff)
	if err != nil {
		s.logger.Error("deactivation sweep query failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	finalized := 0
	for _, acct := range due {
		if _, err := s.lifecycle.FinalizeDeactivation(ctx, acct.ID); err != nil {
			s.logger.Warn("finalize deactivation failed", "account_id", acct.ID, "error", err)
			continue
		}
		finalized++
		s.logger.Info("account deactivated", "account_id", acct.ID, "email", acct.Email)
	}
	s.logger.Info("deactivation sweep completed", "eligible", len(due), "finalized", finalized)
}
