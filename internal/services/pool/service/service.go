// Package service implements the pool manager and sweeper over the repo
package service

import (
	"context"
	"time"

	"dragoman/internal/core/modes"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/platform/logger"
	"dragoman/internal/services/pool/domain"
	"dragoman/internal/services/pool/repo"

	"k8s.io/utils/clock"
)

// Config for the pool service
type Config struct {
	// LeaseTTL is the watchdog interval after which a crashed worker's
	// lease becomes reclaimable; defaults to 60s
	LeaseTTL time.Duration

	// RetryBase seeds the exponential requeue delay; defaults to 30s
	RetryBase time.Duration

	// MaxAttempts bounds failed-entry retries; defaults to domain.MaxAttempts
	MaxAttempts int
}

// Service implements domain.ManagerPort and domain.SweeperPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Repo]
	Clock  clock.PassiveClock
	Cfg    Config
}

// New constructs the pool service
func New(db repokit.TxRunner, b repokit.Binder[repo.Repo], clk clock.PassiveClock, cfg Config) *Service {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 60 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = domain.MaxAttempts
	}
	return &Service{DB: db, Binder: b, Clock: clk, Cfg: cfg}
}

func (s *Service) run(ctx context.Context, fn func(r repo.Repo) error) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return fn(s.Binder.Bind(q))
	})
}

// Add implements domain.ManagerPort; idempotent by booking id
func (s *Service) Add(ctx context.Context, e domain.Entry) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.Upsert(ctx, e)
	})
}

// Remove implements domain.ManagerPort
func (s *Service) Remove(ctx context.Context, bookingID int64) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.Delete(ctx, bookingID)
	})
}

// Lease implements domain.ManagerPort
func (s *Service) Lease(ctx context.Context, owner string, limit int) ([]domain.Entry, error) {
	var out []domain.Entry
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.Lease(ctx, owner, limit, s.Cfg.LeaseTTL, s.Clock.Now())
		return err
	})
	return out, err
}

// Release implements domain.ManagerPort: back to pending, attempt not counted
func (s *Service) Release(ctx context.Context, bookingID int64, reason string) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.ToPending(ctx, bookingID, reason)
	})
}

// Fail implements domain.ManagerPort: to failed, attempt counted
func (s *Service) Fail(ctx context.Context, bookingID int64, reason string) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.ToFailed(ctx, bookingID, reason)
	})
}

// ListReady implements domain.ManagerPort
func (s *Service) ListReady(ctx context.Context) ([]domain.Entry, error) {
	var out []domain.Entry
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.ListState(ctx, domain.StateReady)
		return err
	})
	return out, err
}

// Stats implements domain.ManagerPort
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.Stats(ctx, s.Clock.Now())
		return err
	})
	return out, err
}

// Tick implements domain.SweeperPort: one pass of mark-ready, lease
// reclaim, and failed-entry requeue, surfacing exhausted entries
func (s *Service) Tick(ctx context.Context) (domain.SweepReport, error) {
	now := s.Clock.Now()
	var rep domain.SweepReport
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		if rep.MarkedReady, err = r.MarkReady(ctx, now, modes.DeadlineOverrideWindow); err != nil {
			return err
		}
		if rep.Reclaimed, err = r.ReclaimExpired(ctx, now); err != nil {
			return err
		}
		if rep.Requeued, err = r.Requeue(ctx, now, s.Cfg.MaxAttempts, s.Cfg.RetryBase); err != nil {
			return err
		}
		rep.Exhausted, err = r.ListExhausted(ctx, s.Cfg.MaxAttempts)
		return err
	})
	if err != nil {
		return domain.SweepReport{}, err
	}
	if rep.MarkedReady+rep.Reclaimed+rep.Requeued+len(rep.Exhausted) > 0 {
		logger.C(ctx).Info().
			Int("marked_ready", rep.MarkedReady).
			Int("reclaimed", rep.Reclaimed).
			Int("requeued", rep.Requeued).
			Int("exhausted", len(rep.Exhausted)).
			Msg("pool sweep")
	}
	return rep, nil
}
