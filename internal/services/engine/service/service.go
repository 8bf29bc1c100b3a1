// Package service implements the run orchestrator: validation, pool
// routing, scoring, atomic commit, and audit
package service

import (
	"context"
	"errors"
	"time"

	perr "dragoman/internal/platform/errors"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	dom "dragoman/internal/services/engine/domain"
	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"

	"github.com/avast/retry-go"
	"github.com/mitchellh/hashstructure/v2"
	"k8s.io/utils/clock"
)

// Config for the engine service
type Config struct {
	// ConflictIncludeWaiting widens the hard-block overlap check to
	// waiting bookings; approve-only by default
	ConflictIncludeWaiting bool

	// BatchSize caps one balance-mode drain; non-positive uses the
	// standard 10/15 sizing
	BatchSize int

	// CommitRetries bounds rescoring after a lost commit race
	CommitRetries int

	// StoreRetryDelay seeds the bounded exponential backoff on store reads
	StoreRetryDelay time.Duration

	// WorkerID names this worker on pool leases
	WorkerID string
}

// Service implements domain.RunnerPort, domain.DrainerPort and
// domain.AdjusterPort
type Service struct {
	Bookings bookingdom.ReaderPort
	Roster   bookingdom.RosterPort
	Writer   bookingdom.WriterPort
	Policy   policydom.ReaderPort
	Pool     pooldom.ManagerPort
	Audit    auditdom.SinkPort
	Clock    clock.PassiveClock
	Cfg      Config
}

// New constructs the engine service
func New(
	bookings bookingdom.ReaderPort,
	roster bookingdom.RosterPort,
	writer bookingdom.WriterPort,
	policy policydom.ReaderPort,
	pool pooldom.ManagerPort,
	audit auditdom.SinkPort,
	clk clock.PassiveClock,
	cfg Config,
) *Service {
	if cfg.CommitRetries <= 0 {
		cfg.CommitRetries = 2
	}
	if cfg.StoreRetryDelay <= 0 {
		cfg.StoreRetryDelay = 100 * time.Millisecond
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "engine"
	}
	return &Service{
		Bookings: bookings,
		Roster:   roster,
		Writer:   writer,
		Policy:   policy,
		Pool:     pool,
		Audit:    audit,
		Clock:    clk,
		Cfg:      cfg,
	}
}

// hardBlock is the status set whose overlaps forbid an assignment
func (s *Service) hardBlock() []bookingdom.Status {
	if s.Cfg.ConflictIncludeWaiting {
		return []bookingdom.Status{bookingdom.StatusApprove, bookingdom.StatusWaiting}
	}
	return []bookingdom.Status{bookingdom.StatusApprove}
}

// retryStore runs a store read under bounded exponential backoff. Context
// cancellation and terminal error codes stop the retries early
func (s *Service) retryStore(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(3),
		retry.Delay(s.Cfg.StoreRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			return !perr.IsCode(err, perr.ErrorCodeNotFound) &&
				!perr.IsCode(err, perr.ErrorCodeValidation)
		}),
	)
}

// storeFailureReason maps a final store error onto the escalation reason
func storeFailureReason(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return dom.ReasonTimeout
	}
	return dom.ReasonStoreDown
}

// fingerprint stamps the policy identity onto audit rows
func fingerprint(p policydom.Policy) uint64 {
	h, err := hashstructure.Hash(p, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}
