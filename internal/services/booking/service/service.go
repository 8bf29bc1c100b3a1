// Package service implements the booking store ports over the Postgres repo
package service

import (
	"context"
	"time"

	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/booking/domain"
	"dragoman/internal/services/booking/repo"
)

// Service implements domain.ReaderPort, domain.RosterPort and domain.WriterPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Repo]
}

// New constructs the booking service
func New(db repokit.TxRunner, b repokit.Binder[repo.Repo]) *Service {
	return &Service{DB: db, Binder: b}
}

func (s *Service) run(ctx context.Context, fn func(r repo.Repo) error) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return fn(s.Binder.Bind(q))
	})
}

// Get implements domain.ReaderPort
func (s *Service) Get(ctx context.Context, id int64) (domain.Booking, error) {
	var b domain.Booking
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		b, err = r.Get(ctx, id)
		return err
	})
	return b, err
}

// ActiveInterpreters implements domain.ReaderPort
func (s *Service) ActiveInterpreters(ctx context.Context) ([]domain.Interpreter, error) {
	var out []domain.Interpreter
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.ActiveInterpreters(ctx)
		return err
	})
	return out, err
}

// Overlapping implements domain.ReaderPort
func (s *Service) Overlapping(
	ctx context.Context,
	empCode string,
	from, to time.Time,
	statuses []domain.Status,
) ([]domain.Conflict, error) {
	var out []domain.Conflict
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.Overlapping(ctx, empCode, from, to, statuses)
		return err
	})
	return out, err
}

// ApprovedInWindow implements domain.ReaderPort
func (s *Service) ApprovedInWindow(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.ApprovedInWindow(ctx, from, to)
		return err
	})
	return out, err
}

// LastDR implements domain.ReaderPort
func (s *Service) LastDR(ctx context.Context, q domain.DRQuery) (domain.LastDR, error) {
	var last domain.LastDR
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		last, err = r.LastDR(ctx, q)
		return err
	})
	return last, err
}

// DaysSinceLast implements domain.ReaderPort
func (s *Service) DaysSinceLast(ctx context.Context, empCode string, now time.Time) (float64, bool, error) {
	var (
		days float64
		ever bool
	)
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		days, ever, err = r.DaysSinceLast(ctx, empCode, now)
		return err
	})
	return days, ever, err
}

// RosterSnapshot implements domain.RosterPort
func (s *Service) RosterSnapshot(ctx context.Context) ([]string, error) {
	var out []string
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		out, err = r.RosterSnapshot(ctx)
		return err
	})
	return out, err
}

// RecordRoster implements domain.RosterPort
func (s *Service) RecordRoster(ctx context.Context, empCodes []string, at time.Time) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.RecordRoster(ctx, empCodes, at)
	})
}

// PurgeDeparted implements domain.RosterPort
func (s *Service) PurgeDeparted(ctx context.Context, empCodes []string) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.PurgeDeparted(ctx, empCodes)
	})
}

// SetStatus implements domain.WriterPort
func (s *Service) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	return s.run(ctx, func(r repo.Repo) error {
		return r.SetStatus(ctx, id, status)
	})
}

// CommitAssignment implements domain.WriterPort. One transaction: take the
// interpreter row lock, re-validate the half-open overlap, then stamp the
// interpreter and approve. Returns committed=false when a conflicting
// booking landed between scoring and commit, or when the booking left the
// waiting state under a concurrent writer
func (s *Service) CommitAssignment(
	ctx context.Context,
	id int64,
	empCode string,
	from, to time.Time,
	hardBlock []domain.Status,
) (bool, error) {
	committed := false
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		if err := r.LockInterpreter(ctx, empCode); err != nil {
			return err
		}
		conflicts, err := r.Overlapping(ctx, empCode, from, to, hardBlock)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return nil // lost the race; committed stays false
		}
		stamped, err := r.WriteAssignment(ctx, id, empCode)
		if err != nil {
			return err
		}
		committed = stamped
		return nil
	})
	return committed, err
}
