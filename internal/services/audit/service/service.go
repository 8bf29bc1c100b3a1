// Package service implements the best-effort decision log sink
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dragoman/internal/modkit/repokit"
	"dragoman/internal/platform/logger"
	"dragoman/internal/services/audit/domain"
	"dragoman/internal/services/audit/repo"
)

// Service implements domain.SinkPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Repo]

	// Fallback receives entries the store rejected; defaults to stderr
	Fallback io.Writer
}

// New constructs the audit sink
func New(db repokit.TxRunner, b repokit.Binder[repo.Repo]) *Service {
	return &Service{DB: db, Binder: b, Fallback: os.Stderr}
}

// Append implements domain.SinkPort. Store trouble never propagates: the
// entry is dumped to the fallback writer and the decision stands
func (s *Service) Append(ctx context.Context, e domain.Entry) {
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).Insert(ctx, e)
	})
	if err != nil {
		s.dump(ctx, e, err)
		return
	}

	// Mirror outside the transaction; analytics lag is acceptable
	if err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).Mirror(ctx, e)
	}); err != nil {
		logger.C(ctx).Warn().Err(err).Int64("booking_id", e.BookingID).Msg("audit mirror failed")
	}
}

func (s *Service) dump(ctx context.Context, e domain.Entry, cause error) {
	logger.C(ctx).Error().Err(cause).Int64("booking_id", e.BookingID).Msg("audit append failed")
	raw, err := json.Marshal(e)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", e))
	}
	fmt.Fprintf(s.Fallback, "audit append failed (%v): %s\n", cause, raw)
}
