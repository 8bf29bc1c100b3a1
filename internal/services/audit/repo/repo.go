// Package repo persists assignment decisions: Postgres rows plus a
// best-effort ClickHouse mirror for analytics
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dragoman/internal/modkit/repokit"
	"dragoman/internal/platform/store"
	"dragoman/internal/services/audit/domain"
)

// Repo is the audit persistence surface
type Repo interface {
	Insert(ctx context.Context, e domain.Entry) error
	Mirror(ctx context.Context, e domain.Entry) error
}

// NewHybrid returns a binder writing rows to Postgres and mirroring to
// ClickHouse when a seam is wired
func NewHybrid(ch store.Clickhouse) repokit.Binder[Repo] {
	return &hybridBinder{ch: ch}
}

type hybridBinder struct{ ch store.Clickhouse }

func (b *hybridBinder) Bind(q repokit.Queryer) Repo {
	return &hybridStore{pg: q, ch: b.ch}
}

type hybridStore struct {
	pg repokit.Queryer
	ch store.Clickhouse
}

// fingerprintHex renders the policy fingerprint identically for both
// stores; a signed-integer column would flip high-bit fingerprints negative
func fingerprintHex(fp uint64) string { return fmt.Sprintf("%016x", fp) }

// Insert appends the decision row
func (s *hybridStore) Insert(ctx context.Context, e domain.Entry) error {
	const sqlq = `
		INSERT INTO assignment_log (
			booking_id, outcome, reason, interpreter, score,
			pre_hours, post_hours, breakdown,
			policy_fingerprint, correlation_id, batch_id, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	pre, err := json.Marshal(e.PreHours)
	if err != nil {
		return err
	}
	post, err := json.Marshal(e.PostHours)
	if err != nil {
		return err
	}
	breakdown, err := json.Marshal(e.Breakdown)
	if err != nil {
		return err
	}
	_, err = s.pg.Exec(ctx, sqlq,
		e.BookingID, e.Outcome, e.Reason, e.Interpreter, e.Score,
		pre, post, breakdown,
		fingerprintHex(e.PolicyFingerprint), e.CorrelationID, e.BatchID, e.DecidedAt,
	)
	return err
}

// mirrorRow is the flattened ClickHouse shape
type mirrorRow struct {
	BookingID     int64     `ch:"booking_id"`
	Outcome       string    `ch:"outcome"`
	Reason        string    `ch:"reason"`
	Interpreter   string    `ch:"interpreter"`
	Score         float64   `ch:"score"`
	Fingerprint   string    `ch:"policy_fingerprint"`
	CorrelationID string    `ch:"correlation_id"`
	DecidedAt     time.Time `ch:"decided_at"`
}

// Mirror inserts the analytics copy; a nil seam is a no-op
func (s *hybridStore) Mirror(ctx context.Context, e domain.Entry) error {
	if s.ch == nil {
		return nil
	}
	return s.ch.Insert(ctx, "dragoman.assignment_decisions", mirrorRow{
		BookingID:     e.BookingID,
		Outcome:       e.Outcome,
		Reason:        e.Reason,
		Interpreter:   e.Interpreter,
		Score:         e.Score,
		Fingerprint:   fingerprintHex(e.PolicyFingerprint),
		CorrelationID: e.CorrelationID,
		DecidedAt:     e.DecidedAt,
	})
}
