// Package service implements the cached policy resolver and the admin
// policy writer
package service

import (
	"context"
	"fmt"
	"time"

	"dragoman/internal/core/modes"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/platform/logger"
	"dragoman/internal/services/policy/domain"
	"dragoman/internal/services/policy/repo"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the pub/sub channel policy writes announce on
const InvalidationChannel = "dragoman:policy:invalidate"

// Config for the policy service
type Config struct {
	// CacheTTL bounds how long resolved profiles and the generation counter
	// are served without a store read; defaults to 5 minutes
	CacheTTL time.Duration

	// Fallback is the policy served before the first admin write; zero
	// value means domain.Default()
	Fallback *domain.Policy
}

// Service implements domain.ReaderPort and domain.WriterPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Repo]
	RDB    redis.UniversalClient // optional invalidation bus
	Cfg    Config

	cache *gocache.Cache
}

// New constructs the policy service
func New(db repokit.TxRunner, b repokit.Binder[repo.Repo], rdb redis.UniversalClient, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Service{
		DB:     db,
		Binder: b,
		RDB:    rdb,
		Cfg:    cfg,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

func (s *Service) run(ctx context.Context, fn func(r repo.Repo) error) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return fn(s.Binder.Bind(q))
	})
}

// generation returns the current policy generation, cached for the TTL. A
// stale value only delays a flush by one cache window; writes through this
// process flush immediately
func (s *Service) generation(ctx context.Context) (int64, error) {
	if v, ok := s.cache.Get("gen"); ok {
		return v.(int64), nil
	}
	var gen int64
	err := s.run(ctx, func(r repo.Repo) error {
		var err error
		gen, err = r.Generation(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.cache.SetDefault("gen", gen)
	return gen, nil
}

// Policy implements domain.ReaderPort. The default policy is served before
// the first admin write
func (s *Service) Policy(ctx context.Context) (domain.Policy, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return domain.Policy{}, err
	}
	key := fmt.Sprintf("policy:%d", gen)
	if v, ok := s.cache.Get(key); ok {
		return v.(domain.Policy), nil
	}

	var (
		p     domain.Policy
		found bool
	)
	if err := s.run(ctx, func(r repo.Repo) error {
		var err error
		p, found, err = r.GetPolicy(ctx)
		return err
	}); err != nil {
		return domain.Policy{}, err
	}
	if !found {
		p = s.fallback()
	}
	s.cache.SetDefault(key, p)
	return p, nil
}

func (s *Service) fallback() domain.Policy {
	if s.Cfg.Fallback != nil {
		return s.Cfg.Fallback.Sanitised()
	}
	return domain.Default()
}

// Resolve implements domain.ReaderPort: thresholds from the
// (meeting type, mode) table, meeting-type default row, then hard-coded
// defaults; weights locked per mode except under CUSTOM
func (s *Service) Resolve(ctx context.Context, mt modes.MeetingType, mode modes.Mode) (domain.Resolved, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return domain.Resolved{}, err
	}
	key := fmt.Sprintf("resolve:%d:%s:%s", gen, mt, mode)
	if v, ok := s.cache.Get(key); ok {
		return v.(domain.Resolved), nil
	}

	p, err := s.Policy(ctx)
	if err != nil {
		return domain.Resolved{}, err
	}

	res := domain.Resolved{
		Thresholds: modes.DefaultThresholds(mt),
		Weights:    p.Weights(),
		Priority:   modes.Priority(mode),
	}
	err = s.run(ctx, func(r repo.Repo) error {
		t, priority, found, err := r.GetThresholds(ctx, mt, mode)
		if err != nil {
			return err
		}
		if !found {
			logger.C(ctx).Warn().
				Str("meeting_type", mt.String()).
				Str("mode", mode.String()).
				Msg("no threshold row; serving defaults")
			return nil
		}
		res.Thresholds = t
		if priority > 0 {
			res.Priority = priority
		}
		return nil
	})
	if err != nil {
		return domain.Resolved{}, err
	}
	s.cache.SetDefault(key, res)
	return res, nil
}

// Write implements domain.WriterPort: validate, merge, sanitise, persist,
// bump the generation, flush the local cache, and announce on the bus
func (s *Service) Write(ctx context.Context, patch domain.Patch) (domain.Policy, error) {
	var out domain.Policy
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		cur, found, err := r.GetPolicy(ctx)
		if err != nil {
			return err
		}
		if !found {
			cur = s.fallback()
		}
		next, err := cur.Apply(patch)
		if err != nil {
			return err
		}
		gen, err := r.PutPolicy(ctx, next)
		if err != nil {
			return err
		}
		next.Generation = gen
		out = next
		return nil
	})
	if err != nil {
		return domain.Policy{}, err
	}

	s.Invalidate()
	if s.RDB != nil {
		if perr := s.RDB.Publish(ctx, InvalidationChannel, out.Generation).Err(); perr != nil {
			logger.C(ctx).Warn().Err(perr).Msg("policy invalidation publish failed")
		}
	}
	return out, nil
}

// Invalidate drops every cached profile so the next read observes the store
func (s *Service) Invalidate() { s.cache.Flush() }

// ListenInvalidations blocks on the Redis invalidation channel and flushes
// the cache on every message. Returns nil immediately when no bus is wired
func (s *Service) ListenInvalidations(ctx context.Context) error {
	if s.RDB == nil {
		return nil
	}
	sub := s.RDB.Subscribe(ctx, InvalidationChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.Invalidate()
			logger.C(ctx).Debug().Str("payload", msg.Payload).Msg("policy cache flushed")
		}
	}
}
