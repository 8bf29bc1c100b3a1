// @title         Dragoman Admin API
// @version       0.1.0
// @description   Operator endpoints for the interpreter auto-assignment engine

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/module"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/platform/config"
	"dragoman/internal/platform/logger"
	phttp "dragoman/internal/platform/net/http"
	"dragoman/internal/platform/store"

	"dragoman/internal/services/api"
	auditmod "dragoman/internal/services/audit/module"
	bookingmod "dragoman/internal/services/booking/module"
	engmod "dragoman/internal/services/engine/module"
	engsvc "dragoman/internal/services/engine/service"
	policymod "dragoman/internal/services/policy/module"
	poolmod "dragoman/internal/services/pool/module"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	sweepCfg := root.Prefix("CORE_SWEEP_")
	adminCfg := root.Prefix("CORE_ADMIN_")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", true),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "dragoman",
			ClientTag:  "engine",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(ctx, st)

	// optional policy invalidation bus
	var rdb redis.UniversalClient
	if addr := rdCfg.MayString("ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: rdCfg.MayString("PASSWORD", ""),
			DB:       rdCfg.MayInt("DB", 0),
		})
		defer func() { _ = rdb.Close() }()
	}

	deps := modkit.Deps{
		Log:   *l,
		Cfg:   root,
		PG:    st.PG,
		CH:    st.CH,
		RDB:   rdb,
		Clock: clock.RealClock{},
	}

	booking := bookingmod.New(deps)
	policy := policymod.New(deps)
	pool := poolmod.New(deps, poolmod.Options{})
	audit := auditmod.New(deps)

	bk := module.MustPortsOf[bookingmod.Ports](booking)
	pol := module.MustPortsOf[policymod.Ports](policy)
	pl := module.MustPortsOf[poolmod.Ports](pool)
	au := module.MustPortsOf[auditmod.Ports](audit)

	engine := engmod.New(deps, engmod.PortsIn{
		Bookings: bk.Reader,
		Roster:   bk.Roster,
		Writer:   bk.Writer,
		Policy:   pol.Reader,
		Pool:     pl.Manager,
		Audit:    au.Sink,
	}, engmod.Options{})
	eng := module.MustPortsOf[engmod.Ports](engine)

	for _, m := range []module.Module{booking, policy, pool, audit, engine} {
		module.Register(m.Name(), m.Ports())
	}

	// admin HTTP; NewServer reads API_PORT under its prefix, bridge the
	// operator-facing CORE_ADMIN_PORT knob onto it
	if os.Getenv("CORE_ADMIN_API_PORT") == "" {
		_ = os.Setenv("CORE_ADMIN_API_PORT", adminCfg.MayString("PORT", ":4600"))
	}
	srv := phttp.NewServer(adminCfg)
	api.Mount(srv.Router(), api.Options{
		Config: adminCfg,
		Store:  st,
		Logger: l,
		Ports: api.Ports{
			Pool:         pl.Manager,
			PolicyReader: pol.Reader,
			PolicyWriter: pol.Writer,
		},
		EnableSwagger:  adminCfg.MayBool("SWAGGER", true),
		EnableProfiler: adminCfg.MayBool("PROFILER", false),
	})

	// sweep: advance pool states, escalate spent retries, drain ready
	// entries under a token bucket, export the pool gauges
	limiter := rate.NewLimiter(
		rate.Limit(sweepCfg.MayFloat64("DRAIN_RPS", 2)),
		sweepCfg.MayInt("DRAIN_BURST", 4),
	)
	sweep := func() {
		sctx, cancel := context.WithTimeout(ctx, sweepCfg.MayDuration("TIMEOUT", 2*time.Minute))
		defer cancel()

		if _, err := eng.Adjuster.AdjustRoster(sctx); err != nil {
			l.Warn().Err(err).Msg("roster adjust failed")
		}

		rep, err := pl.Sweeper.Tick(sctx)
		if err != nil {
			l.Warn().Err(err).Msg("pool sweep failed")
			return
		}
		if len(rep.Exhausted) > 0 {
			ids := make([]int64, 0, len(rep.Exhausted))
			for _, e := range rep.Exhausted {
				ids = append(ids, e.BookingID)
			}
			eng.Drainer.EscalateExhausted(sctx, ids)
		}

		for {
			if err := limiter.Wait(sctx); err != nil {
				return
			}
			outs, err := eng.Drainer.Drain(sctx)
			if err != nil {
				l.Warn().Err(err).Msg("pool drain failed")
				return
			}
			if len(outs) == 0 {
				break
			}
		}

		if stats, err := pl.Manager.Stats(sctx); err == nil {
			engsvc.ObservePoolStats(
				stats.Pending, stats.Ready, stats.Processing, stats.Failed,
				stats.OldestReadyAge.Seconds(),
			)
		}
	}

	sched := cron.New()
	if _, err := sched.AddFunc(sweepCfg.MayString("SCHEDULE", "@every 30s"), sweep); err != nil {
		l.Panic().Err(err).Msg("bad CORE_SWEEP_SCHEDULE")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shctx)
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		<-sched.Stop().Done()
		return nil
	})
	if rdb != nil {
		g.Go(func() error {
			err := pol.Service.ListenInvalidations(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// converge fast after restarts instead of waiting out the first tick
	sweep()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("engine stopped")
	}
	l.Info().Msg("engine shut down")
}
