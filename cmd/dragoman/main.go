// dragoman is the operator CLI: one-shot assignment runs, pool
// inspection and draining, and policy checks against the live store
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/module"
	"dragoman/internal/platform/config"
	"dragoman/internal/platform/logger"
	"dragoman/internal/platform/store"

	auditmod "dragoman/internal/services/audit/module"
	bookingmod "dragoman/internal/services/booking/module"
	engdom "dragoman/internal/services/engine/domain"
	engmod "dragoman/internal/services/engine/module"
	policydom "dragoman/internal/services/policy/domain"
	policymod "dragoman/internal/services/policy/module"
	poolmod "dragoman/internal/services/pool/module"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"
)

// errEscalated maps an escalated outcome onto exit code 2 so schedulers
// can tell "needs a human" apart from "broke"
var errEscalated = errors.New("escalated")

type graph struct {
	st     *store.Store
	engine engmod.Ports
	pool   poolmod.Ports
	policy policymod.Ports
}

func openGraph(ctx context.Context) (*graph, func(), error) {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	l := logger.Get()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 2)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", true),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "dragoman",
			ClientTag:  "cli",
		},
	}, store.WithLogger(*l))
	if err != nil {
		return nil, nil, err
	}

	deps := modkit.Deps{
		Log:   *l,
		Cfg:   root,
		PG:    st.PG,
		CH:    st.CH,
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

	g := &graph{
		st:     st,
		engine: module.MustPortsOf[engmod.Ports](engine),
		pool:   pl,
		policy: pol,
	}
	closeFn := func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}
	return g, closeFn, nil
}

func emit(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <bookingId>",
		Short: "Decide one booking now: assign, pool, or escalate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad booking id %q: %w", args[0], err)
			}
			g, closeFn, err := openGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := g.engine.Runner.Assign(cmd.Context(), id)
			if err := emit(out); err != nil {
				return err
			}
			if out.Kind == engdom.KindEscalated {
				return errEscalated
			}
			return nil
		},
	}
}

func newPoolCmd() *cobra.Command {
	pool := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and drive the waiting pool",
	}
	pool.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Entry counts per state plus readiness ages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, closeFn, err := openGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := g.pool.Manager.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return emit(stats)
		},
	})
	pool.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Sweep the pool and decide every ready entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, closeFn, err := openGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := cmd.Context()

			rep, err := g.pool.Sweeper.Tick(ctx)
			if err != nil {
				return err
			}
			var all []engdom.Outcome
			if len(rep.Exhausted) > 0 {
				ids := make([]int64, 0, len(rep.Exhausted))
				for _, e := range rep.Exhausted {
					ids = append(ids, e.BookingID)
				}
				all = append(all, g.engine.Drainer.EscalateExhausted(ctx, ids)...)
			}
			for {
				outs, err := g.engine.Drainer.Drain(ctx)
				if err != nil {
					return err
				}
				if len(outs) == 0 {
					break
				}
				all = append(all, outs...)
			}
			return emit(all)
		},
	})
	return pool
}

func newPolicyCmd() *cobra.Command {
	policy := &cobra.Command{
		Use:   "policy",
		Short: "Show and validate the assignment policy",
	}
	policy.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "The policy currently in force",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, closeFn, err := openGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := g.policy.Reader.Policy(cmd.Context())
			if err != nil {
				return err
			}
			return emit(p)
		},
	})
	policy.AddCommand(&cobra.Command{
		Use:   "validate <file|->",
		Short: "Check a partial policy update without persisting it",
		Long:  "Reads a JSON patch from the given file (or stdin for -), merges it onto the live policy, and prints the sanitised result the write would produce.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPatch(args[0])
			if err != nil {
				return err
			}
			var patch policydom.Patch
			if err := json.Unmarshal(raw, &patch); err != nil {
				return fmt.Errorf("bad patch JSON: %w", err)
			}

			g, closeFn, err := openGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			cur, err := g.policy.Reader.Policy(cmd.Context())
			if err != nil {
				return err
			}
			next, err := cur.Apply(patch)
			if err != nil {
				return err
			}
			return emit(next)
		},
	})
	return policy
}

func readPatch(arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(arg)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "dragoman",
		Short:         "Interpreter auto-assignment engine, operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), newPoolCmd(), newPolicyCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, errEscalated) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
