// Package module wires the pool service and exposes its ports
package module

import (
	"net/http"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/pool/domain"
	"dragoman/internal/services/pool/repo"
	"dragoman/internal/services/pool/service"
)

// Ports exposed by the pool module
type Ports struct {
	Manager domain.ManagerPort
	Sweeper domain.SweeperPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the pool module
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.LeaseTTL != 0 {
		opts.LeaseTTL = overrides.LeaseTTL
	}
	if overrides.RetryBase != 0 {
		opts.RetryBase = overrides.RetryBase
	}
	if overrides.MaxAttempts != 0 {
		opts.MaxAttempts = overrides.MaxAttempts
	}

	svc := service.New(repokit.TxRunner(deps.PG), repo.NewPG(), deps.Clock, service.Config{
		LeaseTTL:    opts.LeaseTTL,
		RetryBase:   opts.RetryBase,
		MaxAttempts: opts.MaxAttempts,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Manager: svc, Sweeper: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "pool" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
