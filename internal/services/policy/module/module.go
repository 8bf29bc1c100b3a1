// Package module wires the policy service and exposes its ports
package module

import (
	"net/http"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/policy/domain"
	"dragoman/internal/services/policy/repo"
	"dragoman/internal/services/policy/service"
)

// Ports exposed by the policy module
type Ports struct {
	Reader domain.ReaderPort
	Writer domain.WriterPort

	// Service is the concrete resolver for invalidation listeners
	Service *service.Service
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the policy module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	fb := opts.Fallback
	svc := service.New(repokit.TxRunner(deps.PG), repo.NewPG(), deps.RDB, service.Config{
		CacheTTL: opts.CacheTTL,
		Fallback: &fb,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Reader: svc, Writer: svc, Service: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "policy" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
