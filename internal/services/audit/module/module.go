// Package module wires the audit sink and exposes its port
package module

import (
	"net/http"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/audit/domain"
	"dragoman/internal/services/audit/repo"
	"dragoman/internal/services/audit/service"
)

// Ports exposed by the audit module
type Ports struct {
	Sink domain.SinkPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the audit module; the ClickHouse mirror engages only when
// the seam is wired on deps
func New(deps modkit.Deps) *Module {
	svc := service.New(repokit.TxRunner(deps.PG), repo.NewHybrid(deps.CH))

	m := &Module{deps: deps}
	m.ports = Ports{Sink: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "audit" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
