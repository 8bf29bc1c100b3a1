// Package module wires the booking store and exposes its ports
package module

import (
	"net/http"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/booking/domain"
	"dragoman/internal/services/booking/repo"
	"dragoman/internal/services/booking/service"
)

// Ports exposed by the booking module
type Ports struct {
	Reader domain.ReaderPort
	Roster domain.RosterPort
	Writer domain.WriterPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the booking module
func New(deps modkit.Deps) *Module {
	svc := service.New(repokit.TxRunner(deps.PG), repo.NewPG())

	m := &Module{deps: deps}
	m.ports = Ports{Reader: svc, Roster: svc, Writer: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "booking" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
