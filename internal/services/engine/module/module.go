// Package module wires the engine service and exposes its ports
package module

import (
	"net/http"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	"dragoman/internal/services/engine/domain"
	"dragoman/internal/services/engine/service"
	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"
)

// PortsIn are the collaborator ports the engine consumes
type PortsIn struct {
	Bookings bookingdom.ReaderPort
	Roster   bookingdom.RosterPort
	Writer   bookingdom.WriterPort
	Policy   policydom.ReaderPort
	Pool     pooldom.ManagerPort
	Audit    auditdom.SinkPort
}

// Ports exposed by the engine module
type Ports struct {
	Runner   domain.RunnerPort
	Drainer  domain.DrainerPort
	Adjuster domain.AdjusterPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the engine module over the injected collaborator ports
func New(deps modkit.Deps, in PortsIn, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.BatchSize != 0 {
		opts.BatchSize = overrides.BatchSize
	}
	if overrides.WorkerID != "" {
		opts.WorkerID = overrides.WorkerID
	}
	if overrides.ConflictIncludeWaiting {
		opts.ConflictIncludeWaiting = true
	}

	svc := service.New(
		in.Bookings, in.Roster, in.Writer, in.Policy, in.Pool, in.Audit,
		deps.Clock,
		service.Config{
			ConflictIncludeWaiting: opts.ConflictIncludeWaiting,
			BatchSize:              opts.BatchSize,
			CommitRetries:          opts.CommitRetries,
			StoreRetryDelay:        opts.StoreRetryDelay,
			WorkerID:               opts.WorkerID,
		},
	)

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc, Drainer: svc, Adjuster: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "engine" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(httpkit.Router) {}
