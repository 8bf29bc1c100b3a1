// Package module wires the pool operator endpoints into the API
package module

import (
	"net/http"

	modkit "dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	str "dragoman/internal/platform/strings"

	poolhttp "dragoman/internal/services/api/pool/http"
	pooldom "dragoman/internal/services/pool/domain"
)

// Ports declares the injected worker port(s) for this API module
type Ports struct {
	Manager pooldom.ManagerPort
}

// Module implements the pool API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the pool API module over the injected manager port
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("pool"),
		modkit.WithPrefix("/pool"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Manager == nil {
		panic("pool API module requires the Manager port (from services/pool)")
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		poolhttp.Register(r, injected.Manager)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "pool") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns nil; the pool API consumes ports, it exposes none
func (m *Module) Ports() any { return nil }
