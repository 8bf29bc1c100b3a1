// Package module wires the policy operator endpoints into the API
package module

import (
	"net/http"

	modkit "dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	str "dragoman/internal/platform/strings"

	policyhttp "dragoman/internal/services/api/policy/http"
	policydom "dragoman/internal/services/policy/domain"
)

// Ports declares the injected reader/writer ports for this API module
type Ports struct {
	Reader policydom.ReaderPort
	Writer policydom.WriterPort
}

// Module implements the policy API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the policy API module over the injected ports
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("policy"),
		modkit.WithPrefix("/policy"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Reader == nil || injected.Writer == nil {
		panic("policy API module requires Reader and Writer ports (from services/policy)")
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
		policyhttp.Register(r, injected.Reader, injected.Writer)
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
func (m *Module) Name() string { return str.MustString(m.name, "policy") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns nil; the policy API consumes ports, it exposes none
func (m *Module) Ports() any { return nil }
