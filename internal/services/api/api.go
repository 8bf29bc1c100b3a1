// Package api provides the operator HTTP API for the engine
package api

import (
	"dragoman/internal/platform/config"
	"dragoman/internal/platform/logger"
	phttp "dragoman/internal/platform/net/http"
	"dragoman/internal/platform/store"

	"dragoman/internal/modkit"
	"dragoman/internal/modkit/httpkit"
	"dragoman/internal/modkit/module"
	"dragoman/internal/modkit/swaggerkit"

	metamod "dragoman/internal/services/api/meta/module"
	apipolicy "dragoman/internal/services/api/policy/module"
	apipool "dragoman/internal/services/api/pool/module"

	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ports are the worker surfaces the operator API serves. The caller owns
// the module graph and injects the ports; the API never builds services
type Ports struct {
	Pool         pooldom.ManagerPort
	PolicyReader policydom.ReaderPort
	PolicyWriter policydom.WriterPort
}

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Ports          Ports
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the operator API onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	mods := []module.Module{
		metamod.New(deps),
		apipool.New(deps, modkit.WithPorts(apipool.Ports{
			Manager: opt.Ports.Pool,
		})),
		apipolicy.New(deps, modkit.WithPorts(apipolicy.Ports{
			Reader: opt.Ports.PolicyReader,
			Writer: opt.Ports.PolicyWriter,
		})),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			m.MountRoutes(api)
		}
	})

	r.Handle("/metrics", promhttp.Handler())
}
