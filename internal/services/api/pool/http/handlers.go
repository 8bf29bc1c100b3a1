// Package http provides the operator pool endpoints
package http

import (
	stdhttp "net/http"

	"dragoman/internal/modkit/httpkit"
	pooldom "dragoman/internal/services/pool/domain"
)

// Register mounts the pool endpoints on the given router
func Register(r httpkit.Router, pool pooldom.ManagerPort) {
	h := &handlers{pool: pool}

	httpkit.Get(r, "/stats", h.stats)
}

type handlers struct{ pool pooldom.ManagerPort }

// swagger:route GET /pool/stats Pool poolStats
// @Summary Pool entry counts per state plus readiness ages
// @Tags Pool
// @Produce json
// @Success 200 type pooldom.Stats ok
// @Router /pool/stats [get]
func (h *handlers) stats(r *stdhttp.Request) (any, error) {
	return h.pool.Stats(r.Context())
}
