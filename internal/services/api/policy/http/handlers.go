// Package http provides the operator policy endpoints
package http

import (
	stdhttp "net/http"

	"dragoman/internal/modkit/httpkit"
	policydom "dragoman/internal/services/policy/domain"
)

// Register mounts the policy endpoints on the given router
func Register(r httpkit.Router, reader policydom.ReaderPort, writer policydom.WriterPort) {
	h := &handlers{reader: reader, writer: writer}

	httpkit.Get(r, "/", h.show)
	httpkit.PutJSON[policydom.Patch](r, "/", h.write)
	httpkit.PostJSON[policydom.Patch](r, "/validate", h.validate)
}

type handlers struct {
	reader policydom.ReaderPort
	writer policydom.WriterPort
}

// swagger:route GET /policy Policy policyShow
// @Summary The assignment policy currently in force
// @Tags Policy
// @Produce json
// @Success 200 type policydom.Policy ok
// @Router /policy [get]
func (h *handlers) show(r *stdhttp.Request) (any, error) {
	return h.reader.Policy(r.Context())
}

// swagger:route PUT /policy Policy policyWrite
// @Summary Merge a partial policy update and bump the generation
// @Tags Policy
// @Accept json
// @Produce json
// @Param payload body policydom.Patch true "Partial update; omitted fields keep their value"
// @Success 200 type policydom.Policy ok
// @Router /policy [put]
func (h *handlers) write(r *stdhttp.Request, patch policydom.Patch) (any, error) {
	return h.writer.Write(r.Context(), patch)
}

// swagger:route POST /policy/validate Policy policyValidate
// @Summary Validate a partial policy update without persisting it
// @Tags Policy
// @Accept json
// @Produce json
// @Param payload body policydom.Patch true "Candidate update"
// @Success 200 type policydom.Policy "the sanitised result the write would produce"
// @Router /policy/validate [post]
func (h *handlers) validate(r *stdhttp.Request, patch policydom.Patch) (any, error) {
	cur, err := h.reader.Policy(r.Context())
	if err != nil {
		return nil, err
	}
	return cur.Apply(patch)
}
