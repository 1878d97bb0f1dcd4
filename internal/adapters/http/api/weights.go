package api

import (
	"context"
	"net/http"

	"github.com/okian/unirank/internal/domain/types"
)

// WeightsDependencies exposes the weights of the last recompute.
type WeightsDependencies interface {
	Weights(ctx context.Context) types.WeightsView
}

// WeightsHandler handles weights requests.
type WeightsHandler struct {
	deps WeightsDependencies
}

// NewWeightsHandler creates a new weights handler.
func NewWeightsHandler(deps WeightsDependencies) *WeightsHandler {
	return &WeightsHandler{deps: deps}
}

// HandleGetWeights handles GET /weights requests.
func (h *WeightsHandler) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.deps.Weights(r.Context()))
}
