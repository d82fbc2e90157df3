// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/fencerpulse/internal/adapters/repository"
	"github.com/okian/fencerpulse/internal/domain/types"
)

// ModelDependencies defines the interface for model management.
type ModelDependencies interface {
	ModelInfo() types.ModelInfo
	Reload(ctx context.Context) error
}

// ModelHandler serves model metadata and reload requests.
type ModelHandler struct {
	deps ModelDependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps ModelDependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// HandleGetModel handles GET /model requests.
func (h *ModelHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotFound(w, "api.model")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ModelInfo())
}

// HandleReload handles POST /model/reload requests. A failed reload keeps
// the previous model and reports why.
func (h *ModelHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.model_reload"
	if r.Method != http.MethodPost {
		methodNotFound(w, op)
		return
	}
	if err := h.deps.Reload(r.Context()); err != nil {
		switch {
		case errors.Is(err, repository.ErrArtifactNotFound):
			writeError(w, http.StatusNotFound, "artifact_not_found", WrapKind(op, ErrNotFound, err))
		case errors.Is(err, repository.ErrCorruptArtifact):
			writeError(w, http.StatusUnprocessableEntity, "corrupt_artifact", Wrap(op, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ModelInfo())
}
