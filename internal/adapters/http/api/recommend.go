// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	service "github.com/okian/fencerpulse/internal/app"
	"github.com/okian/fencerpulse/internal/domain/attributes"
)

const maxRequestBytes = 64 << 10

// RecommendDependencies defines the interface for recommendation requests.
type RecommendDependencies interface {
	Recommend(ctx context.Context, attrs map[string]any, topN, topK int) (Recommendation, error)
	SampleAttributes() map[string]any
}

// recommendRequest is the body of POST /recommend. Zero list lengths use the
// server defaults.
type recommendRequest struct {
	Attributes map[string]any `json:"attributes" validate:"required"`
	TopN       int            `json:"top_n" validate:"gte=0,lte=10"`
	TopK       int            `json:"top_k" validate:"gte=0,lte=64"`
}

type sampleResponse struct {
	Attributes     map[string]any `json:"attributes"`
	Recommendation Recommendation `json:"recommendation"`
}

var (
	validate     *validator.Validate //nolint:gochecknoglobals // shared validator instance
	validateOnce sync.Once           //nolint:gochecknoglobals // guards validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps RecommendDependencies
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies) *RecommendHandler {
	return &RecommendHandler{deps: deps}
}

// HandleRecommend handles POST /recommend requests.
func (h *RecommendHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend"
	if r.Method != http.MethodPost {
		methodNotFound(w, op)
		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	var req recommendRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := getValidator().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, err := h.deps.Recommend(r.Context(), req.Attributes, req.TopN, req.TopK)
	if err != nil {
		writeRecommendError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleSample handles GET /recommend/sample requests.
func (h *RecommendHandler) HandleSample(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend_sample"
	if r.Method != http.MethodGet {
		methodNotFound(w, op)
		return
	}
	attrs := h.deps.SampleAttributes()
	rec, err := h.deps.Recommend(r.Context(), attrs, 0, 0)
	if err != nil {
		writeRecommendError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sampleResponse{Attributes: attrs, Recommendation: rec})
}

func writeRecommendError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, attributes.ErrSchema):
		writeError(w, http.StatusBadRequest, "schema_error", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrModelNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "model_not_loaded", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
