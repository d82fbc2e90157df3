package api_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/fencerpulse/internal/adapters/http/api"
	"github.com/okian/fencerpulse/internal/adapters/repository"
	service "github.com/okian/fencerpulse/internal/app"
	"github.com/okian/fencerpulse/internal/domain/attributes"
	"github.com/okian/fencerpulse/internal/domain/types"
	"github.com/okian/fencerpulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// Mock implementations for testing
type mockDependencies struct {
	recommendErr error
	reloadErr    error
	loaded       bool

	gotAttrs map[string]any
	gotTopN  int
	gotTopK  int
	reloads  int
}

func (m *mockDependencies) Recommend(_ context.Context, attrs map[string]any, topN, topK int) (types.Recommendation, error) {
	m.gotAttrs, m.gotTopN, m.gotTopK = attrs, topN, topK
	if m.recommendErr != nil {
		return types.Recommendation{}, m.recommendErr
	}
	primary := types.Candidate{Class: "sabre", Label: "Sabre", Probability: 0.7}
	return types.Recommendation{
		PredictionID: "pred-1",
		Primary:      primary,
		Top: []types.Candidate{
			primary,
			{Class: "foil", Label: "Foil", Probability: 0.2},
			{Class: "epee", Label: "Epee", Probability: 0.1},
		},
		Explanation: []types.Reason{
			{Name: "Sprint 20m", Feature: "sprint_20m_s", Contribution: -0.8, Direction: "↓"},
		},
		ModelTrainedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (m *mockDependencies) SampleAttributes() map[string]any {
	return map[string]any{attributes.Age: 17.0, attributes.DominantHand: "right"}
}

func (m *mockDependencies) ModelInfo() types.ModelInfo {
	return types.ModelInfo{Loaded: m.loaded, Path: "data/model.json", Rows: 42}
}

func (m *mockDependencies) Reload(context.Context) error {
	m.reloads++
	if m.reloadErr == nil {
		m.loaded = true
	}
	return m.reloadErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"predictions": 3}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{loaded: true}
		mux := newMux(deps)

		Convey("Then health should report the model state", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w), ShouldResemble, map[string]any{"status": "ok", "model_loaded": true})

			deps.loaded = false
			w = do(mux, http.MethodGet, "/healthz", "")
			So(decode(w)["status"], ShouldEqual, "degraded")
		})

		Convey("And stats should be served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(decode(w)["predictions"], ShouldEqual, float64(3))
		})

		Convey("And metrics should be exposed in text format", func() {
			do(mux, http.MethodGet, "/stats", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "fencerpulse_recommender_http_requests_total")
		})

		Convey("And wrong methods or unknown paths should be not found", func() {
			So(do(mux, http.MethodGet, "/recommend", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/healthz", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/model/reload", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("And a wrong method should carry a JSON error naming the operation", func() {
			w := do(mux, http.MethodGet, "/recommend", "")
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(decode(w), ShouldResemble, map[string]any{"code": "not_found", "message": "api.recommend: not found"})
			So(decode(do(mux, http.MethodDelete, "/model", ""))["message"], ShouldEqual, "api.model: not found")
			So(decode(do(mux, http.MethodPut, "/stats", ""))["message"], ShouldEqual, "api.stats: not found")
		})
	})
}

func TestRecommendHandler(t *testing.T) {
	Convey("Given a recommend endpoint", t, func() {
		deps := &mockDependencies{loaded: true}
		mux := newMux(deps)

		Convey("When posting a valid request", func() {
			w := do(mux, http.MethodPost, "/recommend",
				`{"attributes":{"age":17,"dominant_hand":"left"},"top_n":2,"top_k":4}`)

			Convey("Then it should return the recommendation", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["prediction_id"], ShouldEqual, "pred-1")
				So(body["primary"].(map[string]any)["label"], ShouldEqual, "Sabre")
				So(body["top"], ShouldHaveLength, 3)
				So(body, ShouldNotContainKey, "unknown_categories")
			})

			Convey("And the request should reach the service intact", func() {
				So(deps.gotTopN, ShouldEqual, 2)
				So(deps.gotTopK, ShouldEqual, 4)
				So(deps.gotAttrs["dominant_hand"], ShouldEqual, "left")
				age, ok := deps.gotAttrs["age"].(json.Number)
				So(ok, ShouldBeTrue)
				So(string(age), ShouldEqual, "17")
			})
		})

		Convey("When the body is malformed", func() {
			cases := []struct {
				name string
				body string
			}{
				{"not json", `{`},
				{"unknown field", `{"attributes":{},"extra":1}`},
				{"missing attributes", `{"top_n":1}`},
				{"top_n too large", `{"attributes":{"age":1},"top_n":11}`},
				{"negative top_k", `{"attributes":{"age":1},"top_k":-1}`},
			}
			for _, tc := range cases {
				Convey(fmt.Sprintf("Then %s should be a bad request", tc.name), func() {
					w := do(mux, http.MethodPost, "/recommend", tc.body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["code"], ShouldEqual, "bad_request")
				})
			}
		})

		Convey("When the service reports errors", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{fmt.Errorf("%w: age: missing", attributes.ErrSchema), http.StatusBadRequest, "schema_error"},
				{service.ErrModelNotLoaded, http.StatusServiceUnavailable, "model_not_loaded"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, tc := range cases {
				Convey(fmt.Sprintf("Then %v should map to %d", tc.err, tc.status), func() {
					deps.recommendErr = tc.err
					w := do(mux, http.MethodPost, "/recommend", `{"attributes":{"age":1}}`)
					So(w.Code, ShouldEqual, tc.status)
					body := decode(w)
					So(body["code"], ShouldEqual, tc.code)
					So(body["message"], ShouldContainSubstring, "api.recommend")
				})
			}
		})

		Convey("When asking for the sample", func() {
			w := do(mux, http.MethodGet, "/recommend/sample", "")

			Convey("Then it should return the sample with its recommendation", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["attributes"].(map[string]any)["dominant_hand"], ShouldEqual, "right")
				So(body["recommendation"].(map[string]any)["prediction_id"], ShouldEqual, "pred-1")
				So(deps.gotTopN, ShouldEqual, 0)
			})
		})

		Convey("When asking for the sample without a model", func() {
			deps.recommendErr = service.ErrModelNotLoaded
			w := do(mux, http.MethodGet, "/recommend/sample", "")

			Convey("Then it should be unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestModelHandler(t *testing.T) {
	Convey("Given a model endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When getting model info", func() {
			w := do(mux, http.MethodGet, "/model", "")

			Convey("Then it should describe the model", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["loaded"], ShouldEqual, false)
				So(body["path"], ShouldEqual, "data/model.json")
			})
		})

		Convey("When reloading succeeds", func() {
			w := do(mux, http.MethodPost, "/model/reload", "")

			Convey("Then it should return the fresh info", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["loaded"], ShouldEqual, true)
				So(deps.reloads, ShouldEqual, 1)
			})
		})

		Convey("When reloading fails", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{repository.ErrArtifactNotFound, http.StatusNotFound, "artifact_not_found"},
				{fmt.Errorf("%w: bad checksum", repository.ErrCorruptArtifact), http.StatusUnprocessableEntity, "corrupt_artifact"},
				{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
			}
			for _, tc := range cases {
				Convey(fmt.Sprintf("Then %v should map to %d", tc.err, tc.status), func() {
					deps.reloadErr = tc.err
					w := do(mux, http.MethodPost, "/model/reload", "")
					So(w.Code, ShouldEqual, tc.status)
					So(decode(w)["code"], ShouldEqual, tc.code)
				})
			}
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given handlers wrapped by the metrics middleware", t, func() {
		Convey("When a handler panics", func() {
			h := api.MetricsMiddleware(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}, "test_panic")
			w := httptest.NewRecorder()

			Convey("Then the client should get a JSON 500", func() {
				So(func() { h(w, httptest.NewRequest(http.MethodGet, "/", nil)) }, ShouldNotPanic)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(w)["code"], ShouldEqual, "internal_error")
			})
		})

		Convey("When a handler writes its status twice", func() {
			h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				w.WriteHeader(http.StatusTeapot)
			}, "test_double")
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then the first status should win", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When a request body is too large", func() {
			mux := newMux(&mockDependencies{loaded: true})
			body := `{"attributes":{"goal":"` + strings.Repeat("x", 70<<10) + `"}}`
			w := do(mux, http.MethodPost, "/recommend", body)

			Convey("Then it should be rejected before reaching the service", func() {
				So(w.Code, ShouldBeIn, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest})
			})
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("cause")

		Convey("Then kinds and causes should both be matchable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: cause")
		})

		Convey("And the shorter forms should format cleanly", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: cause")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
