// Package service owns the serving model and implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fencerpulse/internal/adapters/repository"
	"github.com/okian/fencerpulse/internal/demodata"
	"github.com/okian/fencerpulse/internal/domain/attributes"
	"github.com/okian/fencerpulse/internal/domain/classifier"
	"github.com/okian/fencerpulse/internal/domain/explain"
	"github.com/okian/fencerpulse/internal/domain/model"
	"github.com/okian/fencerpulse/internal/domain/ranking"
	"github.com/okian/fencerpulse/internal/domain/types"
	"github.com/okian/fencerpulse/pkg/logger"
	"github.com/okian/fencerpulse/pkg/metrics"
)

const defaultModelPath = "data/model.json"

// Service serves recommendations from the current model. The model is an
// immutable snapshot behind an atomic pointer: predictions never lock, and
// reload or training swaps in a complete replacement.
type Service struct {
	mu sync.Mutex

	current atomic.Pointer[model.Model]
	store   repository.ModelStore

	// Configuration
	modelPath      string
	topN           int
	topK           int
	params         classifier.Params
	reloadInterval time.Duration
	classes        []model.Class

	// swapMu serialises Reload and Train so the artifact timestamp matches
	// the installed model.
	swapMu      sync.Mutex
	loadedMTime time.Time

	// Counters
	predictions    atomic.Int64
	schemaErrors   atomic.Int64
	reloads        atomic.Int64
	reloadFailures atomic.Int64
	trainings      atomic.Int64

	// State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelPath: defaultModelPath,
		topN:      ranking.DefaultTopN,
		topK:      explain.DefaultTopK,
		params:    classifier.DefaultParams(),
		classes:   append([]model.Class(nil), model.Weapons...),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewFileStore(s.modelPath)
	}
	return s
}

// Start loads the stored model, if any, and starts hot reload when enabled.
// A missing or unreadable artifact is logged and the service keeps running
// without a model until one is trained or reloaded.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	log := s.log()
	log.Info(ctx, "starting recommendation service...")

	switch err := s.Reload(ctx); {
	case err == nil:
	case errors.Is(err, repository.ErrArtifactNotFound):
		log.Warn(ctx, "no model artifact yet; recommendations unavailable until training", logger.Error(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		log.Error(ctx, "initial model load failed", logger.Error(err))
	}

	s.done = make(chan struct{})
	if s.reloadInterval > 0 {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel
		go s.watch(loopCtx)
	} else {
		close(s.done)
	}

	s.started = true
	log.Info(ctx, "recommendation service started",
		logger.Bool("model_loaded", s.current.Load() != nil),
		logger.Int("top_n", s.topN),
		logger.Int("top_k", s.topK),
		logger.Duration("reload_interval", s.reloadInterval),
	)
	return nil
}

// Stop halts hot reload. The current model stays installed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.log().Info(context.Background(), "stopping recommendation service...")
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	s.started = false
	s.log().Info(context.Background(), "recommendation service stopped")
}

func (s *Service) watch(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.reloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.artifactChanged(ctx) {
				continue
			}
			if err := s.Reload(ctx); err != nil && ctx.Err() == nil {
				s.log().Error(ctx, "hot reload failed; keeping current model", logger.Error(err))
			}
		}
	}
}

func (s *Service) artifactChanged(ctx context.Context) bool {
	mt, err := s.store.ModTime(ctx)
	if err != nil {
		return false
	}
	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	return !mt.Equal(s.loadedMTime)
}

// Reload replaces the serving model with the stored artifact. On failure the
// previous model stays installed.
func (s *Service) Reload(ctx context.Context) error {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	log := s.log()
	mt, _ := s.store.ModTime(ctx)
	m, err := s.store.Load(ctx)
	if err != nil {
		s.reloadFailures.Add(1)
		metrics.RecordModelLoad("failure")
		metrics.RecordErrorByComponent("service", "model_load")
		return fmt.Errorf("reload model: %w", err)
	}
	s.install(m)
	s.loadedMTime = mt
	s.reloads.Add(1)
	metrics.RecordModelLoad("success")

	meta := m.Metadata()
	log.Info(ctx, "model loaded",
		logger.Any("trained_at", meta.TrainedAt),
		logger.Int("rows", meta.Rows),
		logger.Int("features", len(m.FeatureNames())),
	)
	return nil
}

func (s *Service) install(m *model.Model) {
	s.current.Store(m)
	metrics.UpdateModelLoaded(true, m.Metadata().TrainedAt)
}

// Train fits a new model, persists it and installs it. The model is only
// swapped in after it was saved. A convergence warning is logged and
// returned in the report; it does not prevent installation.
func (s *Service) Train(ctx context.Context, records []attributes.Record, labels []int) (classifier.Report, error) {
	log := s.log()
	start := time.Now()

	m, report, err := model.Train(ctx, records, labels, s.classes, classifier.WithParams(s.params))
	if err != nil {
		metrics.RecordErrorByComponent("service", "train")
		return report, err
	}
	elapsed := time.Since(start)

	iterations := make(map[string]int, len(s.classes))
	for k, c := range s.classes {
		iterations[c.Name] = report.Iterations[k]
	}
	warning := report.Warning()
	metrics.RecordTraining(len(records), elapsed, iterations, warning == nil)
	if warning != nil {
		log.Warn(ctx, "solver did not converge", logger.Error(warning), logger.Any("iterations", report.Iterations))
	}

	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	if err := s.store.Save(ctx, m); err != nil {
		metrics.RecordErrorByComponent("service", "model_save")
		return report, fmt.Errorf("save model: %w", err)
	}
	s.loadedMTime, _ = s.store.ModTime(ctx)
	s.install(m)
	s.trainings.Add(1)

	log.Info(ctx, "model trained",
		logger.Int("rows", len(records)),
		logger.Duration("elapsed", elapsed),
		logger.Any("iterations", report.Iterations),
	)
	return report, nil
}

// Model returns the serving model, or nil when none is loaded.
func (s *Service) Model() *model.Model { return s.current.Load() }

// Recommend validates a raw attribute mapping and recommends a discipline.
// topN and topK <= 0 use the service defaults.
func (s *Service) Recommend(ctx context.Context, attrs map[string]any, topN, topK int) (types.Recommendation, error) {
	if s.current.Load() == nil {
		return types.Recommendation{}, ErrModelNotLoaded
	}
	rec, err := attributes.FromMap(attrs)
	if err != nil {
		s.schemaErrors.Add(1)
		metrics.RecordSchemaError()
		return types.Recommendation{}, err
	}
	return s.RecommendRecord(ctx, rec, topN, topK)
}

// RecommendRecord recommends a discipline for an already typed record.
func (s *Service) RecommendRecord(ctx context.Context, rec attributes.Record, topN, topK int) (types.Recommendation, error) {
	m := s.current.Load()
	if m == nil {
		return types.Recommendation{}, ErrModelNotLoaded
	}
	if topN <= 0 {
		topN = s.topN
	}
	if topK <= 0 {
		topK = s.topK
	}

	start := time.Now()
	res, err := m.Predict(rec, model.WithTopN(topN), model.WithTopK(topK))
	if err != nil {
		if errors.Is(err, attributes.ErrSchema) {
			s.schemaErrors.Add(1)
			metrics.RecordSchemaError()
		}
		return types.Recommendation{}, err
	}
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	out := toRecommendation(res, m.Metadata().TrainedAt)
	out.PredictionID = uuid.NewString()

	s.predictions.Add(1)
	metrics.RecordPrediction(res.Primary.Name, res.Confidence, latencyMs)
	if len(res.Unknown) > 0 {
		for _, f := range res.Unknown {
			metrics.RecordUnknownCategory(f)
		}
		s.log().Info(ctx, "unseen categorical values encoded as zeros",
			logger.String("prediction_id", out.PredictionID),
			logger.Strings("fields", res.Unknown),
		)
	}
	s.log().Debug(ctx, "recommendation served",
		logger.String("prediction_id", out.PredictionID),
		logger.String("primary", res.Primary.Name),
		logger.Float64("confidence", res.Confidence),
	)
	return out, nil
}

func toRecommendation(res model.Result, trainedAt time.Time) types.Recommendation {
	out := types.Recommendation{
		Primary: types.Candidate{
			Class:       res.Primary.Name,
			Label:       res.Primary.Label,
			Probability: res.Confidence,
		},
		Top:               make([]types.Candidate, len(res.Top)),
		Explanation:       make([]types.Reason, len(res.Explanation)),
		UnknownCategories: res.Unknown,
		ModelTrainedAt:    trainedAt,
	}
	for i, c := range res.Top {
		out.Top[i] = types.Candidate{Class: c.Class.Name, Label: c.Class.Label, Probability: c.Probability}
	}
	for i, it := range res.Explanation {
		out.Explanation[i] = types.Reason{
			Name:         it.Name,
			Feature:      it.Feature,
			Contribution: it.Contribution,
			Direction:    it.Direction(),
		}
	}
	return out
}

// SampleAttributes returns the ready-made example athlete as a raw mapping.
func (s *Service) SampleAttributes() map[string]any {
	return demodata.SampleRecord().ToMap()
}

// ModelInfo describes the serving model.
func (s *Service) ModelInfo() types.ModelInfo {
	info := types.ModelInfo{Path: s.storePath()}
	m := s.current.Load()
	if m == nil {
		return info
	}
	meta := m.Metadata()
	info.Loaded = true
	info.TrainedAt = meta.TrainedAt
	info.Rows = meta.Rows
	info.Features = m.FeatureNames()
	for _, c := range m.Classes() {
		info.Classes = append(info.Classes, c.Name)
	}
	info.Params = types.TrainingParams{
		C:         meta.Params.C,
		MaxIter:   meta.Params.MaxIter,
		Tolerance: meta.Params.Tolerance,
		Seed:      meta.Params.Seed,
	}
	info.Iterations = meta.Iterations
	info.Converged = meta.Converged
	return info
}

func (s *Service) storePath() string {
	if p, ok := s.store.(interface{ Path() string }); ok {
		return p.Path()
	}
	return s.modelPath
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	return map[string]interface{}{
		"started":        started,
		"modelLoaded":    s.current.Load() != nil,
		"predictions":    s.predictions.Load(),
		"schemaErrors":   s.schemaErrors.Load(),
		"reloads":        s.reloads.Load(),
		"reloadFailures": s.reloadFailures.Load(),
		"trainings":      s.trainings.Load(),
		"topN":           s.topN,
		"topK":           s.topK,
	}
}

func (s *Service) log() logger.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logger.Get()
}
