package service

import (
	"time"

	"github.com/okian/fencerpulse/internal/adapters/repository"
	"github.com/okian/fencerpulse/internal/domain/classifier"
	"github.com/okian/fencerpulse/internal/domain/model"
	"github.com/okian/fencerpulse/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModelPath stores artifacts in a file at path.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithStore replaces the artifact store; it takes precedence over WithModelPath.
func WithStore(store repository.ModelStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTopN sets the default shortlist length.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithTopK sets the default number of explanation items.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithTrainingParams sets the solver settings used by Train.
func WithTrainingParams(p classifier.Params) Option {
	return func(s *Service) {
		s.params = p
	}
}

// WithReloadInterval enables polling the store for a newer artifact.
func WithReloadInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.reloadInterval = d
		}
	}
}

// WithClasses sets the class list used when training.
func WithClasses(classes []model.Class) Option {
	return func(s *Service) {
		if len(classes) > 0 {
			s.classes = append([]model.Class(nil), classes...)
		}
	}
}
