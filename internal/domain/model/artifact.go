package model

import (
	"fmt"

	"github.com/okian/fencerpulse/internal/domain/classifier"
	"github.com/okian/fencerpulse/internal/domain/encoder"
)

// ArtifactVersion is the current persisted layout version.
const ArtifactVersion = 1

// Artifact is the persisted form of a Model.
type Artifact struct {
	Version      int           `json:"version"`
	Classes      []Class       `json:"classes"`
	FeatureNames []string      `json:"feature_names"`
	Encoder      encoder.State `json:"encoder"`
	Coef         [][]float64   `json:"coef"`
	Intercept    []float64     `json:"intercept"`
	Metadata     Metadata      `json:"metadata"`
}

// Artifact exports the model. The result shares no memory with the model.
func (m *Model) Artifact() Artifact {
	coef, intercept := m.weights.Matrix()
	return Artifact{
		Version:      ArtifactVersion,
		Classes:      m.Classes(),
		FeatureNames: m.FeatureNames(),
		Encoder:      m.encoder.State(),
		Coef:         coef,
		Intercept:    intercept,
		Metadata:     m.Metadata(),
	}
}

// FromArtifact rebuilds a model, rejecting any artifact whose parts disagree.
func FromArtifact(a Artifact) (*Model, error) {
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: %d (supported: %d)", ErrUnsupportedVersion, a.Version, ArtifactVersion)
	}
	enc, err := encoder.New(a.Encoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	names := enc.Names()
	if len(names) != len(a.FeatureNames) {
		return nil, fmt.Errorf("%w: %d feature names, encoder produces %d", ErrInconsistent, len(a.FeatureNames), len(names))
	}
	for i := range names {
		if names[i] != a.FeatureNames[i] {
			return nil, fmt.Errorf("%w: feature %d is %q, encoder produces %q", ErrInconsistent, i, a.FeatureNames[i], names[i])
		}
	}
	w, err := classifier.NewWeights(a.Coef, a.Intercept)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	seen := make(map[string]bool, len(a.Classes))
	for _, c := range a.Classes {
		if c.Name == "" || seen[c.Name] {
			return nil, fmt.Errorf("%w: bad class list", ErrInconsistent)
		}
		seen[c.Name] = true
	}
	return New(enc, w, a.Classes, a.Metadata)
}
