// Package model bundles a fitted encoder with its classifier weights and runs
// the full recommendation pipeline: encode, score, rank, explain.
package model

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fencerpulse/internal/domain/attributes"
	"github.com/okian/fencerpulse/internal/domain/classifier"
	"github.com/okian/fencerpulse/internal/domain/encoder"
	"github.com/okian/fencerpulse/internal/domain/explain"
	"github.com/okian/fencerpulse/internal/domain/ranking"
)

// Class is one recommendable discipline.
type Class struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Weapons are the three fencing disciplines, in label index order.
var Weapons = []Class{
	{Name: "foil", Label: "Foil"},
	{Name: "epee", Label: "Epee"},
	{Name: "sabre", Label: "Sabre"},
}

// ClassIndex resolves a class by name.
func ClassIndex(classes []Class, name string) (int, bool) {
	for i, c := range classes {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Metadata describes how a model was produced.
type Metadata struct {
	TrainedAt  time.Time         `json:"trained_at"`
	Rows       int               `json:"rows"`
	Params     classifier.Params `json:"params"`
	Iterations []int             `json:"iterations"`
	Converged  []bool            `json:"converged"`
}

// Model is an immutable, fully consistent snapshot: encoder state, weights
// and classes always travel together. It is safe for concurrent Predict calls.
type Model struct {
	encoder   *encoder.Encoder
	weights   *classifier.Weights
	explainer *explain.Explainer
	columns   []encoder.Column
	classes   []Class
	meta      Metadata
}

// New assembles a model and checks the parts agree with each other.
func New(enc *encoder.Encoder, w *classifier.Weights, classes []Class, meta Metadata) (*Model, error) {
	if enc == nil || w == nil {
		return nil, fmt.Errorf("%w: missing encoder or weights", ErrInconsistent)
	}
	if w.Dim() != enc.Len() {
		return nil, fmt.Errorf("%w: weights have %d columns, encoder produces %d", ErrInconsistent, w.Dim(), enc.Len())
	}
	if w.NumClasses() != len(classes) {
		return nil, fmt.Errorf("%w: weights have %d classes, model lists %d", ErrInconsistent, w.NumClasses(), len(classes))
	}
	return &Model{
		encoder:   enc,
		weights:   w,
		explainer: explain.New(explain.DefaultLabels),
		columns:   enc.Columns(),
		classes:   append([]Class(nil), classes...),
		meta:      meta,
	}, nil
}

// Train fits the encoder and the one-vs-rest classifier on labelled records.
// A non-nil report warning means the solver hit its iteration cap; the model
// is still returned.
func Train(ctx context.Context, records []attributes.Record, labels []int, classes []Class, opts ...classifier.Option) (*Model, classifier.Report, error) {
	enc, err := encoder.Fit(records)
	if err != nil {
		return nil, classifier.Report{}, fmt.Errorf("fit encoder: %w", err)
	}

	x := make([][]float64, len(records))
	for i, r := range records {
		out, err := enc.Transform(r)
		if err != nil {
			return nil, classifier.Report{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		x[i] = out.Values
	}

	w, report, err := classifier.Train(ctx, x, labels, len(classes), opts...)
	if err != nil {
		return nil, report, fmt.Errorf("train classifier: %w", err)
	}

	m, err := New(enc, w, classes, Metadata{
		TrainedAt:  time.Now().UTC(),
		Rows:       len(records),
		Params:     report.Params,
		Iterations: report.Iterations,
		Converged:  report.Converged,
	})
	if err != nil {
		return nil, report, err
	}
	return m, report, nil
}

// Classes returns the class list in index order.
func (m *Model) Classes() []Class { return append([]Class(nil), m.classes...) }

// Columns returns the encoded column metadata.
func (m *Model) Columns() []encoder.Column { return append([]encoder.Column(nil), m.columns...) }

// FeatureNames returns the encoded column names.
func (m *Model) FeatureNames() []string { return m.encoder.Names() }

// Metadata returns the training metadata.
func (m *Model) Metadata() Metadata {
	meta := m.meta
	meta.Iterations = append([]int(nil), m.meta.Iterations...)
	meta.Converged = append([]bool(nil), m.meta.Converged...)
	return meta
}

// Scored is a class with its probability.
type Scored struct {
	Class       Class   `json:"class"`
	Probability float64 `json:"probability"`
}

// Result is the outcome of one prediction.
type Result struct {
	Top         []Scored       `json:"top"`
	Primary     Class          `json:"primary"`
	Confidence  float64        `json:"confidence"`
	Explanation []explain.Item `json:"explanation"`
	// Unknown lists categorical fields whose value the model never saw.
	Unknown []string `json:"unknown,omitempty"`
	// Probabilities holds every class probability in class index order.
	Probabilities []float64 `json:"-"`
}

// PredictOption tunes a single prediction.
type PredictOption func(*predictOptions)

type predictOptions struct {
	topN int
	topK int
}

// WithTopN sets the shortlist length.
func WithTopN(n int) PredictOption {
	return func(o *predictOptions) { o.topN = n }
}

// WithTopK sets the number of explanation items.
func WithTopK(k int) PredictOption {
	return func(o *predictOptions) { o.topK = k }
}

// Predict recommends a class for a record and explains the choice.
func (m *Model) Predict(r attributes.Record, opts ...PredictOption) (Result, error) {
	o := predictOptions{topN: ranking.DefaultTopN, topK: explain.DefaultTopK}
	for _, opt := range opts {
		opt(&o)
	}

	enc, err := m.encoder.Transform(r)
	if err != nil {
		return Result{}, err
	}
	probs, err := m.weights.Probabilities(enc.Values)
	if err != nil {
		return Result{}, err
	}

	rank := ranking.New(probs)
	primary := rank.Primary()

	items, err := m.explainer.Explain(enc.Values, m.weights.Coef(primary), m.columns, o.topK)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Primary:       m.classes[primary],
		Confidence:    rank.Confidence(),
		Explanation:   items,
		Unknown:       enc.Unknown,
		Probabilities: probs,
	}
	for _, e := range rank.Top(o.topN) {
		res.Top = append(res.Top, Scored{Class: m.classes[e.Class], Probability: e.Probability})
	}
	return res, nil
}
