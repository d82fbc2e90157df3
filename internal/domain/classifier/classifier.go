// Package classifier implements a one-vs-rest linear classifier: one
// L1-regularised logistic model per class, combined by renormalising the
// per-class sigmoid outputs.
package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Weights is the trained weight matrix: one coefficient vector and one
// intercept per class. It is immutable; accessors return copies.
type Weights struct {
	coef      [][]float64
	intercept []float64
}

// NewWeights validates and copies a coefficient matrix and intercepts.
func NewWeights(coef [][]float64, intercept []float64) (*Weights, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidWeights)
	}
	if len(coef) != len(intercept) {
		return nil, fmt.Errorf("%w: %d coefficient rows, %d intercepts", ErrInvalidWeights, len(coef), len(intercept))
	}
	dim := len(coef[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty coefficient row", ErrInvalidWeights)
	}
	w := &Weights{
		coef:      make([][]float64, len(coef)),
		intercept: append([]float64(nil), intercept...),
	}
	for k, row := range coef {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidWeights, k, len(row), dim)
		}
		if !allFinite(row) || !finite(intercept[k]) {
			return nil, fmt.Errorf("%w: row %d is not finite", ErrInvalidWeights, k)
		}
		w.coef[k] = append([]float64(nil), row...)
	}
	return w, nil
}

// NumClasses is the number of output classes.
func (w *Weights) NumClasses() int { return len(w.coef) }

// Dim is the expected encoded vector length.
func (w *Weights) Dim() int { return len(w.coef[0]) }

// Coef returns a copy of class k's coefficient vector.
func (w *Weights) Coef(k int) []float64 { return append([]float64(nil), w.coef[k]...) }

// Intercept returns class k's bias.
func (w *Weights) Intercept(k int) float64 { return w.intercept[k] }

// Matrix returns copies of the full coefficient matrix and intercepts.
func (w *Weights) Matrix() ([][]float64, []float64) {
	coef := make([][]float64, len(w.coef))
	for k := range w.coef {
		coef[k] = w.Coef(k)
	}
	return coef, append([]float64(nil), w.intercept...)
}

// Scores returns the linear score w·x + b of every class.
func (w *Weights) Scores(x []float64) ([]float64, error) {
	if len(x) != w.Dim() {
		return nil, fmt.Errorf("%w: vector has %d values, model expects %d", ErrDimensionMismatch, len(x), w.Dim())
	}
	scores := make([]float64, len(w.coef))
	for k, row := range w.coef {
		scores[k] = floats.Dot(row, x) + w.intercept[k]
	}
	return scores, nil
}

// Probabilities passes every class score through the sigmoid independently
// and renormalises the results to sum to one. This is deliberately not a
// softmax.
func (w *Weights) Probabilities(x []float64) ([]float64, error) {
	scores, err := w.Scores(x)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(scores))
	sum := 0.0
	for k, s := range scores {
		probs[k] = sigmoid(s)
		sum += probs[k]
	}
	if sum == 0 {
		// every sigmoid underflowed
		for k := range probs {
			probs[k] = 1 / float64(len(probs))
		}
		return probs, nil
	}
	for k := range probs {
		probs[k] /= sum
	}
	return probs, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if !finite(v) {
			return false
		}
	}
	return true
}
