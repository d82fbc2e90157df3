package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Default training hyperparameters.
const (
	DefaultC         = 1.0
	DefaultMaxIter   = 3000
	DefaultTolerance = 1e-4
	DefaultSeed      = 7
)

// Params are the training hyperparameters. C is the inverse L1
// regularisation strength, MaxIter caps solver epochs and Tolerance is the
// relative per-epoch weight change at which a class is considered converged.
type Params struct {
	C         float64 `json:"c"`
	MaxIter   int     `json:"max_iter"`
	Tolerance float64 `json:"tolerance"`
	Seed      uint64  `json:"seed"`
}

// DefaultParams returns the default hyperparameters.
func DefaultParams() Params {
	return Params{C: DefaultC, MaxIter: DefaultMaxIter, Tolerance: DefaultTolerance, Seed: DefaultSeed}
}

// Validate checks the hyperparameters are usable.
func (p Params) Validate() error {
	switch {
	case !(p.C > 0) || math.IsInf(p.C, 0):
		return fmt.Errorf("%w: C must be positive, got %v", ErrInvalidParams, p.C)
	case p.MaxIter <= 0:
		return fmt.Errorf("%w: max_iter must be positive, got %d", ErrInvalidParams, p.MaxIter)
	case !(p.Tolerance >= 0):
		return fmt.Errorf("%w: tolerance must not be negative, got %v", ErrInvalidParams, p.Tolerance)
	}
	return nil
}

// Option applies a hyperparameter override.
type Option func(*Params)

// WithParams replaces all hyperparameters.
func WithParams(p Params) Option {
	return func(dst *Params) { *dst = p }
}

// WithC sets the inverse regularisation strength.
func WithC(c float64) Option {
	return func(p *Params) { p.C = c }
}

// WithMaxIter sets the epoch cap.
func WithMaxIter(n int) Option {
	return func(p *Params) { p.MaxIter = n }
}

// WithTolerance sets the convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(p *Params) { p.Tolerance = tol }
}

// WithSeed sets the shuffling seed.
func WithSeed(seed uint64) Option {
	return func(p *Params) { p.Seed = seed }
}

// Report summarises a training run.
type Report struct {
	Params     Params `json:"params"`
	Iterations []int  `json:"iterations"`
	Converged  []bool `json:"converged"`
}

// Warning returns a *ConvergenceWarning when any class hit the iteration cap,
// nil otherwise.
func (r Report) Warning() error {
	var classes []int
	for k, ok := range r.Converged {
		if !ok {
			classes = append(classes, k)
		}
	}
	if len(classes) == 0 {
		return nil
	}
	return &ConvergenceWarning{Classes: classes, MaxIter: r.Params.MaxIter}
}

// Train fits one binary model per class against all other classes. Classes
// are fitted concurrently; each uses its own PRNG seeded from Params.Seed so
// the result does not depend on scheduling. Hitting MaxIter is reported via
// Report.Warning and is not an error.
func Train(ctx context.Context, x [][]float64, y []int, numClasses int, opts ...Option) (*Weights, Report, error) {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	report := Report{Params: p}
	if err := p.Validate(); err != nil {
		return nil, report, err
	}
	if err := checkInput(x, y, numClasses); err != nil {
		return nil, report, err
	}

	coef := make([][]float64, numClasses)
	intercept := make([]float64, numClasses)
	report.Iterations = make([]int, numClasses)
	report.Converged = make([]bool, numClasses)

	g, gctx := errgroup.WithContext(ctx)
	for k := 0; k < numClasses; k++ {
		g.Go(func() error {
			target := make([]float64, len(y))
			for i, label := range y {
				if label == k {
					target[i] = 1
				}
			}
			res, err := fitBinary(gctx, x, target, p)
			if err != nil {
				return fmt.Errorf("class %d: %w", k, err)
			}
			coef[k], intercept[k] = res.w, res.b
			report.Iterations[k], report.Converged[k] = res.iters, res.converged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	w, err := NewWeights(coef, intercept)
	if err != nil {
		return nil, report, err
	}
	return w, report, nil
}

func checkInput(x [][]float64, y []int, numClasses int) error {
	if len(x) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, len(x), len(y))
	}
	if numClasses < 2 {
		return fmt.Errorf("%w: need at least 2 classes, got %d", ErrInvalidLabel, numClasses)
	}
	dim := len(x[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty rows", ErrDimensionMismatch)
	}
	for i, row := range x {
		if len(row) != dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(row), dim)
		}
		if !allFinite(row) {
			return fmt.Errorf("%w: row %d has non-finite values", ErrInvalidInput, i)
		}
	}
	for i, label := range y {
		if label < 0 || label >= numClasses {
			return fmt.Errorf("%w: row %d has label %d, want 0..%d", ErrInvalidLabel, i, label, numClasses-1)
		}
	}
	return nil
}

type binaryFit struct {
	w         []float64
	b         float64
	iters     int
	converged bool
}

// fitBinary minimises C·Σ logloss(y, w·x+b) + ‖w‖₁ with SAGA. The problem is
// solved in the equivalent scaled form (1/n)Σ logloss + ‖w‖₁/(C·n); the
// intercept is not penalised.
func fitBinary(ctx context.Context, x [][]float64, y []float64, p Params) (binaryFit, error) {
	n, dim := len(x), len(x[0])

	maxSq := 0.0
	for _, row := range x {
		maxSq = math.Max(maxSq, floats.Dot(row, row))
	}
	lipschitz := 0.25 * (maxSq + 1)
	step := 1 / (2 * lipschitz)
	threshold := step / (p.C * float64(n))
	invN := 1 / float64(n)

	w := make([]float64, dim)
	prev := make([]float64, dim)
	avgGrad := make([]float64, dim)
	memory := make([]float64, n)
	var b, avgGradB float64

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= p.MaxIter; epoch++ {
		if err := ctx.Err(); err != nil {
			return binaryFit{}, err
		}
		copy(prev, w)
		prevB := b
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, i := range order {
			row := x[i]
			g := sigmoid(floats.Dot(w, row)+b) - y[i]
			delta := g - memory[i]
			for j, v := range row {
				w[j] = softThreshold(w[j]-step*(delta*v+avgGrad[j]), threshold)
				avgGrad[j] += delta * v * invN
			}
			b -= step * (delta + avgGradB)
			avgGradB += delta * invN
			memory[i] = g
		}

		maxChange := math.Max(floats.Distance(w, prev, math.Inf(1)), math.Abs(b-prevB))
		maxWeight := math.Max(floats.Norm(w, math.Inf(1)), math.Abs(b))
		if (maxWeight == 0 && maxChange == 0) || (maxWeight > 0 && maxChange/maxWeight <= p.Tolerance) {
			return binaryFit{w: w, b: b, iters: epoch, converged: true}, nil
		}
	}
	return binaryFit{w: w, b: b, iters: p.MaxIter, converged: false}, nil
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
