package classifier

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	ErrEmptyTrainingSet  = errors.New("empty training set")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidLabel      = errors.New("invalid label")
	ErrInvalidParams     = errors.New("invalid training parameters")
	ErrInvalidInput      = errors.New("invalid training input")
	ErrInvalidWeights    = errors.New("invalid weights")
)

// ConvergenceWarning reports classes whose solver stopped at the iteration
// cap before meeting the tolerance. The weights are still usable.
type ConvergenceWarning struct {
	Classes []int
	MaxIter int
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("solver did not converge within %d iterations for classes %v", w.MaxIter, w.Classes)
}
