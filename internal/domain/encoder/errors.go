package encoder

import "errors"

// Sentinel error kinds for this package.
var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrInvalidState     = errors.New("invalid encoder state")
)
