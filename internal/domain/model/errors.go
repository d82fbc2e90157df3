package model

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInconsistent       = errors.New("inconsistent model")
	ErrUnsupportedVersion = errors.New("unsupported artifact version")
)
