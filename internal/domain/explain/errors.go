package explain

import "errors"

// ErrLengthMismatch is returned when the vector, weights and columns are not aligned.
var ErrLengthMismatch = errors.New("explain: length mismatch")
