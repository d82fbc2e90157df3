package dataset

import "errors"

// Sentinel kinds for table errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrMissingColumn     = errors.New("missing column")
	ErrBadRow            = errors.New("bad row")
	ErrBadLabel          = errors.New("bad label")
	ErrNoRows            = errors.New("table has no data rows")
)
