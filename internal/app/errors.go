package service

import "errors"

// ErrModelNotLoaded is returned by recommendation calls before any model
// was loaded or trained.
var ErrModelNotLoaded = errors.New("no model loaded")
