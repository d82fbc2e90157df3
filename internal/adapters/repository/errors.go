package repository

import "errors"

// Sentinel kinds for artifact store errors.
var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrCorruptArtifact  = errors.New("corrupt model artifact")
	ErrWriteArtifact    = errors.New("write model artifact")
)
