package repository

import "os"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithPermissions sets the mode of the written artifact file.
func WithPermissions(perm os.FileMode) Option {
	return func(s *FileStore) {
		if perm != 0 {
			s.perm = perm
		}
	}
}

// WithFsync toggles fsync of the temp file before it is renamed into place.
func WithFsync(enabled bool) Option {
	return func(s *FileStore) {
		s.fsync = enabled
	}
}
