// Package repository persists trained models as versioned artifact files.
package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/fencerpulse/internal/domain/model"
	"github.com/okian/fencerpulse/pkg/metrics"
)

// Format tags every artifact file written by this package.
const Format = "fencerpulse-model"

// ModelStore loads and saves complete models.
type ModelStore interface {
	// Save persists m, replacing any previous artifact atomically.
	Save(ctx context.Context, m *model.Model) error
	// Load returns the stored model. It returns ErrArtifactNotFound when
	// nothing was saved yet and ErrCorruptArtifact when the stored bytes do
	// not describe one consistent model.
	Load(ctx context.Context) (*model.Model, error)
	// ModTime reports when the artifact last changed.
	ModTime(ctx context.Context) (time.Time, error)
}

// envelope wraps the artifact so truncation and tampering are detectable.
type envelope struct {
	Format   string          `json:"format"`
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// FileStore keeps one artifact in a single JSON file.
type FileStore struct {
	path  string
	perm  os.FileMode
	fsync bool
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{path: path, perm: 0o644, fsync: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the artifact location.
func (s *FileStore) Path() string { return s.path }

// Save writes the model to a temp file next to the destination and renames
// it into place.
func (s *FileStore) Save(ctx context.Context, m *model.Model) error {
	start := time.Now()
	defer func() {
		metrics.RecordArtifactLatency("save", float64(time.Since(start).Microseconds())/1000)
	}()

	if m == nil {
		return fmt.Errorf("%w: nil model", ErrWriteArtifact)
	}
	data, err := encode(m.Artifact())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.writeAtomic(data); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	return nil
}

func encode(a model.Artifact) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	sum := sha256.Sum256(payload)
	env := envelope{
		Format:   Format,
		Version:  a.Version,
		Checksum: hex.EncodeToString(sum[:]),
		Payload:  payload,
	}
	// The envelope is marshalled compactly so the payload bytes stay exactly
	// the ones that were hashed.
	return json.Marshal(env)
}

func (s *FileStore) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if s.fsync {
		if err = tmp.Sync(); err != nil {
			return fmt.Errorf("sync temp file: %w", err)
		}
	}
	if err = tmp.Chmod(s.perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads, verifies and rebuilds the stored model.
func (s *FileStore) Load(ctx context.Context) (*model.Model, error) {
	start := time.Now()
	defer func() {
		metrics.RecordArtifactLatency("load", float64(time.Since(start).Microseconds())/1000)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	a, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, s.path, err)
	}
	m, err := model.FromArtifact(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, s.path, err)
	}
	return m, nil
}

func decode(data []byte) (model.Artifact, error) {
	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return model.Artifact{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Format != Format {
		return model.Artifact{}, fmt.Errorf("format %q, want %q", env.Format, Format)
	}
	if env.Version != model.ArtifactVersion {
		return model.Artifact{}, fmt.Errorf("%w: %d", model.ErrUnsupportedVersion, env.Version)
	}
	sum := sha256.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return model.Artifact{}, errors.New("checksum mismatch")
	}
	var a model.Artifact
	if err := strictUnmarshal(env.Payload, &a); err != nil {
		return model.Artifact{}, fmt.Errorf("decode payload: %w", err)
	}
	if a.Version != env.Version {
		return model.Artifact{}, fmt.Errorf("payload version %d, envelope %d", a.Version, env.Version)
	}
	return a, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

// ModTime returns the artifact's modification time.
func (s *FileStore) ModTime(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, s.path)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("stat artifact: %w", err)
	}
	return info.ModTime(), nil
}
