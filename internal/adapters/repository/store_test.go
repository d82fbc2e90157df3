package repository

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/okian/fencerpulse/internal/demodata"
	"github.com/okian/fencerpulse/internal/domain/classifier"
	"github.com/okian/fencerpulse/internal/domain/model"
)

func trainSmall(t *testing.T) *model.Model {
	t.Helper()
	ctx := context.Background()
	records, labels, err := demodata.NewGenerator(demodata.WithRows(150)).Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	m, _, err := model.Train(ctx, records, labels, model.Weapons, classifier.WithMaxIter(50))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return m
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := trainSmall(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "model.json"))

	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	r := demodata.SampleRecord()
	want, err := m.Predict(r)
	if err != nil {
		t.Fatalf("predict original: %v", err)
	}
	got, err := loaded.Predict(r)
	if err != nil {
		t.Fatalf("predict loaded: %v", err)
	}
	for k := range want.Probabilities {
		if got.Probabilities[k] != want.Probabilities[k] {
			t.Errorf("class %d: probability %v, want %v", k, got.Probabilities[k], want.Probabilities[k])
		}
	}
	if got.Primary != want.Primary {
		t.Errorf("primary %v, want %v", got.Primary, want.Primary)
	}
	for i := range want.Explanation {
		if got.Explanation[i] != want.Explanation[i] {
			t.Errorf("explanation %d: %+v, want %+v", i, got.Explanation[i], want.Explanation[i])
		}
	}

	if _, err := store.ModTime(ctx); err != nil {
		t.Errorf("modtime: %v", err)
	}
}

func TestFileStore_SaveReplacesAndLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "model.json"), WithPermissions(0o600))
	m := trainSmall(t)

	for i := 0; i < 2; i++ {
		if err := store.Save(ctx, m); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "model.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode %v, want 0600", info.Mode().Perm())
	}
}

func TestFileStore_Missing(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))

	if _, err := store.Load(ctx); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("load: expected ErrArtifactNotFound, got %v", err)
	}
	if _, err := store.ModTime(ctx); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("modtime: expected ErrArtifactNotFound, got %v", err)
	}
}

func TestFileStore_SaveErrors(t *testing.T) {
	ctx := context.Background()

	store := NewFileStore(filepath.Join(t.TempDir(), "model.json"))
	if err := store.Save(ctx, nil); !errors.Is(err, ErrWriteArtifact) {
		t.Errorf("nil model: expected ErrWriteArtifact, got %v", err)
	}

	// A regular file where the parent directory should be.
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	bad := NewFileStore(filepath.Join(blocker, "model.json"))
	if err := bad.Save(ctx, trainSmall(t)); !errors.Is(err, ErrWriteArtifact) {
		t.Errorf("blocked dir: expected ErrWriteArtifact, got %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.Save(cctx, trainSmall(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: expected context.Canceled, got %v", err)
	}
}

func TestFileStore_Corruption(t *testing.T) {
	ctx := context.Background()
	m := trainSmall(t)
	path := filepath.Join(t.TempDir(), "model.json")
	store := NewFileStore(path)
	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	rewrap := func(mutate func(*model.Artifact)) []byte {
		a := m.Artifact()
		mutate(&a)
		data, err := encode(a)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		return data
	}

	var env envelope
	if err := json.Unmarshal(good, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	flipped := byte('0')
	if env.Checksum[0] == '0' {
		flipped = '1'
	}
	env.Checksum = string(flipped) + env.Checksum[1:]
	badChecksum, _ := json.Marshal(env)

	cases := []struct {
		name string
		data []byte
	}{
		{"truncated", good[:len(good)/2]},
		{"empty", nil},
		{"not json", []byte("weights, probably")},
		{"checksum mismatch", badChecksum},
		{"wrong format", bytes.Replace(good, []byte(Format), []byte("other-model"), 1)},
		{"unknown envelope field", append(append([]byte(nil), good[:len(good)-1]...), []byte(`,"extra":1}`)...)},
		{"trailing data", append(append([]byte(nil), good...), []byte(`{}`)...)},
		{"unsupported version", rewrap(func(a *model.Artifact) { a.Version = 7 })},
		{"class count mismatch", rewrap(func(a *model.Artifact) { a.Classes = a.Classes[:2] })},
		{"column count mismatch", rewrap(func(a *model.Artifact) { a.Coef[0] = a.Coef[0][:3] })},
		{"encoder disagrees with columns", rewrap(func(a *model.Artifact) { a.FeatureNames[4] = "mystery" })},
		{"invalid encoder state", rewrap(func(a *model.Artifact) { a.Encoder.Numeric[0].Std = -1 })},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := os.WriteFile(path, tc.data, 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := store.Load(ctx)
			if !errors.Is(err, ErrCorruptArtifact) {
				t.Errorf("expected ErrCorruptArtifact, got %v", err)
			}
			if got != nil {
				t.Errorf("expected no model, got %v", got)
			}
		})
	}
}
