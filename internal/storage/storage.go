// Package storage provides a file-backed byte store for profiles and lock state.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
)

// DefaultPath is the store file used when none is configured.
const DefaultPath = "storage.json"

// document is the on-disk layout.
type document struct {
	Profiles *[]models.Profile `json:"profiles,omitempty"`
	Scalars  map[string]string `json:"scalars,omitempty"`
}

// FileStore keeps the whole state in one JSON file. Every save rewrites the
// file through a temporary file and rename, so a crash leaves either the old
// or the new content.
type FileStore struct {
	path string
	mu   sync.Mutex
	doc  document
}

var _ persist.ByteStore = (*FileStore)(nil)

// Open loads path, or starts empty if it does not exist yet.
func Open(path string) (*FileStore, error) {
	fs := &FileStore{path: path, doc: document{Scalars: map[string]string{}}}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&fs.doc); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	if fs.doc.Scalars == nil {
		fs.doc.Scalars = map[string]string{}
	}
	return fs, nil
}

// Path returns the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}

// LoadProfiles returns the saved profiles.
func (fs *FileStore) LoadProfiles(_ context.Context) ([]models.Profile, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.doc.Profiles == nil {
		return nil, false, nil
	}
	out := make([]models.Profile, len(*fs.doc.Profiles))
	copy(out, *fs.doc.Profiles)
	return out, true, nil
}

// SaveProfiles replaces the profile collection and rewrites the file.
func (fs *FileStore) SaveProfiles(_ context.Context, profiles []models.Profile) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	saved := make([]models.Profile, len(profiles))
	copy(saved, profiles)
	prev := fs.doc.Profiles
	fs.doc.Profiles = &saved
	if err := fs.save(); err != nil {
		fs.doc.Profiles = prev
		return err
	}
	return nil
}

// LoadScalar returns the value stored under key.
func (fs *FileStore) LoadScalar(_ context.Context, key string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.doc.Scalars[key]
	return v, ok, nil
}

// SaveScalars applies all values in a single file rewrite.
func (fs *FileStore) SaveScalars(_ context.Context, values ...persist.Scalar) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	next := make(map[string]string, len(fs.doc.Scalars)+len(values))
	for k, v := range fs.doc.Scalars {
		next[k] = v
	}
	for _, s := range values {
		if s.Value == nil {
			delete(next, s.Key)
			continue
		}
		next[s.Key] = *s.Value
	}

	prev := fs.doc.Scalars
	fs.doc.Scalars = next
	if err := fs.save(); err != nil {
		fs.doc.Scalars = prev
		return err
	}
	return nil
}

func (fs *FileStore) save() error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&fs.doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
