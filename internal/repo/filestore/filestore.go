// Package filestore keeps one JSON file per record under
// <dir>/<collection>/<key>.json.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hamed0406/uptimemonitor/internal/repo"
)

const ext = ".json"

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(collection, key string) (string, error) {
	if !repo.ValidKey(collection) || !repo.ValidKey(key) {
		return "", repo.ErrInvalidKey
	}
	return filepath.Join(s.dir, collection, key+ext), nil
}

// Create writes value to a temp file and hard-links it into place. The link
// fails if the record exists, so the record appears complete or not at all.
func (s *Store) Create(ctx context.Context, collection, key string, value []byte) error {
	p, err := s.path(collection, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	tmp, err := writeTemp(filepath.Dir(p), key, value)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return repo.ErrAlreadyExists
		}
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, collection, key string) ([]byte, error) {
	p, err := s.path(collection, key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	return b, nil
}

// Update replaces the record through rename, never truncating in place.
func (s *Store) Update(ctx context.Context, collection, key string, value []byte) error {
	p, err := s.path(collection, key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repo.ErrNotFound
		}
		return fmt.Errorf("stat %s/%s: %w", collection, key, err)
	}
	tmp, err := writeTemp(filepath.Dir(p), key, value)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	p, err := s.path(collection, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repo.ErrNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]string, error) {
	if !repo.ValidKey(collection) {
		return nil, repo.ErrInvalidKey
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ext))
	}
	sort.Strings(out)
	return out, nil
}

// writeTemp writes and fsyncs value into a hidden file in dir.
func writeTemp(dir, key string, value []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp: %w", err)
	}
	return name, nil
}

var _ repo.RecordStore = (*Store)(nil)
