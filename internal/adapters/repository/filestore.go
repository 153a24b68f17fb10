package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps objects as JSON files in one directory.
type FileStore struct {
	dir string
	namer
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create dead letter dir: %w", err)
	}
	return &FileStore{dir: dir, namer: newNamer(opts)}, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Write(ctx context.Context, l Letter) (string, error) {
	if l.Timestamp.IsZero() {
		l.Timestamp = s.now()
	}
	l.Timestamp = l.Timestamp.UTC()
	name := s.letterName(l.Timestamp)
	return name, s.put(ctx, name, l)
}

func (s *FileStore) WriteEvent(ctx context.Context, eventType string, data any) (string, error) {
	name := s.eventName(eventType)
	return name, s.put(ctx, name, data)
}

func (s *FileStore) List(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && validLetterName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return newestFirst(names, limit)
}

func (s *FileStore) Get(ctx context.Context, name string) (*Letter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validLetterName(name) {
		return nil, ErrInvalidName
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read dead letter: %w", err)
	}
	var l Letter
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode dead letter %s: %w", name, err)
	}
	return &l, nil
}

// put writes through a temp file so readers never see a partial object.
func (s *FileStore) put(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+strings.TrimSuffix(name, objectSuffix))
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
