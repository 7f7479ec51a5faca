// Package store persists converged measurement Results, one immutable
// record per instance ID.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ja7ad/joules/pkg/measure"
)

const (
	filePrefix = "measurement_"
	fileExt    = ".json"
)

// File stores each Result as measurement_<instance>.json in a directory.
// The directory is created on first write.
type File struct {
	dir string
}

var _ measure.Store = (*File)(nil)

func NewFile(dir string) *File { return &File{dir: dir} }

func (f *File) Dir() string { return f.dir }

// Path returns the file a Result with this instance ID is stored in.
func (f *File) Path(instanceID string) (string, error) {
	if err := checkID(instanceID); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, filePrefix+instanceID+fileExt), nil
}

func (f *File) Exists(_ context.Context, instanceID string) (bool, error) {
	p, err := f.Path(instanceID)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("store: stat %s: %w", p, err)
	}
}

func (f *File) Load(_ context.Context, instanceID string) (*measure.Result, error) {
	p, err := f.Path(instanceID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", p, err)
	}
	var r measure.Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", p, err)
	}
	return &r, nil
}

// Write stores r via a temp file and rename so readers never see a
// partial record.
func (f *File) Write(ctx context.Context, r *measure.Result) error {
	ok, err := f.Exists(ctx, r.InstanceID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrExists, r.InstanceID)
	}
	p, _ := f.Path(r.InstanceID)

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, ".measurement-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// List returns the stored instance IDs in lexical order.
func (f *File) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", f.dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt))
	}
	slices.Sort(ids)
	return ids, nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
