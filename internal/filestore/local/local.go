// Package local provides a filesystem implementation of filestore.Store.
//
// Writes are atomic: content is staged to a hidden temp file in the
// destination directory and renamed into place only once fully written.
// A failed or cancelled write removes the temp file and never touches
// the destination path.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/jwkim/schemadoc/internal/errs"
)

// Store writes exports to the local filesystem.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	baseDir string
}

// New returns a Store rooted at baseDir. An empty baseDir resolves
// relative keys against the working directory.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Ping verifies the base directory exists or can be created.
func (s *Store) Ping(context.Context) error {
	if s.baseDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return errs.Wrap(errs.ErrKindWriteFailed, "destination directory unavailable", err)
	}
	return nil
}

// Close is a no-op for the filesystem.
func (s *Store) Close() error {
	return nil
}

// Put writes the content of r to the path for key via a temp file and
// rename. Size and content type are not used by the filesystem.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	path := s.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to create destination directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to stage temp file", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		discard(tmp)
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to flush temp file", err)
	}

	// Cancellation observed before the rename leaves nothing at key.
	if err := ctx.Err(); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrap(errs.ErrKindCancelled, "write cancelled before move", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to move file into place", err)
	}
	return nil
}

func (s *Store) path(key string) string {
	if s.baseDir == "" || filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.baseDir, key)
}

func discard(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}
