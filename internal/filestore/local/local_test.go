package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwkim/schemadoc/internal/errs"
)

func TestPut_WritesFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Ping(context.Background()))

	err := s.Put(context.Background(), "out/schema.xlsx", strings.NewReader("content"), 7, "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out", "schema.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestPut_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	path := filepath.Join(dir, "schema.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, s.Put(context.Background(), "schema.xlsx", strings.NewReader("new"), 3, ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestPut_CancelledLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, "schema.xlsx", strings.NewReader("content"), 7, "")
	require.Error(t, err)
	assert.True(t, errs.IsCancelled(err))

	// Neither the destination nor any temp artifact survives.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPut_ReaderFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	err := s.Put(context.Background(), "schema.xlsx", failingReader{}, 0, "")
	require.Error(t, err)
	assert.True(t, errs.IsWriteFailed(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPut_AbsoluteKeyBypassesBase(t *testing.T) {
	base := t.TempDir()
	other := t.TempDir()
	s := New(base)

	target := filepath.Join(other, "schema.xlsx")
	require.NoError(t, s.Put(context.Background(), target, strings.NewReader("x"), 1, ""))

	_, err := os.Stat(target)
	assert.NoError(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}
