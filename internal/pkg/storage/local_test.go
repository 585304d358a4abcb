package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	path, err := s.Upload(ctx, strings.NewReader("Langname;Vorname"), "imports/abc/export.csv", "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "imports/abc/export.csv", path)

	exists, err := s.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := s.Download(ctx, path)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "Langname;Vorname", string(content))

	require.NoError(t, s.Delete(ctx, path))
	exists, err = s.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting twice is fine
	assert.NoError(t, s.Delete(ctx, path))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Upload(ctx, strings.NewReader("x"), "../../etc/passwd", "text/plain")
	assert.Error(t, err)

	_, err = s.Download(ctx, "../outside.csv")
	assert.Error(t, err)
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "imports/none.csv")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStorage_FailedUploadLeavesNothing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Upload(ctx, io.MultiReader(strings.NewReader("partial"), failingReader{}), "imports/abc/export.csv", "text/csv")
	require.Error(t, err)

	exists, err := s.Exists(ctx, "imports/abc/export.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(filepath.Join(dir, "imports", "abc"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
