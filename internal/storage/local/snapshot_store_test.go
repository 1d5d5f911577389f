package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPutWritesFileAndReturnsURI(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := s.Put(context.Background(), "job-1/page.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "job-1", "page.html"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "job-1", "page.html"))
	require.NoError(t, err)
	assert.Equal(t, []byte("<html/>"), data)
}

func TestPutRejectsTraversal(t *testing.T) {
	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../escape.html", "text/html", []byte("x"))
	require.Error(t, err)
}
