package storage_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/archivesync/internal/domain"
	"github.com/openfolio/archivesync/internal/storage"
)

func writeMediaFile(t *testing.T, root, mediaID, name, content string) {
	t.Helper()
	dir := filepath.Join(root, mediaID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLocalStore_OpensMediaFile(t *testing.T) {
	t.Helper()

	root := t.TempDir()
	writeMediaFile(t, root, "m1", "scan.pdf", "pdf-bytes")

	store := storage.NewLocalStore(root)
	f, err := store.Open(&domain.Media{ID: "m1", FileName: "scan.pdf"})
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestLocalStore_StripsDirectoryComponents(t *testing.T) {
	t.Helper()

	root := t.TempDir()
	writeMediaFile(t, root, "m1", "scan.pdf", "pdf-bytes")

	store := storage.NewLocalStore(root)
	// A stored path must resolve inside the media directory, never outside.
	f, err := store.Open(&domain.Media{ID: "m1", FileName: "../../etc/scan.pdf"})
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestLocalStore_RejectsEmptyFileName(t *testing.T) {
	t.Helper()

	store := storage.NewLocalStore(t.TempDir())
	_, err := store.Open(&domain.Media{ID: "m1", FileName: ""})
	assert.Error(t, err)
}

func TestLocalStore_MissingFile(t *testing.T) {
	t.Helper()

	store := storage.NewLocalStore(t.TempDir())
	_, err := store.Open(&domain.Media{ID: "m1", FileName: "scan.pdf"})
	assert.Error(t, err)
}
