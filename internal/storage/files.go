// Package storage resolves media binaries for archival pushes.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openfolio/archivesync/internal/domain"
)

// FileStore opens the binary content of a media item.
type FileStore interface {
	Open(m *domain.Media) (io.ReadCloser, error)
}

// LocalStore reads media binaries from a directory tree laid out as
// <root>/<media-id>/<file-name>.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Open returns a reader for the media item's file. The file name is
// reduced to its base so a stored name can never escape the media's
// directory.
func (s *LocalStore) Open(m *domain.Media) (io.ReadCloser, error) {
	name := filepath.Base(m.FileName)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("media %s: invalid file name %q", m.ID, m.FileName)
	}

	path := filepath.Join(s.root, m.ID, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return f, nil
}
