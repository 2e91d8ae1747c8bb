package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/book-expert/narrator/internal/core"
	"github.com/spf13/afero"
)

const (
	fileStoreDirPerm  = 0o755
	fileStoreFilePerm = 0o644
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// FileStore implements core.ObjectStore on a directory. Keys use forward
// slashes and map to paths below the root.
type FileStore struct {
	fs   afero.Fs
	root string
}

// NewFileStore returns a store rooted at root on the operating system.
func NewFileStore(root string) *FileStore {
	return NewFileStoreFs(afero.NewOsFs(), root)
}

// NewFileStoreFs returns a store on any afero filesystem.
func NewFileStoreFs(filesystem afero.Fs, root string) *FileStore {
	return &FileStore{fs: filesystem, root: root}
}

// Download reads the file for key.
func (s *FileStore) Download(ctx context.Context, key string) ([]byte, error) {
	filePath, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, filePath)
	if err != nil {
		return nil, notFound(key, err)
	}

	return data, nil
}

// Upload writes the file for key, creating parent directories. The data is
// written to a temporary file first so a reader never sees a partial object.
func (s *FileStore) Upload(ctx context.Context, key string, data []byte) error {
	filePath, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}

	err = s.fs.MkdirAll(filepath.Dir(filePath), fileStoreDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", key, err)
	}

	tempPath := filePath + ".part"

	err = afero.WriteFile(s.fs, tempPath, data, fileStoreFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}

	err = s.fs.Rename(tempPath, filePath)
	if err != nil {
		return fmt.Errorf("failed to commit object '%s': %w", key, err)
	}

	return nil
}

// Size returns the file size for key.
func (s *FileStore) Size(ctx context.Context, key string) (int64, error) {
	filePath, err := s.resolve(ctx, key)
	if err != nil {
		return 0, err
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		return 0, notFound(key, err)
	}

	return info.Size(), nil
}

func (s *FileStore) resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("object '%s': %w", key, err)
	}

	cleaned := path.Clean("/" + key)
	if key == "" || cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("object '%s': %w", key, core.ErrObjectNotFound)
	}

	return fmt.Errorf("object '%s': %w", key, err)
}
