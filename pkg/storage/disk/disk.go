// Package disk implements the blob store on the local filesystem.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidstreamlabs/vidstream-backend/pkg/storage"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store persists blobs as files under a root directory. Writes land in a
// temporary file and are renamed into place so readers never observe a
// partially written blob.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a disk-backed store.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute directory blobs are stored under.
func (s *Store) Root() string {
	return s.root
}

// Put writes r to a temp file, fsyncs, and renames it under key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	dest, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return 0, fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp blob: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return 0, err
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("setting blob permissions: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("publishing blob: %w", err)
	}
	return written, nil
}

// Open returns a reader over the full blob.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// OpenRange returns a reader serving length bytes starting at offset. The
// underlying file stays readable until the returned reader is closed, even
// if the blob is deleted mid-stream.
func (s *Store) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("%w: negative offset or length", storage.ErrInvalidKey)
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seeking blob: %w", err)
	}
	return &rangeReader{file: f, remaining: length}, nil
}

// Stat returns blob metadata.
func (s *Store) Stat(ctx context.Context, key string) (storage.BlobInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return storage.BlobInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.BlobInfo{}, storage.ErrNotFound
		}
		return storage.BlobInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	if info.IsDir() {
		return storage.BlobInfo{}, storage.ErrNotFound
	}
	return storage.BlobInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Exists reports whether the key holds a blob.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the blob file.
func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// resolve maps a key to an absolute path and rejects keys escaping the root.
func (s *Store) resolve(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", storage.ErrInvalidKey
	}
	if filepath.IsAbs(trimmed) {
		return "", storage.ErrInvalidKey
	}
	path := filepath.Join(s.root, filepath.FromSlash(trimmed))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", storage.ErrInvalidKey
	}
	return path, nil
}

type rangeReader struct {
	file      *os.File
	remaining int64
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.file.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *rangeReader) Close() error {
	return r.file.Close()
}
