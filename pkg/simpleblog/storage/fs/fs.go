// Package fs provides a filesystem BlobStore. Object keys map to paths
// under a base directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Backend is a filesystem implementation of the simpleblog.BlobStore
// interface.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend.
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) path(objectKey string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(objectKey))
}

func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	filePath := b.path(objectKey)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "upload", Err: err}
	}

	file, err := os.Create(filePath)
	if err != nil {
		return &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "upload", Err: err}
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "upload", Err: err}
	}
	return nil
}

// UploadWithParams uploads content. The filesystem does not store the MIME
// type separately; it is detected on read.
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simpleblog.UploadParams) error {
	return b.Upload(ctx, params.ObjectKey, reader)
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	file, err := os.Open(b.path(objectKey))
	if os.IsNotExist(err) {
		return nil, simpleblog.ErrBlobNotFound
	} else if err != nil {
		return nil, &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "download", Err: err}
	}
	return file, nil
}

// Delete removes a blob. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath := b.path(objectKey)

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "delete", Err: err}
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// DeleteByPrefix removes every blob whose key starts with prefix and
// returns how many were removed. Keys like "blogs/42/" map to a directory,
// so the common case is a single directory removal.
func (b *Backend) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	root := b.path(strings.TrimSuffix(prefix, "/"))

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return 0, nil
	} else if err != nil {
		return 0, &simpleblog.StorageError{Backend: "fs", Key: prefix, Op: "delete_by_prefix", Err: err}
	}

	if !info.IsDir() {
		if err := os.Remove(root); err != nil {
			return 0, &simpleblog.StorageError{Backend: "fs", Key: prefix, Op: "delete_by_prefix", Err: err}
		}
		b.cleanupEmptyDirectories(filepath.Dir(root))
		return 1, nil
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, &simpleblog.StorageError{Backend: "fs", Key: prefix, Op: "delete_by_prefix", Err: err}
	}

	if err := os.RemoveAll(root); err != nil {
		return 0, &simpleblog.StorageError{Backend: "fs", Key: prefix, Op: "delete_by_prefix", Err: err}
	}
	b.cleanupEmptyDirectories(filepath.Dir(root))
	return count, nil
}

func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := os.Stat(b.path(objectKey))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "exists", Err: err}
	}
	return true, nil
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simpleblog.ObjectMeta, error) {
	filePath := b.path(objectKey)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, simpleblog.ErrBlobNotFound
	} else if err != nil {
		return nil, &simpleblog.StorageError{Backend: "fs", Key: objectKey, Op: "stat", Err: err}
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &simpleblog.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir.
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
