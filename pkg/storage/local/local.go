// Package local implements the storage backend for the local filesystem.
//
// Keys are treated as relative paths under a configured base directory.
// Every path is resolved against the base and rejected if it would escape
// it, defeating ".."-based traversal.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adlift/adlift/pkg/storage"
)

// Config configures a local backend.
type Config struct {
	// BasePath is the root directory for all operations.
	BasePath string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BasePath) == "" {
		return &storage.ConfigError{Field: "local.base_path", Message: "base path is required"}
	}
	return nil
}

// Backend implements storage.Backend for local disk.
type Backend struct {
	base string
	log  *zap.Logger
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Copier  = (*Backend)(nil)
	_ storage.Sizer   = (*Backend)(nil)
)

// New creates a local backend rooted at cfg.BasePath, creating the base
// directory if needed.
func New(cfg Config, log *zap.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	base := filepath.Clean(cfg.BasePath)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, &storage.BackendError{Op: "New", Provider: "local", Err: err}
	}
	return &Backend{base: base, log: log.With(zap.String("provider", "local"))}, nil
}

func (b *Backend) Provider() string { return "local" }

func (b *Backend) Close() error { return nil }

// resolve maps a logical path to an absolute path strictly inside the base
// directory. Traversal attempts are rejected, never confined silently.
func (b *Backend) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	clean = strings.TrimPrefix(clean, string(filepath.Separator))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &storage.BackendError{Op: "resolve", Provider: "local", Path: path, Err: storage.ErrInvalidPath}
	}
	return filepath.Join(b.base, clean), nil
}

func (b *Backend) Save(ctx context.Context, r io.Reader, path string) bool {
	_ = ctx
	full, err := b.resolve(path)
	if err != nil {
		b.log.Warn("save rejected", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}

	// Write via a temp file and rename so readers never observe a partial
	// object.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".adlift-save-*")
	if err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := tmp.Close(); err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := os.Rename(tmpName, full); err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (b *Backend) Read(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	return data, nil
}

func (b *Backend) Exists(ctx context.Context, path string) bool {
	_ = ctx
	full, err := b.resolve(path)
	if err != nil {
		return false
	}
	st, err := os.Stat(full)
	return err == nil && !st.IsDir()
}

func (b *Backend) List(ctx context.Context, directory, pattern string) []string {
	_ = ctx
	root, err := b.resolve(directory)
	if err != nil {
		b.log.Warn("list rejected", zap.String("directory", directory), zap.Error(err))
		return nil
	}
	if _, err := os.Stat(root); err != nil {
		return nil
	}

	dirKey := strings.Trim(filepath.ToSlash(filepath.Clean(directory)), "/")
	if dirKey == "." {
		dirKey = ""
	}

	var paths []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.base, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		relToDir, ok := storage.RelativeTo(dirKey, key)
		if ok && storage.MatchPattern(relToDir, pattern) {
			paths = append(paths, key)
		}
		return nil
	})
	sort.Strings(paths)
	return paths
}

func (b *Backend) Delete(ctx context.Context, path string) bool {
	_ = ctx
	full, err := b.resolve(path)
	if err != nil {
		b.log.Warn("delete rejected", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := os.Remove(full); err != nil {
		if !os.IsNotExist(err) {
			b.log.Warn("delete failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return true
}

// URL returns a file:// URI for path. Local URIs only work on this machine;
// expiry is ignored.
func (b *Backend) URL(ctx context.Context, path string, expiry time.Duration) (string, bool) {
	_ = expiry
	if !b.Exists(ctx, path) {
		return "", false
	}
	full, err := b.resolve(path)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", false
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), true
}

func (b *Backend) MakeDirectory(ctx context.Context, directory string) bool {
	_ = ctx
	full, err := b.resolve(directory)
	if err != nil {
		b.log.Warn("mkdir rejected", zap.String("directory", directory), zap.Error(err))
		return false
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		b.log.Warn("mkdir failed", zap.String("directory", directory), zap.Error(err))
		return false
	}
	return true
}

// Copy duplicates an object without the bytes passing through the caller.
func (b *Backend) Copy(ctx context.Context, srcPath, dstPath string) bool {
	_ = ctx
	src, err := b.resolve(srcPath)
	if err != nil {
		return false
	}
	dst, err := b.resolve(dstPath)
	if err != nil {
		return false
	}
	in, err := os.Open(src)
	if err != nil {
		b.log.Warn("copy failed", zap.String("path", srcPath), zap.Error(err))
		return false
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		b.log.Warn("copy failed", zap.String("path", dstPath), zap.Error(err))
		return false
	}
	out, err := os.Create(dst)
	if err != nil {
		b.log.Warn("copy failed", zap.String("path", dstPath), zap.Error(err))
		return false
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		b.log.Warn("copy failed", zap.String("path", dstPath), zap.Error(err))
		return false
	}
	return out.Close() == nil
}

// Size returns the size of the object at path in bytes.
func (b *Backend) Size(ctx context.Context, path string) (int64, bool) {
	_ = ctx
	full, err := b.resolve(path)
	if err != nil {
		return 0, false
	}
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		return 0, false
	}
	return st.Size(), true
}

func (b *Backend) Describe() storage.Info {
	return storage.Info{
		Provider: "local",
		Settings: map[string]string{"base_path": b.base},
	}
}

func (b *Backend) wrapError(op, path string, err error) error {
	wrapped := &storage.BackendError{Op: op, Provider: "local", Path: path, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	if os.IsNotExist(err) {
		wrapped.Err = storage.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = storage.ErrAccessDenied
	}
	return wrapped
}
