// Package gcs implements the storage backend for Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/adlift/adlift/pkg/storage"
)

// Config configures a Google Cloud Storage backend.
type Config struct {
	// Bucket is the GCS bucket name (required).
	Bucket string

	// ProjectID is used for bucket creation; listing and object access
	// work without it.
	ProjectID string

	// CredentialsPath points to a service account JSON key file. When
	// empty, application default credentials are used.
	CredentialsPath string

	// Prefix is prepended to every object name and stripped from listings.
	Prefix string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return &storage.ConfigError{Field: "gcs.bucket", Message: "bucket name is required"}
	}
	return nil
}

// Backend implements storage.Backend for Google Cloud Storage.
type Backend struct {
	client *gstorage.Client
	bucket string
	prefix string
	log    *zap.Logger
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Copier  = (*Backend)(nil)
	_ storage.Sizer   = (*Backend)(nil)
)

// New creates a GCS backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	client, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, &storage.BackendError{Op: "New", Provider: "gcs", Err: err}
	}

	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		prefix: storage.NormalizePrefix(cfg.Prefix),
		log:    log.With(zap.String("provider", "gcs"), zap.String("bucket", cfg.Bucket)),
	}, nil
}

func (b *Backend) Provider() string { return "gcs" }

func (b *Backend) Close() error { return b.client.Close() }

func (b *Backend) object(path string) *gstorage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(storage.JoinPrefix(b.prefix, path))
}

func (b *Backend) Save(ctx context.Context, r io.Reader, path string) bool {
	w := b.object(path).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := w.Close(); err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (b *Backend) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := b.object(path).NewReader(ctx)
	if err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	return data, nil
}

func (b *Backend) Exists(ctx context.Context, path string) bool {
	_, err := b.object(path).Attrs(ctx)
	return err == nil
}

func (b *Backend) List(ctx context.Context, directory, pattern string) []string {
	dirKey := strings.Trim(directory, "/")
	fullPrefix := storage.JoinPrefix(b.prefix, dirKey)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var paths []string
	it := b.client.Bucket(b.bucket).Objects(ctx, &gstorage.Query{Prefix: fullPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			b.log.Warn("list failed", zap.String("directory", directory), zap.Error(err))
			return nil
		}
		rel, ok := storage.StripPrefix(b.prefix, attrs.Name)
		if !ok {
			continue
		}
		relToDir, ok := storage.RelativeTo(dirKey, rel)
		if ok && storage.MatchPattern(relToDir, pattern) {
			paths = append(paths, rel)
		}
	}
	sort.Strings(paths)
	return paths
}

func (b *Backend) Delete(ctx context.Context, path string) bool {
	if err := b.object(path).Delete(ctx); err != nil {
		if !errors.Is(err, gstorage.ErrObjectNotExist) {
			b.log.Warn("delete failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return true
}

// URL returns a V4 signed URL. Requires signing credentials, so it fails
// under bare application default credentials without a key file.
func (b *Backend) URL(ctx context.Context, path string, expiry time.Duration) (string, bool) {
	_ = ctx
	if expiry <= 0 {
		expiry = storage.DefaultURLExpiry
	}
	url, err := b.client.Bucket(b.bucket).SignedURL(storage.JoinPrefix(b.prefix, path), &gstorage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().UTC().Add(expiry),
		Scheme:  gstorage.SigningSchemeV4,
	})
	if err != nil {
		b.log.Warn("signed url failed", zap.String("path", path), zap.Error(err))
		return "", false
	}
	return url, true
}

// MakeDirectory is a no-op: object directories are implied by name separators.
func (b *Backend) MakeDirectory(ctx context.Context, directory string) bool {
	_, _ = ctx, directory
	return true
}

// Copy performs a server-side object copy within the bucket.
func (b *Backend) Copy(ctx context.Context, src, dst string) bool {
	_, err := b.object(dst).CopierFrom(b.object(src)).Run(ctx)
	if err != nil {
		b.log.Warn("copy failed", zap.String("src", src), zap.String("dst", dst), zap.Error(err))
		return false
	}
	return true
}

// Size returns the object size in bytes.
func (b *Backend) Size(ctx context.Context, path string) (int64, bool) {
	attrs, err := b.object(path).Attrs(ctx)
	if err != nil {
		return 0, false
	}
	return attrs.Size, true
}

func (b *Backend) Describe() storage.Info {
	return storage.Info{
		Provider: "gcs",
		Settings: map[string]string{
			"bucket":      b.bucket,
			"prefix":      b.prefix,
			"credentials": storage.Redacted,
		},
	}
}

func (b *Backend) wrapError(op, path string, err error) error {
	wrapped := &storage.BackendError{Op: op, Provider: "gcs", Path: path, Err: err}
	switch {
	case errors.Is(err, gstorage.ErrObjectNotExist):
		wrapped.Err = storage.ErrNotFound
	case errors.Is(err, gstorage.ErrBucketNotExist):
		wrapped.Err = storage.ErrBucketNotFound
	}
	return wrapped
}
