// Package azure implements the storage backend for Azure Blob Storage.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"go.uber.org/zap"

	"github.com/adlift/adlift/pkg/storage"
)

// Config configures an Azure Blob backend. Either ConnectionString or
// AccountName+AccountKey must be provided.
type Config struct {
	AccountName      string
	AccountKey       string
	ConnectionString string

	// Container is the blob container name (required).
	Container string

	// Prefix is prepended to every blob name and stripped from listings.
	Prefix string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Container == "" {
		return &storage.ConfigError{Field: "azure.container", Message: "container name is required"}
	}
	if c.ConnectionString == "" && (c.AccountName == "" || c.AccountKey == "") {
		return &storage.ConfigError{
			Field:   "azure.account_name/account_key",
			Message: "account name and key are required when no connection string is provided",
		}
	}
	return nil
}

// Backend implements storage.Backend for Azure Blob Storage.
type Backend struct {
	client    *azblob.Client
	container string
	prefix    string
	log       *zap.Logger
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Sizer   = (*Backend)(nil)
)

// New creates an Azure Blob backend. Configuration problems surface here,
// not on first use.
func New(cfg Config, log *zap.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	var client *azblob.Client
	var err error
	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err == nil {
			serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
			client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		}
	}
	if err != nil {
		return nil, &storage.BackendError{Op: "New", Provider: "azure", Err: err}
	}

	return &Backend{
		client:    client,
		container: cfg.Container,
		prefix:    storage.NormalizePrefix(cfg.Prefix),
		log:       log.With(zap.String("provider", "azure"), zap.String("container", cfg.Container)),
	}, nil
}

func (b *Backend) Provider() string { return "azure" }

func (b *Backend) Close() error { return nil }

func (b *Backend) blobName(path string) string {
	return storage.JoinPrefix(b.prefix, path)
}

func (b *Backend) blobClient(path string) *blob.Client {
	return b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(b.blobName(path))
}

func (b *Backend) Save(ctx context.Context, r io.Reader, path string) bool {
	_, err := b.client.UploadStream(ctx, b.container, b.blobName(path), r, nil)
	if err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (b *Backend) Read(ctx context.Context, path string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, b.blobName(path), nil)
	if err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	return buf.Bytes(), nil
}

func (b *Backend) Exists(ctx context.Context, path string) bool {
	_, err := b.blobClient(path).GetProperties(ctx, nil)
	return err == nil
}

func (b *Backend) List(ctx context.Context, directory, pattern string) []string {
	dirKey := strings.Trim(directory, "/")
	fullPrefix := storage.JoinPrefix(b.prefix, dirKey)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	opts := &azblob.ListBlobsFlatOptions{}
	if fullPrefix != "" {
		opts.Prefix = &fullPrefix
	}

	var paths []string
	pager := b.client.NewListBlobsFlatPager(b.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			b.log.Warn("list failed", zap.String("directory", directory), zap.Error(err))
			return nil
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			rel, ok := storage.StripPrefix(b.prefix, *item.Name)
			if !ok {
				continue
			}
			relToDir, ok := storage.RelativeTo(dirKey, rel)
			if ok && storage.MatchPattern(relToDir, pattern) {
				paths = append(paths, rel)
			}
		}
	}
	sort.Strings(paths)
	return paths
}

func (b *Backend) Delete(ctx context.Context, path string) bool {
	_, err := b.client.DeleteBlob(ctx, b.container, b.blobName(path), nil)
	if err != nil {
		if !bloberror.HasCode(err, bloberror.BlobNotFound) {
			b.log.Warn("delete failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return true
}

// URL returns a read-only SAS URL valid for expiry. Requires shared-key
// credentials (connection string or account key).
func (b *Backend) URL(ctx context.Context, path string, expiry time.Duration) (string, bool) {
	_ = ctx
	if expiry <= 0 {
		expiry = storage.DefaultURLExpiry
	}
	url, err := b.blobClient(path).GetSASURL(
		sas.BlobPermissions{Read: true},
		time.Now().UTC().Add(expiry),
		nil,
	)
	if err != nil {
		b.log.Warn("sas url failed", zap.String("path", path), zap.Error(err))
		return "", false
	}
	return url, true
}

// MakeDirectory is a no-op: blob directories are implied by name separators.
func (b *Backend) MakeDirectory(ctx context.Context, directory string) bool {
	_, _ = ctx, directory
	return true
}

// Size returns the blob size in bytes.
func (b *Backend) Size(ctx context.Context, path string) (int64, bool) {
	props, err := b.blobClient(path).GetProperties(ctx, nil)
	if err != nil || props.ContentLength == nil {
		return 0, false
	}
	return *props.ContentLength, true
}

func (b *Backend) Describe() storage.Info {
	return storage.Info{
		Provider: "azure",
		Settings: map[string]string{
			"container":   b.container,
			"prefix":      b.prefix,
			"account_key": storage.Redacted,
		},
	}
}

func (b *Backend) wrapError(op, path string, err error) error {
	wrapped := &storage.BackendError{Op: op, Provider: "azure", Path: path, Err: err}
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		wrapped.Err = storage.ErrNotFound
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		wrapped.Err = storage.ErrBucketNotFound
	case bloberror.HasCode(err, bloberror.AuthorizationFailure), bloberror.HasCode(err, bloberror.InsufficientAccountPermissions):
		wrapped.Err = storage.ErrAccessDenied
	case bloberror.HasCode(err, bloberror.AuthenticationFailed):
		wrapped.Err = storage.ErrInvalidCredentials
	}
	return wrapped
}
