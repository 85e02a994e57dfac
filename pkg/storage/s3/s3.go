// Package s3 implements the storage backend for AWS S3 and S3-compatible
// object stores.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/adlift/adlift/pkg/storage"
)

// DefaultRegion is the fallback region for AWS S3 when none is configured
// or resolvable from the environment.
const DefaultRegion = "us-east-1"

// Config configures an S3 backend.
//
// Authentication follows the AWS SDK v2 default chain unless explicit
// credentials are provided. For S3-compatible stores set Endpoint and
// typically ForcePathStyle.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region. Defaults to us-east-1 for AWS S3 when not
	// resolvable from environment or profile; no default is applied when
	// Endpoint is set.
	Region string

	// AccessKeyID and SecretAccessKey are explicit credentials. Both must
	// be set together; when empty the default credential chain applies.
	AccessKeyID     string
	SecretAccessKey string

	// Prefix is prepended to every object key and stripped from listings.
	Prefix string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	ForcePathStyle bool
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return &storage.ConfigError{Field: "s3.bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &storage.ConfigError{
			Field:   "s3.access_key_id/secret_access_key",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	return nil
}

// Backend implements storage.Backend for S3.
type Backend struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
	prefix  string
	log     *zap.Logger
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Copier  = (*Backend)(nil)
)

// New creates an S3 backend. Configuration problems surface here, not on
// first use.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &storage.BackendError{Op: "New", Provider: "s3", Err: err}
	}

	s3Opts := []func(*awss3.Options){
		func(o *awss3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := awss3.NewFromConfig(awsCfg, s3Opts...)

	return &Backend{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  storage.NormalizePrefix(cfg.Prefix),
		log:     log.With(zap.String("provider", "s3"), zap.String("bucket", cfg.Bucket)),
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultRegion
	}
	return awsCfg, nil
}

func (b *Backend) Provider() string { return "s3" }

func (b *Backend) Close() error { return nil }

func (b *Backend) key(path string) string {
	return storage.JoinPrefix(b.prefix, path)
}

func (b *Backend) Save(ctx context.Context, r io.Reader, path string) bool {
	// Buffer so the SDK can sign with a known content length regardless of
	// the reader type.
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}

	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		b.log.Warn("save failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (b *Backend) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, b.wrapError("Read", path, err)
	}
	return data, nil
}

func (b *Backend) Exists(ctx context.Context, path string) bool {
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	return err == nil
}

func (b *Backend) List(ctx context.Context, directory, pattern string) []string {
	dirKey := strings.Trim(directory, "/")
	fullPrefix := storage.JoinPrefix(b.prefix, dirKey)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	input := &awss3.ListObjectsV2Input{Bucket: aws.String(b.bucket)}
	if fullPrefix != "" {
		input.Prefix = aws.String(fullPrefix)
	}

	var paths []string
	paginator := awss3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			b.log.Warn("list failed", zap.String("directory", directory), zap.Error(err))
			return nil
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel, ok := storage.StripPrefix(b.prefix, key)
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
	// DeleteObject succeeds on missing keys, so probe first to keep the
	// "false when absent" contract uniform across backends.
	if !b.Exists(ctx, path) {
		return false
	}
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		b.log.Warn("delete failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

// URL returns a pre-signed GET URL valid for expiry.
func (b *Backend) URL(ctx context.Context, path string, expiry time.Duration) (string, bool) {
	if expiry <= 0 {
		expiry = storage.DefaultURLExpiry
	}
	req, err := b.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		b.log.Warn("presign failed", zap.String("path", path), zap.Error(err))
		return "", false
	}
	return req.URL, true
}

// MakeDirectory is a no-op: S3 directories are implied by key names.
func (b *Backend) MakeDirectory(ctx context.Context, directory string) bool {
	_, _ = ctx, directory
	return true
}

// Copy performs a server-side copy, avoiding a download/re-upload round
// trip.
func (b *Backend) Copy(ctx context.Context, srcPath, dstPath string) bool {
	source := b.bucket + "/" + b.key(srcPath)
	_, err := b.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(b.key(dstPath)),
		CopySource: aws.String(url.PathEscape(source)),
	})
	if err != nil {
		b.log.Warn("copy failed", zap.String("path", srcPath), zap.Error(err))
		return false
	}
	return true
}

func (b *Backend) Describe() storage.Info {
	settings := map[string]string{
		"bucket": b.bucket,
		"prefix": b.prefix,
	}
	return storage.Info{Provider: "s3", Settings: settings}
}

// wrapError converts S3 errors to backend errors with sentinel mapping.
func (b *Backend) wrapError(op, path string, err error) error {
	wrapped := &storage.BackendError{Op: op, Provider: "s3", Path: path, Err: err}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = storage.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = storage.ErrBucketNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			wrapped.Err = storage.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = storage.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = storage.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = storage.ErrInvalidCredentials
		}
	}
	return wrapped
}
