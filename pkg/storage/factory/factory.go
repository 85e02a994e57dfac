// Package factory constructs storage backends from configuration.
package factory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/adlift/adlift/pkg/storage"
	"github.com/adlift/adlift/pkg/storage/azure"
	"github.com/adlift/adlift/pkg/storage/gcs"
	"github.com/adlift/adlift/pkg/storage/local"
	"github.com/adlift/adlift/pkg/storage/s3"
)

// Providers lists the backend names this build supports, in display order.
var Providers = []string{"local", "s3", "azure", "gcs"}

// New builds the backend selected by cfg.Provider. An unknown or empty
// provider is a configuration error, never a silent fallback.
func New(ctx context.Context, cfg storage.Config, log *zap.Logger) (storage.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "local":
		basePath := cfg.Local.BasePath
		if basePath == "" {
			basePath = storage.DefaultLocalBasePath
		}
		return local.New(local.Config{BasePath: basePath}, log)
	case "s3":
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
		}, log)
	case "azure":
		return azure.New(azure.Config{
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Container:        cfg.Azure.Container,
			Prefix:           cfg.Azure.Prefix,
		}, log)
	case "gcs":
		return gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCS.Bucket,
			ProjectID:       cfg.GCS.ProjectID,
			CredentialsPath: cfg.GCS.CredentialsPath,
			Prefix:          cfg.GCS.Prefix,
		}, log)
	case "":
		return nil, &storage.ConfigError{Field: "provider", Message: "provider is required"}
	default:
		return nil, &storage.ConfigError{
			Field:   "provider",
			Message: fmt.Sprintf("unknown provider %q (supported: %s)", cfg.Provider, strings.Join(Providers, ", ")),
		}
	}
}

// Probe reports which providers have enough configuration to be
// constructed. It does not call out to any cloud service.
func Probe(cfg storage.Config) map[string]bool {
	return map[string]bool{
		"local": true,
		"s3":    cfg.S3.Bucket != "",
		"azure": cfg.Azure.Container != "" && (cfg.Azure.ConnectionString != "" || (cfg.Azure.AccountName != "" && cfg.Azure.AccountKey != "")),
		"gcs":   cfg.GCS.Bucket != "",
	}
}
