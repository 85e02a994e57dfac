package storage

// Config is the configuration record consumed by the factory. It is loaded
// from an external config source (file, environment) by the caller - this
// package never reaches out to a fixed file path itself.
type Config struct {
	// Provider selects the backend: "local", "s3", "azure" or "gcs".
	Provider string `mapstructure:"provider" json:"provider"`

	Local LocalConfig `mapstructure:"local" json:"local"`
	S3    S3Config    `mapstructure:"s3" json:"s3"`
	Azure AzureConfig `mapstructure:"azure" json:"azure"`
	GCS   GCSConfig   `mapstructure:"gcs" json:"gcs"`
}

// DefaultLocalBasePath is the root directory used when no local base path
// is configured.
const DefaultLocalBasePath = "output/"

// LocalConfig configures the local filesystem backend.
type LocalConfig struct {
	// BasePath is the root directory for all storage operations.
	BasePath string `mapstructure:"base_path" json:"base_path"`
}

// S3Config configures the AWS S3 backend.
//
// When AccessKeyID/SecretAccessKey are empty the AWS SDK default credential
// chain applies (environment, shared config, instance roles).
type S3Config struct {
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	Region          string `mapstructure:"region" json:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key"`
	Prefix          string `mapstructure:"prefix" json:"prefix"`

	// Endpoint is a custom endpoint URL for S3-compatible stores
	// (MinIO, Wasabi, ...). Leave empty for AWS S3.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// ForcePathStyle forces path-style URLs, required by most
	// S3-compatible stores.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style"`
}

// AzureConfig configures the Azure Blob Storage backend. Either
// ConnectionString or AccountName+AccountKey is required.
type AzureConfig struct {
	AccountName      string `mapstructure:"account_name" json:"account_name"`
	AccountKey       string `mapstructure:"account_key" json:"account_key"`
	ConnectionString string `mapstructure:"connection_string" json:"connection_string"`
	Container        string `mapstructure:"container" json:"container"`
	Prefix           string `mapstructure:"prefix" json:"prefix"`
}

// GCSConfig configures the Google Cloud Storage backend. When
// CredentialsPath is empty, Application Default Credentials apply.
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	ProjectID       string `mapstructure:"project_id" json:"project_id"`
	CredentialsPath string `mapstructure:"credentials_path" json:"credentials_path"`
	Prefix          string `mapstructure:"prefix" json:"prefix"`
}

// DefaultConfig returns a local backend configuration rooted at
// DefaultLocalBasePath.
func DefaultConfig() Config {
	return Config{
		Provider: "local",
		Local:    LocalConfig{BasePath: DefaultLocalBasePath},
	}
}
