package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket or container does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidPath indicates a path that would escape the backend root.
	ErrInvalidPath = errors.New("invalid path")
)

// BackendError wraps provider-specific errors with context.
type BackendError struct {
	// Op is the operation that failed (e.g., "Read", "Save").
	Op string

	// Provider is the backend provider name (e.g., "s3").
	Provider string

	// Path is the logical, prefix-free path, if applicable.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidPath returns true if the error indicates a path-safety violation.
func IsInvalidPath(err error) bool {
	return errors.Is(err, ErrInvalidPath)
}

// ConfigError represents a configuration validation error. Configuration
// problems fail fast at backend construction time, never on first use.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "storage config: " + e.Field + ": " + e.Message
}
