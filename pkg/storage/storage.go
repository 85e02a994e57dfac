// Package storage defines the backend abstraction for persisting campaign
// assets and metadata.
//
// Backends implement a uniform byte-oriented surface over local disk and
// cloud object stores so the rest of the pipeline never branches on "which
// cloud". Authentication uses SDK default credential chains unless explicit
// credentials are configured - backends should not implement custom auth
// logic.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultURLExpiry is the expiry applied when callers pass a zero expiry
// to URL.
const DefaultURLExpiry = time.Hour

// Backend abstracts byte-level file operations over one storage provider.
//
// Failure semantics are deliberately asymmetric:
//   - Save, Exists, Delete and MakeDirectory fail soft: any I/O failure is
//     logged by the backend and collapsed into a false return. Callers are
//     expected to check the boolean and retry or skip.
//   - Read fails loud: a missing object is a caller bug, surfaced as an
//     error satisfying IsNotFound.
//   - List fails soft to an empty slice.
//
// A configured path prefix is an implementation detail of a single backend
// instance. Call-site paths are always prefix-free, and List strips the
// prefix back off, so swapping backends never requires call-site changes.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Provider returns the provider name ("local", "s3", "azure", "gcs").
	Provider() string

	// Save writes the content of r at path, creating intermediate
	// directories or key prefixes implicitly. Existing content at path is
	// overwritten.
	Save(ctx context.Context, r io.Reader, path string) bool

	// Read returns the full content at path. Returns an error satisfying
	// IsNotFound if the path does not resolve to an existing object.
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether an object exists at path. Errors collapse to
	// false.
	Exists(ctx context.Context, path string) bool

	// List returns the paths of objects under directory whose path relative
	// to directory matches pattern, sorted lexicographically and relative to
	// the backend root. Pattern "" or "*" matches everything. The result is
	// eagerly materialized and recomputed on each call.
	List(ctx context.Context, directory, pattern string) []string

	// Delete removes the object at path. Returns false if the object did
	// not exist or the delete failed.
	Delete(ctx context.Context, path string) bool

	// URL returns a time-limited URL granting read access to path. Cloud
	// backends return a pre-signed/SAS URL; the local backend returns a
	// file:// URI. The second return is false when no URL is available.
	// A zero expiry means DefaultURLExpiry.
	URL(ctx context.Context, path string, expiry time.Duration) (string, bool)

	// MakeDirectory creates directory and any parents. Flat-namespace
	// object stores treat this as a no-op returning true, since directories
	// are implied by key names.
	MakeDirectory(ctx context.Context, directory string) bool

	// Describe returns the provider name and sanitized configuration for
	// diagnostics. Credentials are redacted.
	Describe() Info

	// Close releases any resources held by the backend.
	Close() error
}

// Info is a sanitized description of a backend for diagnostics output.
type Info struct {
	Provider string            `json:"provider"`
	Settings map[string]string `json:"settings"`
}

// Redacted replaces credential values in diagnostics output.
const Redacted = "***REDACTED***"

// Optional backend capability interfaces, detected via type assertions.
// The core Backend interface stays intentionally small.

// Copier can copy objects without the bytes round-tripping through the
// caller. Local disk copies files directly; S3 uses server-side CopyObject.
type Copier interface {
	Copy(ctx context.Context, srcPath, dstPath string) bool
}

// Sizer reports object sizes without reading content.
type Sizer interface {
	Size(ctx context.Context, path string) (int64, bool)
}

// MatchPattern reports whether a path relative to the listed directory
// matches a glob pattern. The empty pattern and "*" match everything,
// including paths in nested directories; other patterns follow doublestar
// semantics ("*.png", "**/*.json", ...).
func MatchPattern(rel, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := doublestar.Match(pattern, rel)
	if err != nil {
		return false
	}
	return ok
}
