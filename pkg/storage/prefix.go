package storage

import "strings"

// Key-prefix handling shared by the object-store backends.
//
// A backend instance may be configured with a fixed prefix that it prepends
// to every logical path. The prefix never leaks: callers pass prefix-free
// paths and listing results have the prefix stripped back off.

// NormalizePrefix canonicalizes a configured prefix: surrounding whitespace
// and slashes are removed, so "campaigns/", "/campaigns" and "campaigns"
// are equivalent. An empty result means no prefix.
func NormalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// JoinPrefix maps a caller-visible path to a full object key.
func JoinPrefix(prefix, path string) string {
	path = strings.TrimPrefix(path, "/")
	if prefix == "" {
		return path
	}
	if path == "" {
		return prefix
	}
	return prefix + "/" + path
}

// StripPrefix maps a full object key back to a caller-visible path. The
// second return is false when the key does not live under the prefix.
func StripPrefix(prefix, key string) (string, bool) {
	if prefix == "" {
		return key, true
	}
	rel, ok := strings.CutPrefix(key, prefix+"/")
	if !ok {
		return "", false
	}
	return rel, true
}

// RelativeTo returns path relative to directory, for pattern matching
// against listed keys. Both are prefix-free, slash-separated paths.
func RelativeTo(directory, path string) (string, bool) {
	directory = strings.Trim(directory, "/")
	if directory == "" {
		return path, true
	}
	return strings.CutPrefix(path, directory+"/")
}
