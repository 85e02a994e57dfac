package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is a minimal in-memory Backend for exercising the helpers
// that sit above the interface.
type memBackend struct {
	objects  map[string][]byte
	urlCalls int
	urlFail  bool
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (m *memBackend) Provider() string { return "mem" }
func (m *memBackend) Close() error     { return nil }

func (m *memBackend) Save(_ context.Context, r io.Reader, path string) bool {
	data, err := io.ReadAll(r)
	if err != nil {
		return false
	}
	m.objects[path] = data
	return true
}

func (m *memBackend) Read(_ context.Context, path string) ([]byte, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, &BackendError{Op: "Read", Provider: "mem", Path: path, Err: ErrNotFound}
	}
	return data, nil
}

func (m *memBackend) Exists(_ context.Context, path string) bool {
	_, ok := m.objects[path]
	return ok
}

func (m *memBackend) List(_ context.Context, directory, pattern string) []string {
	var out []string
	for path := range m.objects {
		rel, ok := RelativeTo(directory, path)
		if ok && MatchPattern(rel, pattern) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func (m *memBackend) Delete(_ context.Context, path string) bool {
	if _, ok := m.objects[path]; !ok {
		return false
	}
	delete(m.objects, path)
	return true
}

func (m *memBackend) URL(_ context.Context, path string, _ time.Duration) (string, bool) {
	m.urlCalls++
	if m.urlFail {
		return "", false
	}
	return fmt.Sprintf("mem://%s?sig=%d", path, m.urlCalls), true
}

func (m *memBackend) MakeDirectory(context.Context, string) bool { return true }

func (m *memBackend) Describe() Info {
	return Info{Provider: "mem", Settings: map[string]string{}}
}

func TestURLCache(t *testing.T) {
	ctx := context.Background()

	t.Run("caches repeated lookups", func(t *testing.T) {
		m := newMemBackend()
		c := NewURLCache(m)

		first, ok := c.URL(ctx, "a/banner.png", time.Hour)
		require.True(t, ok)
		second, ok := c.URL(ctx, "a/banner.png", time.Hour)
		require.True(t, ok)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, m.urlCalls)
	})

	t.Run("distinct expiries are distinct entries", func(t *testing.T) {
		m := newMemBackend()
		c := NewURLCache(m)

		_, ok := c.URL(ctx, "a/banner.png", time.Hour)
		require.True(t, ok)
		_, ok = c.URL(ctx, "a/banner.png", 2*time.Hour)
		require.True(t, ok)

		assert.Equal(t, 2, m.urlCalls)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		m := newMemBackend()
		m.urlFail = true
		c := NewURLCache(m)

		_, ok := c.URL(ctx, "a/banner.png", time.Hour)
		assert.False(t, ok)

		m.urlFail = false
		url, ok := c.URL(ctx, "a/banner.png", time.Hour)
		assert.True(t, ok)
		assert.NotEmpty(t, url)
	})

	t.Run("invalidate drops only the named path", func(t *testing.T) {
		m := newMemBackend()
		c := NewURLCache(m)

		_, _ = c.URL(ctx, "a/banner.png", time.Hour)
		_, _ = c.URL(ctx, "a/other.png", time.Hour)
		require.Equal(t, 2, m.urlCalls)

		c.Invalidate("a/banner.png")

		_, _ = c.URL(ctx, "a/other.png", time.Hour)
		assert.Equal(t, 2, m.urlCalls, "other path should still be cached")
		_, _ = c.URL(ctx, "a/banner.png", time.Hour)
		assert.Equal(t, 3, m.urlCalls, "invalidated path should re-sign")
	})
}

func TestSaveReadJSON(t *testing.T) {
	ctx := context.Background()
	m := newMemBackend()

	in := map[string]any{
		"campaign": "spring_sale",
		"variants": []any{"1x1", "9x16", "16x9"},
		"approved": true,
	}
	require.True(t, SaveJSON(ctx, m, in, "meta/spring.json"))

	var out map[string]any
	require.NoError(t, ReadJSON(ctx, m, "meta/spring.json", &out))
	assert.Equal(t, in, out)

	// Output is indented and newline-terminated for human diffing.
	raw, err := m.Read(ctx, "meta/spring.json")
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(raw, []byte("\n")))
	assert.True(t, strings.Contains(string(raw), "  \"campaign\""))
}

func TestReadJSONErrors(t *testing.T) {
	ctx := context.Background()
	m := newMemBackend()

	t.Run("missing object", func(t *testing.T) {
		var out map[string]any
		err := ReadJSON(ctx, m, "nope.json", &out)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("malformed payload", func(t *testing.T) {
		require.True(t, m.Save(ctx, strings.NewReader("{not json"), "bad.json"))
		var out map[string]any
		err := ReadJSON(ctx, m, "bad.json", &out)
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})
}
