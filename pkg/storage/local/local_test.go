package local

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlift/adlift/pkg/storage"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New(Config{BasePath: dir}, nil)
	require.NoError(t, err)
	return b, dir
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)

	var ce *storage.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestSaveReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	payload := []byte{0x00, 0x01, 0xff, 'p', 'n', 'g', 0x00}
	require.True(t, b.Save(ctx, bytes.NewReader(payload), "campaigns/spring/banner.png"))

	got, err := b.Read(ctx, "campaigns/spring/banner.png")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.True(t, b.Save(ctx, strings.NewReader("first"), "a.txt"))
	require.True(t, b.Save(ctx, strings.NewReader("second"), "a.txt"))

	got, err := b.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)

	require.True(t, b.Save(ctx, strings.NewReader("x"), "a.txt"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".adlift-save-"), "temp file left behind: %s", e.Name())
	}
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	_, err := b.Read(ctx, "nope.txt")
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
}

func TestPathTraversalConfined(t *testing.T) {
	// Traversal attempts resolve to a location still strictly inside the
	// base directory; nothing is ever written outside it.
	ctx := context.Background()
	b, dir := newTestBackend(t)

	for _, path := range []string{
		"../evil.txt",
		"../../etc/evil",
		"a/../../evil.txt",
	} {
		t.Run(path, func(t *testing.T) {
			b.Save(ctx, strings.NewReader("x"), path)
		})
	}

	for _, outside := range []string{
		filepath.Join(filepath.Dir(dir), "evil.txt"),
		filepath.Join(filepath.Dir(dir), "etc", "evil"),
		"/etc/evil",
	} {
		_, err := os.Stat(outside)
		assert.True(t, os.IsNotExist(err), "file escaped the base directory: %s", outside)
	}

	// Whatever was written stayed under the root.
	for _, key := range b.List(ctx, "", "") {
		full := filepath.Join(dir, filepath.FromSlash(key))
		rel, err := filepath.Rel(dir, full)
		assert.NoError(t, err)
		assert.False(t, strings.HasPrefix(rel, ".."), "listed key resolves outside root: %s", key)
	}
}

func TestInteriorDotDotIsConfined(t *testing.T) {
	// "a/../b.txt" cleans to "b.txt", still inside the root.
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.True(t, b.Save(ctx, strings.NewReader("x"), "a/../b.txt"))
	assert.True(t, b.Exists(ctx, "b.txt"))
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	assert.False(t, b.Exists(ctx, "a.txt"))
	require.True(t, b.Save(ctx, strings.NewReader("x"), "a.txt"))
	assert.True(t, b.Exists(ctx, "a.txt"))

	// Directories are not objects.
	require.True(t, b.MakeDirectory(ctx, "subdir"))
	assert.False(t, b.Exists(ctx, "subdir"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.True(t, b.Save(ctx, strings.NewReader("x"), "a.txt"))
	assert.True(t, b.Delete(ctx, "a.txt"))
	assert.False(t, b.Exists(ctx, "a.txt"))

	// Deleting a missing object reports false, quietly.
	assert.False(t, b.Delete(ctx, "a.txt"))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	for _, p := range []string{
		"campaigns/a/banner.png",
		"campaigns/a/brief.json",
		"campaigns/b/banner.png",
		"reports/run.json",
	} {
		require.True(t, b.Save(ctx, strings.NewReader(p), p))
	}

	t.Run("everything under root", func(t *testing.T) {
		got := b.List(ctx, "", "")
		assert.Equal(t, []string{
			"campaigns/a/banner.png",
			"campaigns/a/brief.json",
			"campaigns/b/banner.png",
			"reports/run.json",
		}, got)
	})

	t.Run("star matches recursively", func(t *testing.T) {
		got := b.List(ctx, "campaigns", "*")
		assert.Equal(t, []string{
			"campaigns/a/banner.png",
			"campaigns/a/brief.json",
			"campaigns/b/banner.png",
		}, got)
	})

	t.Run("glob within directory", func(t *testing.T) {
		got := b.List(ctx, "campaigns/a", "*.png")
		assert.Equal(t, []string{"campaigns/a/banner.png"}, got)
	})

	t.Run("doublestar glob", func(t *testing.T) {
		got := b.List(ctx, "campaigns", "**/*.png")
		assert.Equal(t, []string{
			"campaigns/a/banner.png",
			"campaigns/b/banner.png",
		}, got)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		assert.Empty(t, b.List(ctx, "nope", ""))
	})
}

func TestURL(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	_, ok := b.URL(ctx, "a.txt", 0)
	assert.False(t, ok, "missing object should not get a URL")

	require.True(t, b.Save(ctx, strings.NewReader("x"), "a.txt"))
	u, ok := b.URL(ctx, "a.txt", 0)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(u, "file://"), "got %s", u)
	assert.True(t, strings.HasSuffix(u, "/a.txt"))
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.True(t, b.Save(ctx, strings.NewReader("payload"), "src/a.txt"))
	require.True(t, b.Copy(ctx, "src/a.txt", "dst/b.txt"))

	got, err := b.Read(ctx, "dst/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	assert.False(t, b.Copy(ctx, "src/missing.txt", "dst/c.txt"))
}

func TestSize(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.True(t, b.Save(ctx, strings.NewReader("12345"), "a.txt"))
	n, ok := b.Size(ctx, "a.txt")
	require.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = b.Size(ctx, "missing.txt")
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	b, dir := newTestBackend(t)

	info := b.Describe()
	assert.Equal(t, "local", info.Provider)
	assert.Equal(t, filepath.Clean(dir), info.Settings["base_path"])
}

func TestSaveJSONThroughBackend(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	in := map[string]any{"campaign": "spring_sale", "ok": true}
	require.True(t, storage.SaveJSON(ctx, b, in, "meta.json"))

	var out map[string]any
	require.NoError(t, storage.ReadJSON(ctx, b, "meta.json", &out))
	assert.Equal(t, in, out)
}
