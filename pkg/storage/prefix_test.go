package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "campaigns", "campaigns"},
		{"trailing slash", "campaigns/", "campaigns"},
		{"leading slash", "/campaigns", "campaigns"},
		{"both slashes", "/campaigns/", "campaigns"},
		{"whitespace", "  campaigns/  ", "campaigns"},
		{"nested", "tenants/acme/", "tenants/acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrefix(tt.in))
		})
	}
}

func TestJoinPrefix(t *testing.T) {
	assert.Equal(t, "a/b.txt", JoinPrefix("", "a/b.txt"))
	assert.Equal(t, "campaigns/a/b.txt", JoinPrefix("campaigns", "a/b.txt"))
	assert.Equal(t, "campaigns/a/b.txt", JoinPrefix("campaigns", "/a/b.txt"))
}

func TestStripPrefix(t *testing.T) {
	rel, ok := StripPrefix("campaigns", "campaigns/a/b.txt")
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", rel)

	_, ok = StripPrefix("campaigns", "other/a/b.txt")
	assert.False(t, ok)

	rel, ok = StripPrefix("", "a/b.txt")
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", rel)
}

func TestRelativeTo(t *testing.T) {
	rel, ok := RelativeTo("a", "a/b.txt")
	assert.True(t, ok)
	assert.Equal(t, "b.txt", rel)

	rel, ok = RelativeTo("", "a/b.txt")
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", rel)

	_, ok = RelativeTo("a", "ab/c.txt")
	assert.False(t, ok)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		rel     string
		pattern string
		want    bool
	}{
		{"empty pattern matches all", "a/b/c.png", "", true},
		{"star matches all recursively", "a/b/c.png", "*", true},
		{"extension glob", "banner.png", "*.png", true},
		{"extension glob miss", "banner.jpg", "*.png", false},
		{"glob does not cross separators", "a/banner.png", "*.png", false},
		{"doublestar crosses separators", "a/b/banner.png", "**/*.png", true},
		{"exact", "report.json", "report.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPattern(tt.rel, tt.pattern))
		})
	}
}
