package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalRepoURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain https", "https://github.com/Foo/Bar", "https://github.com/Foo/Bar"},
		{"git suffix", "https://github.com/Foo/Bar.git", "https://github.com/Foo/Bar"},
		{"ssh style", "git@github.com:Foo/Bar", "https://github.com/Foo/Bar"},
		{"trailing slash", "https://github.com/Foo/Bar/", "https://github.com/Foo/Bar"},
		{"fragment", "https://github.com/Foo/Bar#readme", "https://github.com/Foo/Bar"},
		{"query", "https://github.com/Foo/Bar?tab=stars", "https://github.com/Foo/Bar"},
		{"scheme case", "HTTPS://GITHUB.COM/Foo/Bar", "https://github.com/Foo/Bar"},
		{"surrounding space", "  https://github.com/Foo/Bar  ", "https://github.com/Foo/Bar"},
		{"empty", "", ""},
		{"non-github passthrough", "https://gitlab.com/Foo/Bar", "https://gitlab.com/Foo/Bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalRepoURL(tt.in))
		})
	}
}

func TestCanonicalRepoURLVariantsCollapse(t *testing.T) {
	variants := []string{
		"https://github.com/Foo/Bar.git",
		"git@github.com:Foo/Bar",
		"https://github.com/Foo/Bar/",
	}
	for _, v := range variants {
		assert.Equal(t, "https://github.com/Foo/Bar", CanonicalRepoURL(v), v)
	}
}

func TestParseRepoURL(t *testing.T) {
	owner, name := ParseRepoURL("https://github.com/Foo/Bar")
	assert.Equal(t, "Foo", owner)
	assert.Equal(t, "Bar", name)

	owner, name = ParseRepoURL("git@github.com:torvalds/linux.git")
	assert.Equal(t, "torvalds", owner)
	assert.Equal(t, "linux", name)

	owner, name = ParseRepoURL("not a url")
	assert.Empty(t, owner)
	assert.Empty(t, name)
}

func TestFormatListName(t *testing.T) {
	assert.Equal(t, "Ml Tools", FormatListName("ml_tools"))
	assert.Equal(t, "Web Frameworks", FormatListName("web_frameworks"))
	assert.Equal(t, "Databases", FormatListName("databases"))
	assert.Equal(t, "Dev Ops", FormatListName("DEV_OPS"))
}
