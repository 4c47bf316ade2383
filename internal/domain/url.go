package domain

import (
	"regexp"
	"strings"
)

var repoURLPattern = regexp.MustCompile(`(?i)github\.com[:/]+([^/]+)/([^/?#]+)`)

// CanonicalRepoURL normalizes any accepted GitHub repo URL variant
// (ssh-style prefix, .git suffix, trailing slash or fragment, scheme
// case) to the single form https://github.com/<owner>/<repo>. Inputs
// that do not look like a GitHub repo URL are returned trimmed.
func CanonicalRepoURL(url string) string {
	s := strings.TrimSpace(url)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, ".git", "")
	m := repoURLPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return "https://github.com/" + m[1] + "/" + m[2]
}

// ParseRepoURL extracts the owner and name from a repo URL. Both are
// empty when the URL is not recognized.
func ParseRepoURL(url string) (owner, name string) {
	s := strings.ReplaceAll(strings.TrimSpace(url), ".git", "")
	m := repoURLPattern.FindStringSubmatch(s)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// FormatListName derives the remote list display name for a category
// key: underscores become spaces, each word is title-cased.
func FormatListName(category string) string {
	words := strings.Fields(strings.ReplaceAll(category, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
