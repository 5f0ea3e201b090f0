package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns cover downloads and account pages, which never
// describe the company.
var defaultExcludePatterns = []string{
	"/*.pdf",
	"/*.zip",
	"/*.jpg",
	"/*.png",
	"/login",
	"/cart/*",
	"/wp-admin/*",
}

// PathMatcher excludes URLs whose path matches a glob pattern. Matching
// ignores case. "/dir/*" excludes the directory and everything beneath
// it; "/*.ext" excludes that extension at any depth.
type PathMatcher struct {
	folded []string
}

// NewPathMatcher returns a matcher for patterns, or the default set when
// patterns is empty.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	folded := make([]string, len(patterns))
	for i, p := range patterns {
		folded[i] = strings.ToLower(p)
	}
	return &PathMatcher{folded: folded}
}

// IsExcluded reports whether rawURL should be skipped. Unparseable URLs
// are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.folded {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	switch {
	case strings.HasPrefix(pattern, "/*."):
		ok, _ := path.Match(pattern[2:], path.Base(urlPath))
		return ok
	case strings.HasSuffix(pattern, "/*"):
		dir := strings.TrimSuffix(pattern, "/*")
		return urlPath == dir || strings.HasPrefix(urlPath, dir+"/")
	default:
		ok, _ := path.Match(pattern, urlPath)
		return ok
	}
}
