package crawler

import (
	"net/url"

	"github.com/bmatcuk/doublestar/v4"
)

// URLFilter selects sitemap entries by doublestar patterns matched against the URL path.
// No include patterns means every path is included.
type URLFilter struct {
	includes []string
	excludes []string
}

func NewURLFilter(includes, excludes []string) *URLFilter {
	return &URLFilter{
		includes: includes,
		excludes: excludes,
	}
}

func (f *URLFilter) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if len(f.includes) > 0 && !matchAny(f.includes, path) {
		return false
	}
	return !matchAny(f.excludes, path)
}

// Apply returns the allowed URLs, keeping their order.
func (f *URLFilter) Apply(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if f.Allow(u) {
			out = append(out, u)
		}
	}
	return out
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
