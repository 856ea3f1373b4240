package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type site struct {
	mu    sync.Mutex
	hits  map[string]int
	agent string
}

func newSite(t *testing.T, pages map[string]string) (*httptest.Server, *site) {
	t.Helper()
	s := &site{hits: make(map[string]int)}
	var srv *httptest.Server

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.agent = r.Header.Get("User-Agent")
		s.mu.Unlock()

		switch r.URL.Path {
		case "/sitemap.xml":
			var b strings.Builder
			b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
			for _, p := range []string{"/varsity/chapter/a/", "/varsity/chapter/b/", "/varsity/chapter/broken/", "/varsity/chapter/empty/", "/blog/c/"} {
				fmt.Fprintf(&b, "<url><loc>%s%s</loc></url>", srv.URL, p)
			}
			b.WriteString(`</urlset>`)
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(b.String()))
		case "/index.xml":
			fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/sitemap.xml</loc></sitemap></sitemapindex>`, srv.URL)
		case "/garbage.xml":
			_, _ = w.Write([]byte("<html><body>not a sitemap</body></html>"))
		default:
			body, ok := pages[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}
	}))
	return srv, s
}

var testPages = map[string]string{
	"/varsity/chapter/a/":     `<html><head><title>Index Funds</title></head><body><nav>menu</nav><p>An index fund tracks an index.</p></body></html>`,
	"/varsity/chapter/b/":     `<html><head><title>Options</title></head><body><p>A call option is a right.</p></body></html>`,
	"/varsity/chapter/empty/": `<html><body><script>var x;</script></body></html>`,
	"/blog/c/":                `<html><body><p>blog</p></body></html>`,
}

func TestCrawl(t *testing.T) {
	srv, s := newSite(t, testPages)
	defer srv.Close()

	c := New(Options{UserAgent: "Mozilla/5.0", Concurrency: 3})

	var progressCalls int
	var mu sync.Mutex
	result, err := c.Crawl(context.Background(), srv.URL+"/sitemap.xml", func(done, total int, url string) {
		mu.Lock()
		progressCalls++
		mu.Unlock()
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Pages)
	assert.Equal(t, 5, progressCalls)
	require.Len(t, result.Documents, 3)
	assert.Equal(t, "Index Funds", result.Documents[0].Title)
	assert.Equal(t, "An index fund tracks an index.", result.Documents[0].Text)
	assert.Equal(t, "Options", result.Documents[1].Title)
	assert.Equal(t, "blog", result.Documents[2].Text)
	assert.NotEmpty(t, result.Documents[0].ID)

	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].URL, "/broken/")
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "Mozilla/5.0", s.agent)
}

func TestCrawl_FilterAndMaxPages(t *testing.T) {
	srv, s := newSite(t, testPages)
	defer srv.Close()

	c := New(Options{Includes: []string{"/varsity/chapter/**"}, MaxPages: 2})
	result, err := c.Crawl(context.Background(), srv.URL+"/sitemap.xml", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pages)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, 0, s.hits["/blog/c/"])
}

func TestCrawl_SitemapIndex(t *testing.T) {
	srv, _ := newSite(t, testPages)
	defer srv.Close()

	c := New(Options{Excludes: []string{"/blog/**"}})
	urls, err := c.FetchSitemap(context.Background(), srv.URL+"/index.xml")
	require.NoError(t, err)
	assert.Len(t, urls, 5)

	result, err := c.Crawl(context.Background(), srv.URL+"/index.xml", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Pages)
}

func TestCrawl_SitemapFailureIsFatal(t *testing.T) {
	srv, s := newSite(t, testPages)
	defer srv.Close()

	c := New(Options{})
	for _, path := range []string{"/missing.xml", "/garbage.xml"} {
		_, err := c.Crawl(context.Background(), srv.URL+path, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSitemap), "got %v", err)
	}
	assert.Equal(t, 0, s.hits["/varsity/chapter/a/"])
}

func TestCrawl_OversizedPageIsFailure(t *testing.T) {
	pages := map[string]string{
		"/varsity/chapter/a/": `<html><body><p>` + strings.Repeat("long text ", 150) + `</p></body></html>`,
		"/varsity/chapter/b/": `<html><body><p>short</p></body></html>`,
	}
	srv, _ := newSite(t, pages)
	defer srv.Close()

	c := New(Options{Includes: []string{"/varsity/chapter/a/", "/varsity/chapter/b/"}, MaxPageSize: 700})
	result, err := c.Crawl(context.Background(), srv.URL+"/sitemap.xml", nil)
	require.NoError(t, err)

	require.Len(t, result.Documents, 1)
	assert.Equal(t, "short", result.Documents[0].Text)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].URL, "/chapter/a/")
	assert.ErrorIs(t, result.Failures[0].Err, ErrTooLarge)
}

func TestCrawl_Cancelled(t *testing.T) {
	srv, _ := newSite(t, testPages)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Crawl(ctx, srv.URL+"/sitemap.xml", nil)
	assert.Error(t, err)
}

func TestURLFilter(t *testing.T) {
	f := NewURLFilter([]string{"/varsity/**"}, []string{"/varsity/private/**"})

	assert.True(t, f.Allow("https://zerodha.com/varsity/chapter/x/"))
	assert.False(t, f.Allow("https://zerodha.com/varsity/private/x"))
	assert.False(t, f.Allow("https://zerodha.com/z-connect/"))

	all := NewURLFilter(nil, nil)
	assert.True(t, all.Allow("https://zerodha.com/"))
}
