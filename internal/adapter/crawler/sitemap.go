package crawler

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrSitemap is returned when the sitemap cannot be fetched or parsed. It aborts the crawl.
var ErrSitemap = errors.New("sitemap unavailable")

// ErrTooLarge is returned for a response body over the configured size limit. Such a
// page is a failure, not indexed partially.
var ErrTooLarge = errors.New("response too large")

const maxSitemapDepth = 3

type locEntry struct {
	Loc string `xml:"loc"`
}

// sitemapDoc covers both <urlset> and <sitemapindex> documents.
type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []locEntry `xml:"url"`
	Sitemaps []locEntry `xml:"sitemap"`
}

// FetchSitemap returns the page URLs listed in the sitemap at sitemapURL, in document
// order. Sitemap index files are expanded recursively.
func (c *Crawler) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return c.fetchSitemap(ctx, sitemapURL, 0)
}

func (c *Crawler) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxSitemapDepth {
		return nil, fmt.Errorf("%w: sitemap index nested deeper than %d at %s", ErrSitemap, maxSitemapDepth, sitemapURL)
	}

	body, _, err := c.get(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSitemap, err)
	}

	doc, err := parseSitemap(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrSitemap, sitemapURL, err)
	}

	switch doc.XMLName.Local {
	case "urlset":
		urls := make([]string, 0, len(doc.URLs))
		for _, u := range doc.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls, nil

	case "sitemapindex":
		var urls []string
		for _, sm := range doc.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			child, err := c.fetchSitemap(ctx, loc, depth+1)
			if err != nil {
				return nil, err
			}
			urls = append(urls, child...)
		}
		return urls, nil

	default:
		return nil, fmt.Errorf("%w: unexpected root element <%s> in %s", ErrSitemap, doc.XMLName.Local, sitemapURL)
	}
}

func parseSitemap(body []byte) (*sitemapDoc, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	var doc sitemapDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// get returns the response body and its Content-Type.
func (c *Crawler) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxPageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > c.maxPageSize {
		return nil, "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, c.maxPageSize)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
