package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

var instagramRe = regexp.MustCompile(`instagram\.com/([A-Za-z0-9_.]+)`)

// Crawler scrapes venue websites for contact details. It is deliberately
// shallow: one page per site, microdata and obvious selectors only. Anything
// it misses a higher-trust source can supply later.
type Crawler struct {
	raws   RawWriter
	client *http.Client
}

func NewCrawler(raws RawWriter, client *http.Client) *Crawler {
	if client == nil {
		client = http.DefaultClient
	}
	return &Crawler{raws: raws, client: client}
}

// IngestURL fetches one page and upserts a crawl observation keyed on the
// URL itself.
func (c *Crawler) IngestURL(ctx context.Context, pageURL, batchID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	page, err := ParsePage(resp.Body, pageURL)
	if err != nil {
		return err
	}
	if page.Name == "" {
		return fmt.Errorf("no venue name found at %s", pageURL)
	}

	payload := map[string]interface{}{
		"name":             page.Name,
		"address":          page.Address,
		"phone":            page.Phone,
		"description":      page.Description,
		"instagram_handle": page.Instagram,
		"url":              pageURL,
	}
	return upsertRaw(ctx, c.raws, rawstore.SourceWebsiteCrawl, pageURL, batchID, page.Name, nil, nil, payload)
}

// IngestURLs crawls a list of pages, one at a time. Per-page failures are
// counted and the run continues.
func (c *Crawler) IngestURLs(ctx context.Context, urls []string, batchID string) (*Summary, error) {
	summary := &Summary{Read: len(urls)}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := c.IngestURL(ctx, u, batchID); err != nil {
			logger.Log.WithError(err).WithField("url", u).Warn("crawl failed")
			summary.Errors++
			continue
		}
		summary.Ingested++
	}
	return summary, nil
}

// Page is what the crawler managed to read off one venue site.
type Page struct {
	Name        string
	Address     string
	Phone       string
	Description string
	Instagram   string
}

// ParsePage extracts venue details from HTML. Order of preference: schema.org
// microdata, then OpenGraph tags, then the title element.
func ParsePage(r io.Reader, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	page := &Page{}

	page.Name = strings.TrimSpace(doc.Find(`[itemprop="name"]`).First().Text())
	if page.Name == "" {
		page.Name, _ = doc.Find(`meta[property="og:site_name"]`).Attr("content")
	}
	if page.Name == "" {
		page.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}

	page.Address = strings.TrimSpace(doc.Find(`[itemprop="streetAddress"]`).First().Text())
	if page.Address == "" {
		page.Address = strings.TrimSpace(doc.Find("address").First().Text())
	}

	page.Phone = strings.TrimSpace(doc.Find(`[itemprop="telephone"]`).First().Text())
	if page.Phone == "" {
		if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			page.Phone = strings.TrimPrefix(href, "tel:")
		}
	}

	page.Description, _ = doc.Find(`meta[name="description"]`).Attr("content")
	if page.Description == "" {
		page.Description, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
	}
	page.Description = strings.TrimSpace(page.Description)

	doc.Find(`a[href*="instagram.com/"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if m := instagramRe.FindStringSubmatch(href); m != nil {
			page.Instagram = "@" + strings.TrimSuffix(m[1], "/")
			return false
		}
		return true
	})

	return page, nil
}
