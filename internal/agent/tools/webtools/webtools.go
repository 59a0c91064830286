// Package webtools implements the agent's scrape_webpage and link_preview
// tools, grounded on original_source's
// app/agents/new_chat/tools/scrape_webpage.py and link_preview.py.
package webtools

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ExtractDomain strips scheme and a leading "www." from a URL, the way
// extract_domain() does in both Python tools.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// ScrapeID generates a stable short id for a scraped page, mirroring
// generate_scrape_id()'s md5-prefix scheme.
func ScrapeID(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return "scrape-" + hex.EncodeToString(sum[:])[:12]
}

// TruncateContent caps content length, preferring to cut at a sentence or
// paragraph boundary the way truncate_content() does.
func TruncateContent(content string, maxLength int) (string, bool) {
	if len(content) <= maxLength {
		return content, false
	}
	truncated := content[:maxLength]
	lastPeriod := strings.LastIndex(truncated, ".")
	lastParagraph := strings.LastIndex(truncated, "\n\n")
	boundary := lastPeriod
	if lastParagraph > boundary {
		boundary = lastParagraph
	}
	if boundary > int(float64(maxLength)*0.8) {
		truncated = content[:boundary+1]
	}
	return truncated + "\n\n[Content truncated...]", true
}

// ScrapeResult is the scrape_webpage tool's output.
type ScrapeResult struct {
	ID        string
	URL       string
	Domain    string
	Title     string
	Content   string
	Truncated bool
}

// ScrapePage fetches url and extracts its readable text content.
func ScrapePage(ctx context.Context, client *http.Client, rawURL string, maxLen int) (ScrapeResult, error) {
	if maxLen <= 0 {
		maxLen = 50000
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("webtools: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("webtools: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ScrapeResult{}, fmt.Errorf("webtools: %s returned status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("webtools: parse %s: %w", rawURL, err)
	}
	doc.Find("script, style, nav, footer, header").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	content, truncated := TruncateContent(text, maxLen)

	return ScrapeResult{
		ID:        ScrapeID(rawURL),
		URL:       rawURL,
		Domain:    ExtractDomain(rawURL),
		Title:     title,
		Content:   content,
		Truncated: truncated,
	}, nil
}

// LinkPreview is the link_preview tool's output: OpenGraph/Twitter-card
// metadata for rich chat-UI link cards.
type LinkPreview struct {
	URL         string
	Domain      string
	Title       string
	Description string
	ImageURL    string
}

// FetchLinkPreview fetches url and extracts OpenGraph metadata, falling
// back to Twitter Card tags, the way extract_og_content/
// extract_twitter_content chain in the Python tool.
func FetchLinkPreview(ctx context.Context, client *http.Client, rawURL string) (LinkPreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return LinkPreview{}, fmt.Errorf("webtools: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return LinkPreview{}, fmt.Errorf("webtools: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return LinkPreview{}, fmt.Errorf("webtools: %s returned status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return LinkPreview{}, fmt.Errorf("webtools: parse %s: %w", rawURL, err)
	}

	preview := LinkPreview{URL: rawURL, Domain: ExtractDomain(rawURL)}
	preview.Title = ogOrTwitter(doc, "title")
	if preview.Title == "" {
		preview.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	preview.Description = ogOrTwitter(doc, "description")
	preview.ImageURL = ogOrTwitter(doc, "image")
	return preview, nil
}

func ogOrTwitter(doc *goquery.Document, property string) string {
	if v, ok := doc.Find(fmt.Sprintf(`meta[property="og:%s"]`, property)).Attr("content"); ok {
		return v
	}
	if v, ok := doc.Find(fmt.Sprintf(`meta[name="twitter:%s"]`, property)).Attr("content"); ok {
		return v
	}
	return ""
}

// DefaultClient is a reasonably bounded HTTP client for both tools, per
// spec §5's 10s scrape timeout.
func DefaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
