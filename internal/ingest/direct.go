package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

// DirectIngestor exposes the three upload paths that bypass the connector
// scheduler entirely: a single crawled URL, a file already converted to
// markdown by the caller, and a browser-extension capture. All three build
// a CanonicalDocument and hand it to the same Pipeline.Ingest every
// connector uses, grounded on original_source's url_crawler.py,
// file_processors.py, and extension_processor.py.
type DirectIngestor struct {
	pipeline   *Pipeline
	httpClient *http.Client
}

func NewDirectIngestor(pipeline *Pipeline) *DirectIngestor {
	return &DirectIngestor{pipeline: pipeline, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// IngestCrawledURL fetches url, strips it down to readable markdown-ish
// text via goquery, and ingests it as a CRAWLED_URL document.
func (d *DirectIngestor) IngestCrawledURL(ctx context.Context, searchSpaceID uuid.UUID, rawURL string) (uuid.UUID, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ingest: build request for %s: %w", rawURL, err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ingest: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return uuid.Nil, false, fmt.Errorf("ingest: %s returned status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ingest: parse %s: %w", rawURL, err)
	}
	doc.Find("script, style, nav, footer").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = rawURL
	}
	body := strings.TrimSpace(doc.Find("body").Text())
	body = collapseWhitespace(body)

	return d.pipeline.Ingest(ctx, searchSpaceID, nil, store.CanonicalDocument{
		Title:        title,
		Type:         store.DocumentTypeCrawledURL,
		SourceID:     rawURL,
		Metadata:     map[string]string{"url": rawURL},
		BodyMarkdown: body,
	})
}

// FileUpload is a file already converted to markdown by an upstream ETL
// step (Unstructured/Docling/LlamaCloud equivalents are out of scope; the
// caller is responsible for extraction, matching the file_processors.py
// split between ETL-specific extraction and the shared persistence path).
type FileUpload struct {
	FileName string
	Markdown string
}

func (d *DirectIngestor) IngestFile(ctx context.Context, searchSpaceID uuid.UUID, f FileUpload) (uuid.UUID, bool, error) {
	return d.pipeline.Ingest(ctx, searchSpaceID, nil, store.CanonicalDocument{
		Title:        f.FileName,
		Type:         store.DocumentTypeFile,
		SourceID:     f.FileName,
		Metadata:     map[string]string{"file_name": f.FileName},
		BodyMarkdown: f.Markdown,
	})
}

// ExtensionCapture is one page captured by the browser extension: the
// visited page's content plus the metadata the extension collects
// alongside it (title, URL, visited timestamp).
type ExtensionCapture struct {
	VisitedWebPageTitle   string
	VisitedWebPageURL     string
	VisitedWebPageContent string
	VisitedWebPageVisitDuration string
}

func (d *DirectIngestor) IngestExtensionCapture(ctx context.Context, searchSpaceID uuid.UUID, c ExtensionCapture) (uuid.UUID, bool, error) {
	return d.pipeline.Ingest(ctx, searchSpaceID, nil, store.CanonicalDocument{
		Title:    c.VisitedWebPageTitle,
		Type:     store.DocumentTypeExtension,
		SourceID: c.VisitedWebPageURL,
		Metadata: map[string]string{
			"url":            c.VisitedWebPageURL,
			"visit_duration": c.VisitedWebPageVisitDuration,
		},
		BodyMarkdown: c.VisitedWebPageContent,
	})
}

// IngestCanonical hands an already-built CanonicalDocument straight to the
// pipeline, the entry point for sources like YouTube that build their own
// CanonicalDocument outside the connector registry's cursor/window model.
func (d *DirectIngestor) IngestCanonical(ctx context.Context, searchSpaceID uuid.UUID, doc store.CanonicalDocument) (uuid.UUID, bool, error) {
	return d.pipeline.Ingest(ctx, searchSpaceID, nil, doc)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
