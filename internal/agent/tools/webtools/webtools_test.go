package webtools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDomainStripsWWW(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("https://www.example.com/path"))
	assert.Equal(t, "example.com", ExtractDomain("https://example.com/path"))
}

func TestScrapeIDIsStableForSameURL(t *testing.T) {
	a := ScrapeID("https://example.com/a")
	b := ScrapeID("https://example.com/a")
	c := ScrapeID("https://example.com/b")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "scrape-"))
}

func TestTruncateContentLeavesShortContentUntouched(t *testing.T) {
	out, truncated := TruncateContent("short text", 100)
	assert.False(t, truncated)
	assert.Equal(t, "short text", out)
}

func TestTruncateContentCutsAtBoundary(t *testing.T) {
	content := strings.Repeat("a sentence. ", 100)
	out, truncated := TruncateContent(content, 50)
	assert.True(t, truncated)
	assert.Contains(t, out, "[Content truncated...]")
}

func TestScrapePageExtractsTitleAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Hello</title></head><body><script>bad()</script><p>World content</p></body></html>`))
	}))
	defer srv.Close()

	result, err := ScrapePage(context.Background(), DefaultClient(), srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello", result.Title)
	assert.Contains(t, result.Content, "World content")
	assert.NotContains(t, result.Content, "bad()")
}

func TestFetchLinkPreviewExtractsOpenGraphTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="OG Title" />
			<meta property="og:description" content="OG Description" />
		</head><body></body></html>`))
	}))
	defer srv.Close()

	preview, err := FetchLinkPreview(context.Background(), DefaultClient(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "OG Title", preview.Title)
	assert.Equal(t, "OG Description", preview.Description)
}
