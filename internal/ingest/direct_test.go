package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestCrawledURLReturnsErrorOnNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDirectIngestor(nil)
	_, _, err := d.IngestCrawledURL(context.Background(), uuid.New(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestIngestCrawledURLReturnsErrorOnUnreachableHost(t *testing.T) {
	d := NewDirectIngestor(nil)
	_, _, err := d.IngestCrawledURL(context.Background(), uuid.New(), "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
}

func TestCollapseWhitespaceJoinsFieldsWithSingleSpace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("a  \n\t b\n\nc "))
}

func TestCollapseWhitespaceHandlesEmptyString(t *testing.T) {
	assert.Equal(t, "", collapseWhitespace("   \n\t  "))
}
