package youtube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoIDFromWatchURL(t *testing.T) {
	id, err := VideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestVideoIDFromShortURL(t *testing.T) {
	id, err := VideoID("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestVideoIDFromEmbedURL(t *testing.T) {
	id, err := VideoID("https://www.youtube.com/embed/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestVideoIDFromVURL(t *testing.T) {
	id, err := VideoID("https://www.youtube.com/v/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestVideoIDRejectsUnrelatedURL(t *testing.T) {
	_, err := VideoID("https://example.com/watch?v=123")
	assert.Error(t, err)
}

type fixedTranscript struct {
	segments []TranscriptSegment
}

func (f fixedTranscript) Fetch(ctx context.Context, videoID string) ([]TranscriptSegment, error) {
	return f.segments, nil
}

func TestFormatTranscriptPrefixesEachLine(t *testing.T) {
	out := formatTranscript([]TranscriptSegment{
		{StartSeconds: 0, DurationSeconds: 2.5, Text: "hello"},
		{StartSeconds: 2.5, DurationSeconds: 1, Text: "world"},
	})
	assert.Equal(t, "[0.00s-2.50s] hello\n[2.50s-3.50s] world\n", out)
}

func TestConnectorIngestUsesVideoIDAsSourceID(t *testing.T) {
	c := NewConnector(fixedTranscript{segments: []TranscriptSegment{{StartSeconds: 0, DurationSeconds: 1, Text: "hi"}}})
	doc, err := c.Ingest(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	// The oembed HTTP call will fail in a sandboxed test environment; the
	// connector must still produce a document identified by video id.
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", doc.SourceID)
	assert.Equal(t, "dQw4w9WgXcQ", doc.Metadata["video_id"])
}
