// Package youtube implements direct YouTube video ingestion (S1): the
// oembed metadata call plus transcript fetch, grounded on
// original_source's app/tasks/document_processors/youtube_processor.py.
// Unlike the cursor-paged connectors, this is a direct-ingestion path: a
// single URL becomes a single document, invoked from the agent loop or the
// extension endpoint rather than the connector scheduler.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

// VideoID extracts a video id from any of the URL shapes YouTube accepts:
// youtu.be/<id>, youtube.com/watch?v=<id>, /embed/<id>, /v/<id>.
func VideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("youtube: parse url: %w", err)
	}
	host := u.Hostname()
	switch host {
	case "youtu.be":
		return strings.TrimPrefix(u.Path, "/"), nil
	case "www.youtube.com", "youtube.com":
		switch {
		case u.Path == "/watch":
			if v := u.Query().Get("v"); v != "" {
				return v, nil
			}
		case strings.HasPrefix(u.Path, "/embed/"):
			return strings.TrimPrefix(u.Path, "/embed/"), nil
		case strings.HasPrefix(u.Path, "/v/"):
			return strings.TrimPrefix(u.Path, "/v/"), nil
		}
	}
	return "", fmt.Errorf("youtube: could not extract video id from %q", rawURL)
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// TranscriptSegment is one captioned line with its time window.
type TranscriptSegment struct {
	StartSeconds    float64
	DurationSeconds float64
	Text            string
}

// TranscriptFetcher abstracts the caption source so tests can substitute a
// fixture; production wiring hits the same unofficial timedtext endpoint
// the Python `youtube_transcript_api` package scrapes.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) ([]TranscriptSegment, error)
}

// Connector builds a single CanonicalDocument from one YouTube URL.
type Connector struct {
	httpClient *http.Client
	transcript TranscriptFetcher
}

func NewConnector(transcript TranscriptFetcher) *Connector {
	return &Connector{httpClient: &http.Client{}, transcript: transcript}
}

// Ingest fetches metadata + transcript for rawURL and returns the canonical
// document ready for C6. A transcript fetch failure is not fatal: the
// document is still produced with a note in place of segments, matching
// the Python original's fallback ("No captions available...").
func (c *Connector) Ingest(ctx context.Context, rawURL string) (store.CanonicalDocument, error) {
	videoID, err := VideoID(rawURL)
	if err != nil {
		return store.CanonicalDocument{}, err
	}

	meta, err := c.fetchOembed(ctx, videoID)
	if err != nil {
		meta = oembedResponse{Title: "YouTube Video"}
	}

	var body string
	if c.transcript != nil {
		segments, err := c.transcript.Fetch(ctx, videoID)
		if err != nil {
			body = fmt.Sprintf("No captions available for this video. Error: %s", err)
		} else {
			body = formatTranscript(segments)
		}
	} else {
		body = "No captions available for this video."
	}

	return store.CanonicalDocument{
		Title:    meta.Title,
		Type:     store.DocumentTypeYoutubeVideo,
		SourceID: videoID,
		Metadata: map[string]string{
			"video_id":  videoID,
			"url":       rawURL,
			"author":    meta.AuthorName,
			"thumbnail": meta.ThumbnailURL,
		},
		BodyMarkdown: body,
	}, nil
}

func (c *Connector) fetchOembed(ctx context.Context, videoID string) (oembedResponse, error) {
	oembedURL := fmt.Sprintf("https://www.youtube.com/oembed?format=json&url=%s",
		url.QueryEscape(fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedURL, nil)
	if err != nil {
		return oembedResponse{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oembedResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return oembedResponse{}, fmt.Errorf("youtube: oembed status %d", resp.StatusCode)
	}
	var out oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return oembedResponse{}, err
	}
	return out, nil
}

func formatTranscript(segments []TranscriptSegment) string {
	var sb strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&sb, "[%.2fs-%.2fs] %s\n", s.StartSeconds, s.StartSeconds+s.DurationSeconds, s.Text)
	}
	return sb.String()
}
