package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/surfsense-core/knowledge-core/internal/connectors/youtube"
	"github.com/surfsense-core/knowledge-core/internal/ingest"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// IngestHandlers exposes the three direct-upload paths plus YouTube's
// single-URL ingestion, which bypasses the connector registry's
// cursor/window model entirely.
type IngestHandlers struct {
	direct  *ingest.DirectIngestor
	youtube *youtube.Connector
	repo    *store.Repository
}

func NewIngestHandlers(direct *ingest.DirectIngestor, yt *youtube.Connector, repo *store.Repository) *IngestHandlers {
	return &IngestHandlers{direct: direct, youtube: yt, repo: repo}
}

type crawlURLRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *IngestHandlers) PostCrawlURL(c *gin.Context) {
	_, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	var req crawlURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docID, created, err := h.direct.IngestCrawledURL(c.Request.Context(), searchSpaceID, req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "created": created})
}

type fileUploadRequest struct {
	FileName string `json:"file_name" binding:"required"`
	Markdown string `json:"markdown" binding:"required"`
}

func (h *IngestHandlers) PostFile(c *gin.Context) {
	_, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	var req fileUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docID, created, err := h.direct.IngestFile(c.Request.Context(), searchSpaceID, ingest.FileUpload{FileName: req.FileName, Markdown: req.Markdown})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "created": created})
}

type extensionCaptureRequest struct {
	VisitedWebPageTitle          string `json:"visited_web_page_title"`
	VisitedWebPageURL            string `json:"visited_web_page_url" binding:"required"`
	VisitedWebPageContent        string `json:"visited_web_page_content" binding:"required"`
	VisitedWebPageVisitDuration  string `json:"visited_web_page_visit_duration"`
}

func (h *IngestHandlers) PostExtensionCapture(c *gin.Context) {
	_, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	var req extensionCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docID, created, err := h.direct.IngestExtensionCapture(c.Request.Context(), searchSpaceID, ingest.ExtensionCapture{
		VisitedWebPageTitle:          req.VisitedWebPageTitle,
		VisitedWebPageURL:            req.VisitedWebPageURL,
		VisitedWebPageContent:        req.VisitedWebPageContent,
		VisitedWebPageVisitDuration:  req.VisitedWebPageVisitDuration,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "created": created})
}

type youtubeRequest struct {
	URL string `json:"url" binding:"required"`
}

// PostYouTube ingests a single video transcript directly: unlike the
// registry's connectors, YouTube has no cursor/window model, just one URL
// at a time.
func (h *IngestHandlers) PostYouTube(c *gin.Context) {
	_, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	if h.youtube == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "youtube ingestion is not configured"})
		return
	}
	var req youtubeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	canonical, err := h.youtube.Ingest(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	docID, created, err := h.direct.IngestCanonical(c.Request.Context(), searchSpaceID, canonical)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "created": created})
}
