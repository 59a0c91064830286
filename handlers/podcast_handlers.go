package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/apperrors"
	"github.com/surfsense-core/knowledge-core/internal/jobs"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// PodcastHandlers exposes C9's enqueue/poll surface.
type PodcastHandlers struct {
	repo    *store.Repository
	runner  *jobs.PodcastRunner
	audio   *jobs.AudioStore
}

func NewPodcastHandlers(repo *store.Repository, runner *jobs.PodcastRunner, audio *jobs.AudioStore) *PodcastHandlers {
	return &PodcastHandlers{repo: repo, runner: runner, audio: audio}
}

type enqueuePodcastRequest struct {
	Title         string `json:"title" binding:"required"`
	SourceContent string `json:"source_content" binding:"required"`
	UserPrompt    string `json:"user_prompt"`
}

func (h *PodcastHandlers) PostEnqueue(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "podcast generation is not configured"})
		return
	}
	_, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	var req enqueuePodcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	podcastID, err := h.runner.Enqueue(c.Request.Context(), searchSpaceID, req.Title, req.SourceContent, req.UserPrompt)
	if err != nil {
		if errors.Is(err, apperrors.ErrPodcastInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"podcast_id": podcastID})
}

func (h *PodcastHandlers) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("podcast_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid podcast_id"})
		return
	}
	podcast, err := h.repo.GetPodcast(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "podcast not found"})
		return
	}

	resp := gin.H{"id": podcast.ID, "status": podcast.Status, "title": podcast.Title}
	if podcast.Status == store.PodcastStatusReady && podcast.AudioObjectKey != nil && h.audio != nil {
		url, err := h.audio.PresignedGetURL(c.Request.Context(), *podcast.AudioObjectKey)
		if err == nil {
			resp["audio_url"] = url
		}
	}
	if podcast.ErrorMessage != nil {
		resp["error"] = *podcast.ErrorMessage
	}
	c.JSON(http.StatusOK, resp)
}
