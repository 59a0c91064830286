package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/reports"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// ReportHandlers exposes §4.6's generation/revision/listing surface.
type ReportHandlers struct {
	repo *store.Repository
	gen  *reports.Generator
}

func NewReportHandlers(repo *store.Repository, gen *reports.Generator) *ReportHandlers {
	return &ReportHandlers{repo: repo, gen: gen}
}

type generateReportRequest struct {
	Topic            string `json:"topic" binding:"required"`
	Style            string `json:"style"`
	UserInstructions string `json:"user_instructions"`
	SourceContent    string `json:"source_content"`
	Short            bool   `json:"short"`
}

// PostGenerate creates a brand-new report group with its first version.
func (h *ReportHandlers) PostGenerate(c *gin.Context) {
	_, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	var req generateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, meta, err := h.gen.GenerateNew(c.Request.Context(), req.Topic, req.Style, req.UserInstructions, req.SourceContent, req.Short)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	groupID := uuid.New()
	row := &store.Report{
		SearchSpaceID: searchSpaceID,
		ReportGroupID: groupID,
		Title:         req.Topic,
		Content:       content,
		Metadata:      store.ReportMetadata(meta),
	}
	if err := h.repo.SaveReport(c.Request.Context(), row); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

type reviseReportRequest struct {
	Topic            string `json:"topic"`
	Style            string `json:"style"`
	UserInstructions string `json:"user_instructions" binding:"required"`
	SourceContent    string `json:"source_content"`
	Short            bool   `json:"short"`
}

// PostRevise appends a new version to an existing report group.
func (h *ReportHandlers) PostRevise(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("report_group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report_group_id"})
		return
	}
	var req reviseReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	previous, err := h.repo.GetLatestReport(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}

	content, meta, err := h.gen.Revise(c.Request.Context(), req.Topic, req.Style, req.UserInstructions, req.SourceContent, previous.Content, req.Short)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	row := &store.Report{
		SearchSpaceID: previous.SearchSpaceID,
		ReportGroupID: groupID,
		ParentID:      &previous.ID,
		Title:         previous.Title,
		Content:       content,
		Metadata:      store.ReportMetadata(meta),
	}
	if err := h.repo.SaveReport(c.Request.Context(), row); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

// GetLatest returns the most recent version in a report group.
func (h *ReportHandlers) GetLatest(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("report_group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report_group_id"})
		return
	}
	row, err := h.repo.GetLatestReport(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, row)
}
