package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/connectors"
)

// ConnectorHandlers exposes C5's listConnectors/runConnector surface.
type ConnectorHandlers struct {
	registry *connectors.Registry
}

func NewConnectorHandlers(registry *connectors.Registry) *ConnectorHandlers {
	return &ConnectorHandlers{registry: registry}
}

func (h *ConnectorHandlers) ListConnectors(c *gin.Context) {
	userID, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}
	rows, err := h.registry.ListConnectors(c.Request.Context(), userID, searchSpaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

type runConnectorRequest struct {
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	UpdateCursor bool       `json:"update_cursor"`
}

func (h *ConnectorHandlers) RunConnector(c *gin.Context) {
	id, err := uuid.Parse(c.Param("connector_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connector_id"})
		return
	}
	var req runConnectorRequest
	req.UpdateCursor = true
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.registry.RunConnector(c.Request.Context(), id, connectors.RunOptions{
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		UpdateCursor: req.UpdateCursor,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
