// Package handlers exposes the HTTP surface over C8/C5/C6/C9, the Go
// analog of agent_handlers.go/router_proxy.go's gin wiring, generalized
// from single-agent execution to the chat/report/podcast/connector
// surface described in the design notes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/surfsense-core/knowledge-core/internal/agent"
	"github.com/surfsense-core/knowledge-core/internal/agent/tools/linear"
	"github.com/surfsense-core/knowledge-core/internal/connectors/mcp"
	"github.com/surfsense-core/knowledge-core/internal/jobs"
	"github.com/surfsense-core/knowledge-core/internal/llm"
	"github.com/surfsense-core/knowledge-core/internal/memory"
	"github.com/surfsense-core/knowledge-core/internal/reports"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// ChatHandlers drives the per-turn tool-calling session: it builds a fresh
// ToolsetConfig and Session per request rather than keeping one resident,
// since the tool set (Memory, Reports, Podcasts, LinearClient) is the same
// across requests but the thread history is not.
type ChatHandlers struct {
	repo          *store.Repository
	provider      llm.Provider
	chatSlot      string
	kb            agent.KnowledgeBase
	docs          agent.DocsSearcher
	mem           *memory.Store
	reportGen     *reports.Generator
	podcasts      *jobs.PodcastRunner
	linearClient  linear.Client
	httpClient    *http.Client
}

func NewChatHandlers(repo *store.Repository, provider llm.Provider, chatSlot string, kb agent.KnowledgeBase, docs agent.DocsSearcher, mem *memory.Store, reportGen *reports.Generator, podcasts *jobs.PodcastRunner, linearClient linear.Client, httpClient *http.Client) *ChatHandlers {
	return &ChatHandlers{
		repo:         repo,
		provider:     provider,
		chatSlot:     chatSlot,
		kb:           kb,
		docs:         docs,
		mem:          mem,
		reportGen:    reportGen,
		podcasts:     podcasts,
		linearClient: linearClient,
		httpClient:   httpClient,
	}
}

type turnRequest struct {
	Message  string `json:"message" binding:"required"`
	ThreadID string `json:"thread_id"`
}

type turnResponse struct {
	ThreadID   string `json:"thread_id"`
	Reply      string `json:"reply"`
	Suspended  bool   `json:"suspended"`
	ToolName   string `json:"tool_name,omitempty"`
	CallID     string `json:"call_id,omitempty"`
}

// pendingApproval is the suspended mutating-tool call stored on the thread
// row (ChatThread.PendingApproval) between the suspending request and the
// resume request that approves or rejects it.
type pendingApproval struct {
	ToolName  string         `json:"tool_name"`
	CallID    string         `json:"call_id"`
	Arguments map[string]any `json:"arguments"`
}

type resumeRequest struct {
	ThreadID        string         `json:"thread_id" binding:"required"`
	Approve         bool           `json:"approve"`
	EditedArguments map[string]any `json:"edited_arguments"`
}

// PostResume completes a turn a prior PostTurn call suspended for host
// approval: it replays the stored tool call against the decision and
// continues the tool-calling loop from where it left off.
func (h *ChatHandlers) PostResume(c *gin.Context) {
	userID, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}

	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	threadID, err := uuid.Parse(req.ThreadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread_id"})
		return
	}

	db := h.repo.DB()
	var thread store.ChatThread
	if err := db.WithContext(c.Request.Context()).Preload("Messages").First(&thread, "id = ? AND search_space_id = ?", threadID, searchSpaceID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	if len(thread.PendingApproval) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "thread has no pending approval"})
		return
	}
	var pending pendingApproval
	if err := json.Unmarshal(thread.PendingApproval, &pending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history := make([]llm.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	toolset := agent.BuildToolset(agent.ToolsetConfig{
		UserID: userID, SearchSpaceID: searchSpaceID, ThreadID: &thread.ID,
		KnowledgeBase: h.kb, DocsSearcher: h.docs, Memory: h.mem,
		Reports: h.reportGen, Podcasts: h.podcasts, LinearClient: h.linearClient,
		MCPSpecs: []mcp.ToolSpec{}, HTTPClient: h.httpClient,
	})
	session := agent.NewSession(h.provider, h.chatSlot, toolset)

	suspension := &agent.Suspension{
		Request:  agent.ApprovalRequest{ToolName: pending.ToolName, CallID: pending.CallID, Arguments: pending.Arguments},
		ToolCall: llm.ToolCall{ID: pending.CallID},
		Messages: history,
	}
	updated, nextSuspension, err := session.Resume(c.Request.Context(), suspension, agent.ApprovalDecision{Approve: req.Approve, EditedArguments: req.EditedArguments})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if err := h.persistNewMessages(c.Request.Context(), thread.ID, len(history), updated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.setPendingApproval(c.Request.Context(), thread.ID, nextSuspension); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := turnResponse{ThreadID: thread.ID.String()}
	if nextSuspension != nil {
		resp.Suspended = true
		resp.ToolName = nextSuspension.Request.ToolName
		resp.CallID = nextSuspension.Request.CallID
		c.JSON(http.StatusOK, resp)
		return
	}
	if len(updated) > 0 {
		resp.Reply = updated[len(updated)-1].Content
	}
	c.JSON(http.StatusOK, resp)
}

// setPendingApproval records suspension on the thread row, or clears it when
// suspension is nil, so the next PostResume call knows what it's deciding on.
func (h *ChatHandlers) setPendingApproval(ctx context.Context, threadID uuid.UUID, suspension *agent.Suspension) error {
	var raw datatypes.JSON
	if suspension != nil {
		encoded, err := json.Marshal(pendingApproval{
			ToolName:  suspension.Request.ToolName,
			CallID:    suspension.Request.CallID,
			Arguments: suspension.Request.Arguments,
		})
		if err != nil {
			return err
		}
		raw = encoded
	}
	return h.repo.DB().WithContext(ctx).Model(&store.ChatThread{}).Where("id = ?", threadID).Update("pending_approval", raw).Error
}

// PostTurn drives one request through the tool-calling loop and persists
// the resulting thread history, mirroring ExecuteAgent's request/response
// shape generalized to a free-form chat turn instead of a fixed agent
// config.
func (h *ChatHandlers) PostTurn(c *gin.Context) {
	userID, searchSpaceID, ok := identifiers(c)
	if !ok {
		return
	}

	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, history, err := h.loadOrCreateThread(c.Request.Context(), searchSpaceID, req.ThreadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	toolset := agent.BuildToolset(agent.ToolsetConfig{
		UserID:        userID,
		SearchSpaceID: searchSpaceID,
		ThreadID:      &thread.ID,
		KnowledgeBase: h.kb,
		DocsSearcher:  h.docs,
		Memory:        h.mem,
		Reports:       h.reportGen,
		Podcasts:      h.podcasts,
		LinearClient:  h.linearClient,
		MCPSpecs:      []mcp.ToolSpec{},
		HTTPClient:    h.httpClient,
	})
	session := agent.NewSession(h.provider, h.chatSlot, toolset)

	messages := append(history, llm.Message{Role: "user", Content: req.Message})
	updated, suspension, err := session.Turn(c.Request.Context(), messages)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if err := h.persistNewMessages(c.Request.Context(), thread.ID, len(history), updated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.setPendingApproval(c.Request.Context(), thread.ID, suspension); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := turnResponse{ThreadID: thread.ID.String()}
	if suspension != nil {
		resp.Suspended = true
		resp.ToolName = suspension.Request.ToolName
		resp.CallID = suspension.Request.CallID
		c.JSON(http.StatusOK, resp)
		return
	}
	if len(updated) > 0 {
		resp.Reply = updated[len(updated)-1].Content
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandlers) loadOrCreateThread(ctx context.Context, searchSpaceID uuid.UUID, threadID string) (*store.ChatThread, []llm.Message, error) {
	db := h.repo.DB()
	if threadID != "" {
		id, err := uuid.Parse(threadID)
		if err == nil {
			var thread store.ChatThread
			if err := db.WithContext(ctx).Preload("Messages").First(&thread, "id = ?", id).Error; err == nil {
				history := make([]llm.Message, 0, len(thread.Messages))
				for _, m := range thread.Messages {
					history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
				}
				return &thread, history, nil
			}
		}
	}
	thread := &store.ChatThread{SearchSpaceID: searchSpaceID}
	if err := db.WithContext(ctx).Create(thread).Error; err != nil {
		return nil, nil, err
	}
	return thread, nil, nil
}

// persistNewMessages writes every message after the previously persisted
// history length: the just-sent user message plus whatever the turn loop
// appended (assistant replies, tool results).
func (h *ChatHandlers) persistNewMessages(ctx context.Context, threadID uuid.UUID, historyLen int, after []llm.Message) error {
	db := h.repo.DB()
	for _, m := range after[historyLen:] {
		row := store.ChatMessage{ThreadID: threadID, Role: store.MessageRole(m.Role), Content: m.Content}
		if err := db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func identifiers(c *gin.Context) (userID, searchSpaceID uuid.UUID, ok bool) {
	rawUser, _ := c.Get("user_id")
	userStr, _ := rawUser.(string)
	parsedUser, err := uuid.Parse(userStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
		return uuid.Nil, uuid.Nil, false
	}
	spaceStr := c.Param("search_space_id")
	parsedSpace, err := uuid.Parse(spaceStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search_space_id"})
		return uuid.Nil, uuid.Nil, false
	}
	return parsedUser, parsedSpace, true
}
