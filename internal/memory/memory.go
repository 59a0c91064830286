// Package memory implements the save_memory/recall_memory backing store,
// grounded on original_source's app/agents/new_chat/tools/user_memory.py
// (UserMemory rows embedded and recalled by semantic search, distinct from
// services/memory's 3-tier conversational memory).
package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

// Category mirrors the Python tool's MemoryCategory enum, used to tag a
// saved fact so recall results can be grouped or filtered by kind.
type Category string

const (
	CategoryPreference  Category = "preference"
	CategoryFact        Category = "fact"
	CategoryContext     Category = "context"
	CategoryInstruction Category = "instruction"
)

// Embedder is the narrow dependency memory needs from internal/embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store saves and recalls user-scoped facts.
type Store struct {
	repo     *store.Repository
	embedder Embedder
}

func NewStore(repo *store.Repository, embedder Embedder) *Store {
	return &Store{repo: repo, embedder: embedder}
}

// Save embeds and persists one fact (the save_memory tool).
func (s *Store) Save(ctx context.Context, userID, searchSpaceID uuid.UUID, category Category, text string) (uuid.UUID, error) {
	if text == "" {
		return uuid.Nil, fmt.Errorf("memory: text is required")
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return uuid.Nil, fmt.Errorf("memory: embed fact: %w", err)
	}
	mem := &store.UserMemory{
		UserID:        userID,
		SearchSpaceID: searchSpaceID,
		Category:      string(category),
		Text:          text,
		Embedding:     store.Vector(vector),
	}
	if err := s.repo.SaveUserMemory(ctx, mem); err != nil {
		return uuid.Nil, err
	}
	return mem.ID, nil
}

// Recalled is one memory returned by Recall, ready for tool-result
// formatting.
type Recalled struct {
	ID       uuid.UUID
	Category string
	Text     string
}

// Recall embeds the query and returns the topK nearest saved facts for this
// user within this search space (the recall_memory tool).
func (s *Store) Recall(ctx context.Context, userID, searchSpaceID uuid.UUID, query string, topK int) ([]Recalled, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}
	rows, err := s.repo.RecallUserMemories(ctx, userID, searchSpaceID, vector, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Recalled, 0, len(rows))
	for _, r := range rows {
		out = append(out, Recalled{ID: r.ID, Category: r.Category, Text: r.Text})
	}
	return out, nil
}
