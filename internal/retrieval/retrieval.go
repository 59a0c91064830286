// Package retrieval implements C7: the hybrid search engine every
// search_knowledge_base tool call and report kb_search strategy goes
// through, grounded on services/impl/hybrid_context.go's scoring/fusion
// shape, extended with the raw dense+lexical SQL from internal/store and a
// process-wide chunk-id sequence per spec §4.3.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

// Mode selects whether hits are returned per-chunk or aggregated to their
// owning document.
type Mode string

const (
	ModeChunks    Mode = "CHUNKS"
	ModeDocuments Mode = "DOCUMENTS"
)

// Embedder is the single method retrieval needs from internal/embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// WebProvider is one external web-search backend (Tavily, Linkup, SearxNG,
// Baidu), each mapped into the same citable-result envelope (internal/websearch).
type WebProvider interface {
	Name() string
	Search(ctx context.Context, query string, topK int) ([]WebResult, error)
}

// WebResult is one hit from a web-search provider.
type WebResult struct {
	Title       string
	URL         string
	Description string
}

// SourceRef is one entry inside a SourceEnvelope's sources list.
type SourceRef struct {
	ID          string
	Title       string
	Description string
	URL         string
}

// SourceEnvelope groups every hit that came from one connector type or web
// provider.
type SourceEnvelope struct {
	ID    int
	Name  string
	Type  string
	Sources []SourceRef
}

// DocumentRef identifies the document a citable chunk belongs to.
type DocumentRef struct {
	ID       uuid.UUID
	Title    string
	Type     string
	Metadata map[string]any
}

// CitableChunk is one chunk (or document, in DOCUMENTS mode) eligible for
// `[citation:<chunk_id>]` tokens in an agent response.
type CitableChunk struct {
	ChunkID  int64
	Content  string
	Score    float64
	Document DocumentRef
}

// SearchOptions configures one search() call.
type SearchOptions struct {
	TopK               int
	Mode               Mode
	EnabledSources      []store.DocumentType
	DateRange          *DateRange
	ExternalWebSources []string
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

// chunkIDCounter is a process-wide, per-user monotonic sequence seeded from
// the user's total chunk count, guarded by its own mutex so concurrent
// retrievals never collide on the same id (spec §4.3 / §5 shared-resource
// policy).
type chunkIDCounter struct {
	mu   sync.Mutex
	next int64
}

func (c *chunkIDCounter) nextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}

// Engine runs hybrid search over indexed sources and web providers.
type Engine struct {
	repo     *store.Repository
	embedder Embedder
	web      map[string]WebProvider

	countersMu sync.Mutex
	counters   map[uuid.UUID]*chunkIDCounter
}

func NewEngine(repo *store.Repository, embedder Embedder, web []WebProvider) *Engine {
	webByName := make(map[string]WebProvider, len(web))
	for _, p := range web {
		webByName[p.Name()] = p
	}
	return &Engine{
		repo:     repo,
		embedder: embedder,
		web:      webByName,
		counters: make(map[uuid.UUID]*chunkIDCounter),
	}
}

func (e *Engine) counterFor(ctx context.Context, userID uuid.UUID) (*chunkIDCounter, error) {
	e.countersMu.Lock()
	c, ok := e.counters[userID]
	e.countersMu.Unlock()
	if ok {
		return c, nil
	}

	seed, err := e.repo.CountChunksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: seed chunk-id counter: %w", err)
	}

	e.countersMu.Lock()
	defer e.countersMu.Unlock()
	if existing, ok := e.counters[userID]; ok {
		return existing, nil
	}
	c = &chunkIDCounter{next: seed}
	e.counters[userID] = c
	return c, nil
}

// Search is the C7 public operation.
func (e *Engine) Search(ctx context.Context, userID, searchSpaceID uuid.UUID, query string, opts SearchOptions) ([]SourceEnvelope, []CitableChunk, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.Mode == "" {
		opts.Mode = ModeChunks
	}

	counter, err := e.counterFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var envelopes []SourceEnvelope
	var citable []CitableChunk
	envelopeID := 1

	if len(opts.EnabledSources) > 0 || opts.EnabledSources == nil {
		queryVector, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieval: embed query: %w", err)
		}

		hits, err := e.repo.HybridSearchChunks(ctx, store.HybridSearchParams{
			SearchSpaceID: searchSpaceID,
			DocumentTypes: opts.EnabledSources,
			QueryText:     query,
			QueryVector:   queryVector,
			TopK:          opts.TopK,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("retrieval: hybrid search: %w", err)
		}

		byType := map[store.DocumentType][]store.ChunkHit{}
		for _, h := range hits {
			byType[h.DocumentType] = append(byType[h.DocumentType], h)
		}

		for docType, typeHits := range byType {
			env := SourceEnvelope{ID: envelopeID, Name: string(docType), Type: string(docType)}
			envelopeID++

			if opts.Mode == ModeDocuments {
				typeHits = aggregateToDocuments(typeHits)
			}
			sort.Slice(typeHits, func(i, j int) bool { return typeHits[i].FusedScore > typeHits[j].FusedScore })

			for _, h := range typeHits {
				env.Sources = append(env.Sources, SourceRef{ID: h.DocumentID.String(), Title: h.DocumentTitle})
				citable = append(citable, CitableChunk{
					ChunkID: counter.nextID(),
					Content: h.Content,
					Score:   h.FusedScore,
					Document: DocumentRef{
						ID:       h.DocumentID,
						Title:    h.DocumentTitle,
						Type:     string(h.DocumentType),
						Metadata: h.Metadata,
					},
				})
			}
			envelopes = append(envelopes, env)
		}
	}

	for _, name := range opts.ExternalWebSources {
		provider, ok := e.web[name]
		if !ok {
			continue
		}
		results, err := provider.Search(ctx, query, opts.TopK)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieval: web source %s: %w", name, err)
		}
		env := SourceEnvelope{ID: envelopeID, Name: name, Type: "WEB"}
		envelopeID++
		for _, r := range results {
			env.Sources = append(env.Sources, SourceRef{ID: r.URL, Title: r.Title, Description: r.Description, URL: r.URL})
			citable = append(citable, CitableChunk{
				ChunkID: counter.nextID(),
				Content: r.Description,
				Document: DocumentRef{
					Title: r.Title,
					Type:  "WEB",
					Metadata: map[string]any{"url": r.URL},
				},
			})
		}
		envelopes = append(envelopes, env)
	}

	return envelopes, citable, nil
}

// aggregateToDocuments combines same-document chunk hits into one hit per
// document, concatenating content and keeping the best fused score, per
// spec §4.3 ("aggregate to the owning document and return one hit per
// document with concatenated matching chunk content").
func aggregateToDocuments(hits []store.ChunkHit) []store.ChunkHit {
	byDoc := map[uuid.UUID]*store.ChunkHit{}
	order := []uuid.UUID{}
	for _, h := range hits {
		existing, ok := byDoc[h.DocumentID]
		if !ok {
			copied := h
			byDoc[h.DocumentID] = &copied
			order = append(order, h.DocumentID)
			continue
		}
		existing.Content += "\n---\n" + h.Content
		if h.FusedScore > existing.FusedScore {
			existing.FusedScore = h.FusedScore
			existing.DenseScore = h.DenseScore
			existing.LexicalScore = h.LexicalScore
		}
	}
	out := make([]store.ChunkHit, 0, len(order))
	for _, id := range order {
		out = append(out, *byDoc[id])
	}
	return out
}
