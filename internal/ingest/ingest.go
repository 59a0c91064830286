// Package ingest implements C6: canonicalize -> dedupe/update -> summarize
// -> chunk -> embed -> persist, shared by every connector and by direct
// uploads (crawled URL, file, extension, YouTube), grounded on
// original_source's app/tasks/document_processors/*.py and
// services/impl/document_context_impl.go's chunk/context assembly.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/apperrors"
	"github.com/surfsense-core/knowledge-core/internal/llm"
	"github.com/surfsense-core/knowledge-core/internal/store"
	"github.com/surfsense-core/knowledge-core/internal/tasklog"
)

// Chunker splits a document body into semantic fragments (C1); code files
// use a distinct variant per spec §4.2 step 5.
type Chunker interface {
	Chunk(ctx context.Context, body string, isCode bool) ([]string, error)
}

// Embedder produces a dense vector per text (C1).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pipeline wires C3/C1/C2 together into the seven-step ingestion sequence.
type Pipeline struct {
	repo     *store.Repository
	chunker  Chunker
	embedder Embedder
	llm      llm.Provider
	logs     *tasklog.Logger
	// boundedFanout caps concurrent embedding/summarization calls at 4 per
	// spec §5 ("fanned out with a small bounded concurrency (<=4) to cap
	// upstream QPS").
	boundedFanout chan struct{}
}

func NewPipeline(repo *store.Repository, chunker Chunker, embedder Embedder, provider llm.Provider, logs *tasklog.Logger) *Pipeline {
	return &Pipeline{
		repo:          repo,
		chunker:       chunker,
		embedder:      embedder,
		llm:           provider,
		logs:          logs,
		boundedFanout: make(chan struct{}, 4),
	}
}

// Ingest implements connectors.Ingestor: it is the sole entry point every
// connector and direct-upload path calls into.
func (p *Pipeline) Ingest(ctx context.Context, searchSpaceID uuid.UUID, connectorID *uuid.UUID, doc store.CanonicalDocument) (uuid.UUID, bool, error) {
	canonical := store.Canonicalize(doc)
	contentHash := store.ContentHash(canonical, searchSpaceID.String())

	var uniqueIDHash *string
	if doc.SourceID != "" {
		h := store.UniqueIDHash(doc.Type, doc.SourceID, searchSpaceID.String())
		uniqueIDHash = &h
	}

	handle := p.logs.Start(ctx, "ingest_document", string(doc.Type))

	// Step 3: idempotency.
	if uniqueIDHash != nil {
		existing, err := p.repo.GetDocumentByUniqueIDHash(ctx, searchSpaceID, *uniqueIDHash)
		if err != nil {
			handle.Failure("dedupe_lookup", err, nil)
			return uuid.Nil, false, err
		}
		if existing != nil {
			if existing.ContentHash == contentHash {
				handle.Success("no_op", map[string]any{"document_id": existing.ID.String()})
				return existing.ID, false, nil
			}
			return p.updateExisting(ctx, handle, existing, doc, canonical, contentHash)
		}
	} else {
		existing, err := p.repo.GetDocumentByContentHash(ctx, searchSpaceID, contentHash)
		if err != nil {
			handle.Failure("dedupe_lookup", err, nil)
			return uuid.Nil, false, err
		}
		if existing != nil {
			handle.Success("no_op", map[string]any{"document_id": existing.ID.String()})
			return existing.ID, false, nil
		}
	}

	// New document.
	newDoc := &store.Document{
		ID:            uuid.New(),
		SearchSpaceID: searchSpaceID,
		ConnectorID:   connectorID,
		DocumentType:  doc.Type,
		Title:         doc.Title,
		Metadata:      toJSONMap(doc.Metadata),
		ContentHash:   contentHash,
		UniqueIDHash:  uniqueIDHash,
	}
	if err := p.summarizeChunkEmbedPersist(ctx, handle, newDoc, doc, canonical); err != nil {
		return uuid.Nil, false, err
	}
	handle.Success("persisted", map[string]any{"document_id": newDoc.ID.String()})
	return newDoc.ID, true, nil
}

func (p *Pipeline) updateExisting(ctx context.Context, handle *tasklog.Handle, existing *store.Document, doc store.CanonicalDocument, canonical, contentHash string) (uuid.UUID, bool, error) {
	existing.Title = doc.Title
	existing.Metadata = toJSONMap(doc.Metadata)
	existing.ContentHash = contentHash
	if err := p.summarizeChunkEmbedPersist(ctx, handle, existing, doc, canonical); err != nil {
		return uuid.Nil, false, err
	}
	handle.Success("updated", map[string]any{"document_id": existing.ID.String()})
	return existing.ID, false, nil
}

func (p *Pipeline) summarizeChunkEmbedPersist(ctx context.Context, handle *tasklog.Handle, d *store.Document, doc store.CanonicalDocument, canonical string) error {
	// Step 4: summarize.
	summary, err := p.llm.Summarize(ctx, canonical)
	if err != nil {
		handle.Failure("summarize", err, nil)
		return fmt.Errorf("%w: summarize: %v", apperrors.ErrTransientUpstream, err)
	}
	d.Summary = summary
	handle.Progress("summarized", map[string]any{"summary_length": len(summary)})

	// Step 5: chunk (code-aware variant selected by the caller via isCode).
	isCode := doc.Type == store.DocumentTypeGithub
	pieces, err := p.chunker.Chunk(ctx, doc.BodyMarkdown, isCode)
	if err != nil {
		handle.Failure("chunk", err, nil)
		return fmt.Errorf("chunk: %w", err)
	}
	handle.Progress("chunked", map[string]any{"chunk_count": len(pieces)})

	// Step 6: embed the summary and every chunk, bounded fan-out.
	summaryVec, err := p.embedder.Embed(ctx, summary)
	if err != nil {
		handle.Failure("embed_summary", err, nil)
		return fmt.Errorf("%w: embed summary: %v", apperrors.ErrTransientUpstream, err)
	}
	d.SummaryVector = summaryVec

	chunks := make([]store.Chunk, len(pieces))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		firstErr error
	)
	for i, text := range pieces {
		i, text := i, text
		wg.Add(1)
		p.boundedFanout <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-p.boundedFanout }()
			vec, err := p.embedder.Embed(ctx, text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			chunks[i] = store.Chunk{ID: uuid.New(), Content: text, Embedding: vec, ChunkIndex: i}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		handle.Failure("embed_chunks", firstErr, nil)
		return fmt.Errorf("%w: embed chunks: %v", apperrors.ErrTransientUpstream, firstErr)
	}

	// Step 7: persist document + chunks in a single transaction.
	if err := p.repo.SaveDocument(ctx, d, chunks); err != nil {
		handle.Failure("persist", err, nil)
		return err
	}
	return nil
}

func toJSONMap(m map[string]string) store.JSONMap {
	out := make(store.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
