package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surfsense-core/knowledge-core/internal/apperrors"
)

// Repository is the Document Store (C3): GORM owns the relational CRUD
// surface, a pooled pgx connection runs the hand-written hybrid search SQL
// GORM's query builder can't express — the same split
// yanqian-ai-helloworld draws between its gorm-free FAQ repository and a
// pgxpool-backed store.
type Repository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

func NewRepository(db *gorm.DB, pool *pgxpool.Pool) *Repository {
	return &Repository{db: db, pool: pool}
}

func (r *Repository) DB() *gorm.DB { return r.db }

// GetDocumentByContentHash looks up a document by its global dedupe key.
func (r *Repository) GetDocumentByContentHash(ctx context.Context, searchSpaceID uuid.UUID, hash string) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).
		Where("search_space_id = ? AND content_hash = ?", searchSpaceID, hash).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by content hash: %w", err)
	}
	return &doc, nil
}

// GetDocumentByUniqueIDHash looks up a document by its source-identity key.
func (r *Repository) GetDocumentByUniqueIDHash(ctx context.Context, searchSpaceID uuid.UUID, hash string) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).
		Where("search_space_id = ? AND unique_id_hash = ?", searchSpaceID, hash).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by unique id hash: %w", err)
	}
	return &doc, nil
}

// UpdateDocumentTitleByUniqueIDHash renames an already-indexed document in
// place without touching its content hash, chunks, or embeddings — the
// rename-only path a connector's RenameDetector routes around re-ingestion.
func (r *Repository) UpdateDocumentTitleByUniqueIDHash(ctx context.Context, searchSpaceID uuid.UUID, uniqueIDHash, title string) error {
	err := r.db.WithContext(ctx).Model(&Document{}).
		Where("search_space_id = ? AND unique_id_hash = ?", searchSpaceID, uniqueIDHash).
		Update("title", title).Error
	if err != nil {
		return fmt.Errorf("update document title: %w", err)
	}
	return nil
}

// SaveDocument persists a document and its chunks atomically: spec §4.2
// step 7 ("persist document + chunks in a single transaction; on SQL error,
// roll back and surface as retriable failure").
func (r *Repository) SaveDocument(ctx context.Context, doc *Document, chunks []Chunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(doc).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := tx.Where("document_id = ?", doc.ID).Delete(&Chunk{}).Error; err != nil {
				return err
			}
			for i := range chunks {
				chunks[i].DocumentID = doc.ID
			}
			if err := tx.Create(&chunks).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

// CountChunksForUser seeds the retrieval engine's per-request chunk-id
// sequence generator (spec §4.3 "seeded from the user's total chunk
// count").
func (r *Repository) CountChunksForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("knowledge_core.chunks").
		Joins("JOIN knowledge_core.documents ON knowledge_core.documents.id = knowledge_core.chunks.document_id").
		Joins("JOIN knowledge_core.search_spaces ON knowledge_core.search_spaces.id = knowledge_core.documents.search_space_id").
		Where("knowledge_core.search_spaces.user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count chunks for user: %w", err)
	}
	return count, nil
}

// ChunkHit is one row of a hybrid search: a chunk plus its owning
// document's identity and the fused score that produced this ranking.
type ChunkHit struct {
	ChunkID       uuid.UUID
	DocumentID    uuid.UUID
	Content       string
	DocumentTitle string
	DocumentType  DocumentType
	Metadata      JSONMap
	DenseScore    float64
	LexicalScore  float64
	FusedScore    float64
}

// HybridSearchParams configures one fan-out call against the chunk table.
type HybridSearchParams struct {
	SearchSpaceID uuid.UUID
	DocumentTypes []DocumentType
	QueryText     string
	QueryVector   []float32
	TopK          int
	DenseWeight   float64
	LexicalWeight float64
}

// HybridSearchChunks runs the combined dense-cosine + lexical-rank query
// described in spec §4.3, grounded on the `embedding <-> $1` pattern in
// yanqian-ai-helloworld's FindNearest, extended with a `ts_rank` lexical
// term and a weighted linear fusion GORM's query builder has no vocabulary
// for.
func (r *Repository) HybridSearchChunks(ctx context.Context, p HybridSearchParams) ([]ChunkHit, error) {
	if p.TopK <= 0 {
		p.TopK = 10
	}
	if p.DenseWeight == 0 && p.LexicalWeight == 0 {
		p.DenseWeight, p.LexicalWeight = 0.6, 0.4
	}

	typeFilter := ""
	args := []any{
		p.SearchSpaceID,
		pgvector.NewVector(p.QueryVector),
		p.QueryText,
		p.DenseWeight,
		p.LexicalWeight,
	}
	if len(p.DocumentTypes) > 0 {
		placeholders := make([]string, len(p.DocumentTypes))
		for i, t := range p.DocumentTypes {
			args = append(args, string(t))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		typeFilter = "AND d.document_type IN (" + strings.Join(placeholders, ",") + ")"
	}
	args = append(args, p.TopK)
	limitPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT
			c.id, c.document_id, c.content, d.title, d.document_type, d.metadata,
			1 - (c.embedding <-> $2) AS dense_score,
			ts_rank(to_tsvector('english', c.content), plainto_tsquery('english', $3)) AS lexical_score
		FROM knowledge_core.chunks c
		JOIN knowledge_core.documents d ON d.id = c.document_id
		WHERE d.search_space_id = $1
		%s
		ORDER BY ($4 * (1 - (c.embedding <-> $2))) + ($5 * ts_rank(to_tsvector('english', c.content), plainto_tsquery('english', $3))) DESC
		LIMIT %s
	`, typeFilter, limitPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("hybrid search chunks: %w", err)
	}
	defer rows.Close()

	var hits []ChunkHit
	for rows.Next() {
		var (
			h        ChunkHit
			metadata JSONMap
		)
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Content, &h.DocumentTitle, &h.DocumentType, &metadata, &h.DenseScore, &h.LexicalScore); err != nil {
			return nil, fmt.Errorf("scan hybrid search row: %w", err)
		}
		h.Metadata = metadata
		h.FusedScore = p.DenseWeight*h.DenseScore + p.LexicalWeight*h.LexicalScore
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hybrid search chunks: %w", err)
	}
	return hits, nil
}

// SaveUserMemory persists one recallable fact (save_memory tool).
func (r *Repository) SaveUserMemory(ctx context.Context, mem *UserMemory) error {
	if err := r.db.WithContext(ctx).Create(mem).Error; err != nil {
		return fmt.Errorf("save user memory: %w", err)
	}
	return nil
}

// RecallUserMemories runs a dense-only nearest-neighbour search over a
// user's saved facts (recall_memory tool).
func (r *Repository) RecallUserMemories(ctx context.Context, userID uuid.UUID, searchSpaceID uuid.UUID, queryVector []float32, topK int) ([]UserMemory, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, search_space_id, category, text, created_at
		FROM knowledge_core.user_memories
		WHERE user_id = $1 AND search_space_id = $2
		ORDER BY embedding <-> $3
		LIMIT $4
	`, userID, searchSpaceID, pgvector.NewVector(queryVector), topK)
	if err != nil {
		return nil, fmt.Errorf("recall user memories: %w", err)
	}
	defer rows.Close()

	var out []UserMemory
	for rows.Next() {
		var m UserMemory
		if err := rows.Scan(&m.ID, &m.UserID, &m.SearchSpaceID, &m.Category, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user memory row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetConnector fetches one connector row, translating a not-found lookup
// into the sentinel the connector registry branches on.
func (r *Repository) GetConnector(ctx context.Context, id uuid.UUID) (*SearchSourceConnector, error) {
	var c SearchSourceConnector
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrConnectorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connector: %w", err)
	}
	return &c, nil
}

// ListConnectors returns every connector registered for a search-space.
func (r *Repository) ListConnectors(ctx context.Context, userID, searchSpaceID uuid.UUID) ([]SearchSourceConnector, error) {
	var out []SearchSourceConnector
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND search_space_id = ?", userID, searchSpaceID).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	return out, nil
}

// UpdateConnectorCursor advances last_indexed_at and the opaque resumption
// token for a successful run (spec §4.1 "success updates the cursor only
// if the caller asks for it").
func (r *Repository) UpdateConnectorCursor(ctx context.Context, id uuid.UUID, lastIndexedAt any, resumptionToken *string) error {
	updates := map[string]any{"last_indexed_at": lastIndexedAt}
	if resumptionToken != nil {
		updates["resumption_token"] = *resumptionToken
	}
	err := r.db.WithContext(ctx).Model(&SearchSourceConnector{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update connector cursor: %w", err)
	}
	return nil
}

// MergeConnectorConfig re-encrypts and merges refreshed credential fields
// into an existing config without clobbering user-set options (spec §3
// invariant). Row-level locking is applied by the caller via
// WithRowLock.
func (r *Repository) MergeConnectorConfig(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c SearchSourceConnector
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&c, "id = ?", id).Error; err != nil {
			return err
		}
		if c.Config == nil {
			c.Config = JSONMap{}
		}
		for k, v := range fields {
			c.Config[k] = v
		}
		return tx.Model(&c).Update("config", c.Config).Error
	})
}

// AppendTaskLog writes one append-only C4 entry.
func (r *Repository) AppendTaskLog(ctx context.Context, entry *TaskLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append task log: %w", err)
	}
	return nil
}

// CreatePodcast inserts a pending podcast row so its id is available for
// frontend polling before synthesis starts.
func (r *Repository) CreatePodcast(ctx context.Context, p *Podcast) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create podcast: %w", err)
	}
	return nil
}

// UpdatePodcastStatus transitions a podcast's lifecycle status and,
// depending on outcome, records its audio object key or error message.
func (r *Repository) UpdatePodcastStatus(ctx context.Context, id uuid.UUID, status PodcastStatus, audioObjectKey, errMsg *string) error {
	updates := map[string]any{"status": status}
	if audioObjectKey != nil {
		updates["audio_object_key"] = *audioObjectKey
	}
	if errMsg != nil {
		updates["error_message"] = *errMsg
	}
	if err := r.db.WithContext(ctx).Model(&Podcast{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update podcast status: %w", err)
	}
	return nil
}

// GetPodcast fetches one podcast row.
func (r *Repository) GetPodcast(ctx context.Context, id uuid.UUID) (*Podcast, error) {
	var p Podcast
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get podcast: %w", err)
	}
	return &p, nil
}

// SaveReport inserts a new report version. Revisions are new rows chained
// by ParentID within the same ReportGroupID, never in-place mutations, so
// history is always recoverable.
func (r *Repository) SaveReport(ctx context.Context, rep *Report) error {
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetLatestReport fetches the newest row in a report's lineage.
func (r *Repository) GetLatestReport(ctx context.Context, reportGroupID uuid.UUID) (*Report, error) {
	var rep Report
	if err := r.db.WithContext(ctx).
		Where("report_group_id = ?", reportGroupID).
		Order("created_at DESC").
		First(&rep).Error; err != nil {
		return nil, fmt.Errorf("get latest report: %w", err)
	}
	return &rep, nil
}
