package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/apperrors"
	"github.com/surfsense-core/knowledge-core/internal/store"
	"github.com/surfsense-core/knowledge-core/internal/tasklog"
)

// Ingestor is the C6 boundary a connector run hands canonical documents to.
// Defined here (rather than importing internal/ingest directly) so
// internal/ingest can in turn depend on internal/connectors' Cursor/Window
// types without a cycle.
type Ingestor interface {
	Ingest(ctx context.Context, searchSpaceID uuid.UUID, connectorID *uuid.UUID, doc store.CanonicalDocument) (docID uuid.UUID, created bool, err error)
}

// Factory builds a SourceCapability from a connector row's decrypted
// config.
type Factory func(cfg map[string]any) (SourceCapability, error)

// ConnectorDescriptor is the read-only projection listConnectors returns.
type ConnectorDescriptor struct {
	ID            uuid.UUID
	ConnectorType store.ConnectorType
	LastIndexedAt *time.Time
}

// RunOptions parameterize one runConnector invocation.
type RunOptions struct {
	StartDate    *time.Time
	EndDate      *time.Time
	UpdateCursor bool
}

// RunResult summarizes one completed run.
type RunResult struct {
	DocsProcessed int
	DocsSkipped   int
}

// Registry owns connector records and drives their Source Capability
// implementations; it is the C5 contract (`listConnectors`, `runConnector`,
// `refreshCredentials`) described in spec.md §4.1.
type Registry struct {
	repo     *store.Repository
	logs     *tasklog.Logger
	ingestor Ingestor
	cipher   *FieldCipher
	factories map[store.ConnectorType]Factory
}

func NewRegistry(repo *store.Repository, logs *tasklog.Logger, ingestor Ingestor, cipher *FieldCipher) *Registry {
	return &Registry{
		repo:      repo,
		logs:      logs,
		ingestor:  ingestor,
		cipher:    cipher,
		factories: map[store.ConnectorType]Factory{},
	}
}

// Register binds a connector type to the factory that builds its
// SourceCapability.
func (r *Registry) Register(t store.ConnectorType, f Factory) {
	r.factories[t] = f
}

func (r *Registry) ListConnectors(ctx context.Context, userID, searchSpaceID uuid.UUID) ([]ConnectorDescriptor, error) {
	rows, err := r.repo.ListConnectors(ctx, userID, searchSpaceID)
	if err != nil {
		return nil, err
	}
	out := make([]ConnectorDescriptor, 0, len(rows))
	for _, c := range rows {
		out = append(out, ConnectorDescriptor{ID: c.ID, ConnectorType: c.ConnectorType, LastIndexedAt: c.LastIndexedAt})
	}
	return out, nil
}

// RunConnector executes one connector's Source Capability over a resolved
// window and feeds every canonicalized item to the ingestor. Per-item
// failures are logged to C4 and skipped; a per-window fatal failure aborts
// without advancing the cursor.
func (r *Registry) RunConnector(ctx context.Context, connectorID uuid.UUID, opts RunOptions) (RunResult, error) {
	row, err := r.repo.GetConnector(ctx, connectorID)
	if err != nil {
		return RunResult{}, err
	}

	factory, ok := r.factories[row.ConnectorType]
	if !ok {
		return RunResult{}, fmt.Errorf("%w: no factory registered for %s", apperrors.ErrConnectorNotFound, row.ConnectorType)
	}
	cfg := r.decryptConfig(row.Config)
	source, err := factory(cfg)
	if err != nil {
		return RunResult{}, fmt.Errorf("%w: %v", apperrors.ErrMissingCredentials, err)
	}

	handle := r.logs.Start(ctx, "connector_run", string(row.ConnectorType))
	window := ResolveWindow(opts.StartDate, opts.EndDate, row.LastIndexedAt, time.Now().UTC())

	var result RunResult
	cursor := Cursor("")
	if row.ResumptionToken != nil {
		cursor = Cursor(*row.ResumptionToken)
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-heartbeat.C:
				handle.Progress("heartbeat", map[string]any{"docs_processed": result.DocsProcessed})
			}
		}
	}()
	defer close(done)

	for {
		items, next, err := source.FetchWindow(ctx, cursor, window)
		if err != nil {
			handle.Failure("fetch_window", err, map[string]any{"docs_processed": result.DocsProcessed})
			return result, fmt.Errorf("%w: %v", apperrors.ErrTransientUpstream, err)
		}
		if len(items) == 0 && next == "" {
			break
		}
		detector, detectsRenames := source.(RenameDetector)
		for _, item := range items {
			if detectsRenames {
				if renamed, update, ok := detector.IsRenameOnly(item); ok && renamed {
					hash := store.UniqueIDHash(update.DocumentType, update.SourceID, row.SearchSpaceID.String())
					if err := r.repo.UpdateDocumentTitleByUniqueIDHash(ctx, row.SearchSpaceID, hash, update.Title); err != nil {
						handle.Progress("item_failed", map[string]any{"error": err.Error(), "title": update.Title})
						result.DocsSkipped++
						continue
					}
					detector.Remember(item)
					result.DocsProcessed++
					continue
				}
			}

			canonical, err := source.ToCanonical(item)
			if err != nil {
				handle.Progress("item_failed", map[string]any{"error": err.Error()})
				result.DocsSkipped++
				continue
			}
			if _, _, err := r.ingestor.Ingest(ctx, row.SearchSpaceID, &row.ID, canonical); err != nil {
				handle.Progress("item_failed", map[string]any{"error": err.Error(), "title": canonical.Title})
				result.DocsSkipped++
				continue
			}
			if detectsRenames {
				detector.Remember(item)
			}
			result.DocsProcessed++
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if opts.UpdateCursor {
		tok := string(cursor)
		if err := r.repo.UpdateConnectorCursor(ctx, connectorID, window.End, &tok); err != nil {
			handle.Failure("update_cursor", err, nil)
			return result, err
		}
	}
	handle.Success("run_complete", map[string]any{"docs_processed": result.DocsProcessed, "docs_skipped": result.DocsSkipped})
	return result, nil
}

// RefreshCredentials is idempotent: it asks the connector's OAuth refresher
// (when configured) for a fresh access token and merges it into the
// existing config under row-level lock, never clobbering user-set options.
func (r *Registry) RefreshCredentials(ctx context.Context, connectorID uuid.UUID, refresh func(ctx context.Context, cfg map[string]any) (map[string]any, error)) error {
	row, err := r.repo.GetConnector(ctx, connectorID)
	if err != nil {
		return err
	}
	if refresh == nil {
		return nil
	}
	cfg := r.decryptConfig(row.Config)
	fresh, err := refresh(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrAuthExpired, err)
	}
	encrypted := r.encryptFields(fresh)
	return r.repo.MergeConnectorConfig(ctx, connectorID, encrypted)
}

func (r *Registry) decryptConfig(cfg store.JSONMap) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if s, ok := v.(string); ok && r.cipher != nil && isEncryptedField(k) {
			if dec, err := r.cipher.Decrypt(s); err == nil {
				out[k] = dec
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (r *Registry) encryptFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && r.cipher != nil && isEncryptedField(k) {
			if enc, err := r.cipher.Encrypt(s); err == nil {
				out[k] = enc
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isEncryptedField(key string) bool {
	switch key {
	case "access_token", "refresh_token", "api_key", "client_secret", "webhook_secret", "bot_token":
		return true
	default:
		return false
	}
}
