// Package genericpage implements the shared cursor-paged Source Capability
// shape used by every REST-backed connector in scope
// (Slack/Notion/Linear/Jira/Confluence/GitHub/Discord/Clickup/Airtable/
// Luma/Circleback/Gmail/Gcalendar): page through the source, build one
// canonical unit per page item (one channel window, one issue+comments,
// one repo file, one Notion page...), hand to C6.
//
// Each concrete source differs only in its REST shape, so rather than
// duplicating the paging/heartbeat/skip-private-channel logic fourteen
// times, every source provides a small Fetcher and the loop lives here
// once, grounded on the common shape every indexer in
// original_source/app/connectors/*.py shares.
package genericpage

import (
	"context"
	"fmt"

	"github.com/surfsense-core/knowledge-core/internal/connectors"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// Item is one page element a Fetcher yields before canonicalization.
type Item struct {
	Title        string
	SourceID     string
	Metadata     map[string]string
	BodyMarkdown string
	// Skip is set by the fetcher when a unit is access-restricted (e.g. a
	// private Slack channel the bot isn't a member of); skipped items are
	// dropped before reaching C6, never surfaced as a failure (spec §4.1
	// "private channels the bot is not a member of are skipped, not
	// failed").
	Skip bool
}

// Fetcher is the one piece of source-specific logic each connector
// supplies: given a page cursor and the resolved window, return this
// page's items and the cursor for the next page (empty when exhausted).
type Fetcher interface {
	FetchPage(ctx context.Context, cursor connectors.Cursor, window connectors.Window) (items []Item, nextCursor connectors.Cursor, err error)
}

// Connector adapts a Fetcher plus a fixed DocumentType into
// connectors.SourceCapability.
type Connector struct {
	fetcher Fetcher
	docType store.DocumentType
}

func New(fetcher Fetcher, docType store.DocumentType) *Connector {
	return &Connector{fetcher: fetcher, docType: docType}
}

func (c *Connector) FetchWindow(ctx context.Context, cursor connectors.Cursor, window connectors.Window) ([]connectors.RawItem, connectors.Cursor, error) {
	items, next, err := c.fetcher.FetchPage(ctx, cursor, window)
	if err != nil {
		return nil, "", fmt.Errorf("genericpage: fetch page: %w", err)
	}
	out := make([]connectors.RawItem, 0, len(items))
	for _, it := range items {
		if it.Skip {
			continue
		}
		out = append(out, connectors.RawItem{Payload: it})
	}
	return out, next, nil
}

func (c *Connector) ToCanonical(raw connectors.RawItem) (store.CanonicalDocument, error) {
	it, ok := raw.Payload.(Item)
	if !ok {
		return store.CanonicalDocument{}, fmt.Errorf("genericpage: unexpected raw item type %T", raw.Payload)
	}
	return store.CanonicalDocument{
		Title:        it.Title,
		Type:         c.docType,
		SourceID:     it.SourceID,
		Metadata:     it.Metadata,
		BodyMarkdown: it.BodyMarkdown,
	}, nil
}
