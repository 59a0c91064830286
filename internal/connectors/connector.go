// Package connectors implements C5: the registry of per-user external
// source configurations, the uniform Source Capability contract every
// concrete connector fulfils, and the scheduler that drives delta syncs.
package connectors

import (
	"context"
	"time"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

// Cursor is opaque per connector: Drive uses a change-page token,
// Linear/Slack/etc. use last_indexed_at, GitHub walks repo file trees. The
// registry never inspects its contents, only persists and replays it.
type Cursor string

// RawItem is one unit a Source Capability's fetchWindow yields, ahead of
// canonicalization.
type RawItem struct {
	Payload any
}

// Window bounds a fetch by time; either bound may be zero meaning
// unbounded on that side, resolved by ResolveWindow before a connector
// ever sees it.
type Window struct {
	Start time.Time
	End   time.Time
}

// SourceCapability is the contract every concrete connector implements,
// replacing the source's dynamic per-connector dictionaries and async
// generators with an explicit interface and a resumable iterator
// parameterized by Cursor (spec.md §9).
type SourceCapability interface {
	// FetchWindow returns the next page of raw items plus the cursor to
	// resume from, or a nil nextCursor when the window is exhausted.
	FetchWindow(ctx context.Context, cursor Cursor, window Window) (items []RawItem, nextCursor Cursor, err error)
	// ToCanonical converts one raw item into the typed document the
	// ingestion pipeline (C6) consumes.
	ToCanonical(item RawItem) (store.CanonicalDocument, error)
}

// RenameUpdate is the lightweight metadata change RunConnector applies when
// a RenameDetector reports a rename-only item, instead of running it
// through ToCanonical/Ingest.
type RenameUpdate struct {
	DocumentType store.DocumentType
	SourceID     string
	Title        string
}

// RenameDetector is implemented by capabilities that can tell a rename-only
// change (same content, new name) apart from a real content change, so
// RunConnector can skip the summarize/chunk/embed path for it entirely.
// Source capabilities that never rename content in place (most connectors)
// don't need to implement it.
type RenameDetector interface {
	// IsRenameOnly reports whether item is a rename-only change; ok is
	// false when the detector has no verdict (e.g. no prior metadata for
	// this item yet), in which case the caller falls back to ToCanonical.
	IsRenameOnly(item RawItem) (renamed bool, update RenameUpdate, ok bool)
	// Remember records item's metadata after it has been successfully
	// processed (renamed or fully ingested), so the next run's
	// IsRenameOnly has something to compare against.
	Remember(item RawItem)
}

// ResolveWindow applies the uniform date-window resolution rules from
// spec.md §4.1:
//   - If both startDate and endDate are supplied, use them verbatim.
//   - Else endDate = now.
//   - Else startDate = lastIndexedAt if present and not in the future,
//     clamped to a 365-day lookback window; otherwise now - 365 days.
func ResolveWindow(startDate, endDate *time.Time, lastIndexedAt *time.Time, now time.Time) Window {
	w := Window{}
	if endDate != nil {
		w.End = *endDate
	} else {
		w.End = now
	}

	maxLookback := now.AddDate(0, 0, -365)
	switch {
	case startDate != nil:
		w.Start = *startDate
	case lastIndexedAt != nil && !lastIndexedAt.After(now):
		if lastIndexedAt.Before(maxLookback) {
			w.Start = maxLookback
		} else {
			w.Start = *lastIndexedAt
		}
	default:
		w.Start = maxLookback
	}
	return w
}
