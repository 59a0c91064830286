// Package apperrors defines the sentinel error kinds callers branch on,
// per the error taxonomy in the system's design notes (§7).
package apperrors

import "errors"

var (
	// ErrConnectorNotFound is returned when a connector id does not resolve
	// to a record the caller may access.
	ErrConnectorNotFound = errors.New("connector not found")
	// ErrMissingCredentials is returned when a connector's config lacks the
	// fields its Source Capability requires to run.
	ErrMissingCredentials = errors.New("connector is missing required credentials")
	// ErrAuthExpired is returned when an OAuth refresh attempt fails with
	// invalid_grant and the user must re-authenticate.
	ErrAuthExpired = errors.New("connector credentials expired, re-authentication required")
	// ErrRateLimited is returned after retry/backoff is exhausted against
	// an upstream source.
	ErrRateLimited = errors.New("rate limited by upstream source")
	// ErrSourceEmpty signals a successful run over an empty window; callers
	// must not treat this as a failure.
	ErrSourceEmpty = errors.New("no items in window")
	// ErrDuplicateDetected is normal control flow for the ingestion
	// pipeline's dedupe step; callers receive the existing document.
	ErrDuplicateDetected = errors.New("duplicate document detected")
	// ErrTransientUpstream wraps retryable HTTP 5xx / network failures.
	ErrTransientUpstream = errors.New("transient upstream error")
	// ErrPersistence wraps a rolled-back storage failure that is safe to retry.
	ErrPersistence = errors.New("persistence error")
	// ErrToolRejected is returned by an approval-gated tool whose proposed
	// action the host decision rejected.
	ErrToolRejected = errors.New("tool execution rejected")
	// ErrToolNotFound is returned when a mutating tool references an item
	// (issue, document) that no longer exists.
	ErrToolNotFound = errors.New("referenced item not found")
	// ErrPodcastInFlight is returned when a search-space already has a
	// PENDING or GENERATING podcast.
	ErrPodcastInFlight = errors.New("a podcast is already generating for this search space")
)
