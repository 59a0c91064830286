package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// CanonicalDocument is the explicit, typed replacement for the dynamic
// attribute lookups the original Python source performs on source-library
// objects: every hash-relevant field is a named field here, and everything
// else lives in Metadata.
type CanonicalDocument struct {
	Title        string
	Type         DocumentType
	SourceID     string // empty when the source has no stable native id
	Metadata     map[string]string
	BodyMarkdown string
}

// Canonicalize renders the deterministic `<DOCUMENT>` wrapper that both the
// content hash and the summarizer prompt are computed over. Metadata keys
// are sorted so the output is stable across runs regardless of map
// iteration order.
func Canonicalize(doc CanonicalDocument) string {
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var meta strings.Builder
	for _, k := range keys {
		meta.WriteString(k)
		meta.WriteString(": ")
		meta.WriteString(doc.Metadata[k])
		meta.WriteString("\n")
	}

	var sb strings.Builder
	sb.WriteString("<DOCUMENT><METADATA>\n")
	sb.WriteString(meta.String())
	sb.WriteString("</METADATA><CONTENT>\n")
	sb.WriteString(doc.BodyMarkdown)
	sb.WriteString("\n</CONTENT></DOCUMENT>")
	return sb.String()
}

// ContentHash is SHA-256 over the canonical document text plus the owning
// search-space id; it is the global dedupe key (spec §4.2 step 2).
func ContentHash(canonical string, searchSpaceID string) string {
	return sha256Hex(canonical + "|" + searchSpaceID)
}

// UniqueIDHash is SHA-256 over (type, source-native id, search-space id);
// it is the identity used for idempotent updates of the same source item,
// distinct from content-based dedupe.
func UniqueIDHash(docType DocumentType, sourceID string, searchSpaceID string) string {
	return sha256Hex(fmt.Sprintf("%s|%s|%s", docType, sourceID, searchSpaceID))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
