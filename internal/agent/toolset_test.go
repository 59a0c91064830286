package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsense-core/knowledge-core/internal/retrieval"
)

type fakeKnowledgeBase struct {
	chunks []retrieval.CitableChunk
}

func (f *fakeKnowledgeBase) Search(ctx context.Context, userID, searchSpaceID uuid.UUID, query string, opts retrieval.SearchOptions) ([]retrieval.SourceEnvelope, []retrieval.CitableChunk, error) {
	return nil, f.chunks, nil
}

func TestSearchKnowledgeBaseToolFormatsChunksWithCitationIDs(t *testing.T) {
	kb := &fakeKnowledgeBase{chunks: []retrieval.CitableChunk{
		{ChunkID: 42, Content: "some content", Document: retrieval.DocumentRef{Title: "Doc A", Type: "FILE"}},
	}}
	tool := newSearchKnowledgeBaseTool(kb, uuid.New(), uuid.New())
	outcome := tool.Invoke(context.Background(), map[string]any{"query": "what is it"})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Contains(t, outcome.Result, "chunk_id:42")
	assert.Contains(t, outcome.Result, "Doc A")
}

func TestSearchKnowledgeBaseToolRejectsEmptyQuery(t *testing.T) {
	tool := newSearchKnowledgeBaseTool(&fakeKnowledgeBase{}, uuid.New(), uuid.New())
	outcome := tool.Invoke(context.Background(), map[string]any{"query": ""})
	assert.Equal(t, OutcomeFailed, outcome.Kind)
}

func TestDisplayImageToolAddsSchemeAndDerivesDomain(t *testing.T) {
	tool := newDisplayImageTool()
	outcome := tool.Invoke(context.Background(), map[string]any{"src": "www.example.com/pic.png"})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Contains(t, outcome.Result, "https://www.example.com/pic.png")
	assert.Contains(t, outcome.Result, `"domain":"example.com"`)
}

func TestDisplayImageToolUsesAutoRatioForGithub(t *testing.T) {
	tool := newDisplayImageTool()
	outcome := tool.Invoke(context.Background(), map[string]any{"src": "https://github.com/foo/bar.png"})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Contains(t, outcome.Result, `"ratio":"auto"`)
}

type fakeDocsSearcher struct {
	chunks []DocChunk
}

func (f *fakeDocsSearcher) Search(ctx context.Context, query string, topK int) ([]DocChunk, error) {
	return f.chunks, nil
}

func TestSearchDocsToolGroupsChunksByDocumentWithDocPrefix(t *testing.T) {
	docs := &fakeDocsSearcher{chunks: []DocChunk{
		{ChunkID: 1, DocumentID: 9, Title: "Connectors", URL: "https://docs.example.com/connectors", Content: "how to add a connector"},
		{ChunkID: 2, DocumentID: 9, Title: "Connectors", URL: "https://docs.example.com/connectors", Content: "supported connector types"},
	}}
	tool := newSearchDocsTool(docs)
	outcome := tool.Invoke(context.Background(), map[string]any{"query": "how do connectors work"})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Contains(t, outcome.Result, "doc-9")
	assert.Contains(t, outcome.Result, "doc-1")
	assert.Contains(t, outcome.Result, "doc-2")
	assert.Contains(t, outcome.Result, "Connectors")
}

func TestSearchDocsToolRejectsEmptyQuery(t *testing.T) {
	tool := newSearchDocsTool(&fakeDocsSearcher{})
	outcome := tool.Invoke(context.Background(), map[string]any{"query": ""})
	assert.Equal(t, OutcomeFailed, outcome.Kind)
}
