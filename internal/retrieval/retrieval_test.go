package retrieval

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

func TestAggregateToDocumentsConcatenatesContentAndKeepsBestScore(t *testing.T) {
	docID := uuid.New()
	hits := []store.ChunkHit{
		{DocumentID: docID, Content: "first chunk", FusedScore: 0.4},
		{DocumentID: docID, Content: "second chunk", FusedScore: 0.9},
	}
	out := aggregateToDocuments(hits)
	assert.Len(t, out, 1)
	assert.Contains(t, out[0].Content, "first chunk")
	assert.Contains(t, out[0].Content, "second chunk")
	assert.Equal(t, 0.9, out[0].FusedScore)
}

func TestAggregateToDocumentsKeepsDistinctDocumentsSeparate(t *testing.T) {
	hits := []store.ChunkHit{
		{DocumentID: uuid.New(), Content: "a", FusedScore: 0.5},
		{DocumentID: uuid.New(), Content: "b", FusedScore: 0.6},
	}
	out := aggregateToDocuments(hits)
	assert.Len(t, out, 2)
}

func TestChunkIDCounterIsMonotonicAndUniqueUnderConcurrency(t *testing.T) {
	c := &chunkIDCounter{next: 100}
	seen := make(chan int64, 50)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			seen <- c.nextID()
		}()
	}
	go func() { close(done) }()
	<-done

	ids := map[int64]bool{}
	for i := 0; i < 50; i++ {
		id := <-seen
		assert.False(t, ids[id], "chunk id %d issued twice", id)
		ids[id] = true
		assert.Greater(t, id, int64(100))
	}
}
