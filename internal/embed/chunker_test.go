package embed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSplitsLongTextIntoMultiplePieces(t *testing.T) {
	c := NewTokenChunker(20, 0, 10)
	text := strings.Repeat("word ", 200)
	out, err := c.Chunk(context.Background(), text, false)
	require.NoError(t, err)
	assert.Greater(t, len(out), 1)
	for _, piece := range out {
		assert.NotEmpty(t, piece)
	}
}

func TestChunkEmptyTextReturnsNoPieces(t *testing.T) {
	c := NewTokenChunker(800, 0, 400)
	out, err := c.Chunk(context.Background(), "   \n\n  ", false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestChunkUsesNarrowerBudgetForCode(t *testing.T) {
	c := NewTokenChunker(800, 0, 10)
	text := strings.Repeat("func ", 100)
	codeChunks, err := c.Chunk(context.Background(), text, true)
	require.NoError(t, err)
	textChunks, err := c.Chunk(context.Background(), text, false)
	require.NoError(t, err)
	assert.Greater(t, len(codeChunks), len(textChunks))
}

func TestChunkOverlapCarriesTailIntoNextChunk(t *testing.T) {
	c := NewTokenChunker(15, 5, 10)
	text := strings.Repeat("alpha beta gamma delta ", 30)
	out, err := c.Chunk(context.Background(), text, false)
	require.NoError(t, err)
	require.Greater(t, len(out), 1)
}
