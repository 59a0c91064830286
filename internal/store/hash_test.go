package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeIsStableAcrossMetadataOrdering(t *testing.T) {
	a := CanonicalDocument{
		Title:        "Quarterly Plan",
		Type:         DocumentTypeSlack,
		SourceID:     "C123",
		Metadata:     map[string]string{"channel": "general", "author": "alice"},
		BodyMarkdown: "hello world",
	}
	b := a
	b.Metadata = map[string]string{"author": "alice", "channel": "general"}

	assert.Equal(t, Canonicalize(a), Canonicalize(b))
}

func TestContentHashIsDeterministic(t *testing.T) {
	doc := CanonicalDocument{
		Title:        "t",
		Type:         DocumentTypeFile,
		Metadata:     map[string]string{"k": "v"},
		BodyMarkdown: "body",
	}
	canonical := Canonicalize(doc)
	h1 := ContentHash(canonical, "space-1")
	h2 := ContentHash(canonical, "space-1")
	h3 := ContentHash(canonical, "space-2")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestUniqueIDHashIsDeterministicAndTypeSensitive(t *testing.T) {
	h1 := UniqueIDHash(DocumentTypeLinear, "ENG-42", "space-1")
	h2 := UniqueIDHash(DocumentTypeLinear, "ENG-42", "space-1")
	h3 := UniqueIDHash(DocumentTypeJira, "ENG-42", "space-1")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestVectorRoundTrip(t *testing.T) {
	v := Vector{0.1, -0.2, 3}
	val, err := v.Value()
	assert.NoError(t, err)

	var out Vector
	assert.NoError(t, out.Scan(val))
	assert.InDeltaSlice(t, []float64{0.1, -0.2, 3}, toFloat64(out), 1e-6)
}

func toFloat64(v Vector) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
