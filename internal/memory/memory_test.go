package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func TestSaveRejectsEmptyText(t *testing.T) {
	s := NewStore(nil, &fakeEmbedder{vector: []float32{0.1}})
	_, err := s.Save(context.Background(), [16]byte{}, [16]byte{}, CategoryFact, "")
	assert.Error(t, err)
}
