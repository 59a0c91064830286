package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToJSONMapConvertsStringMap(t *testing.T) {
	out := toJSONMap(map[string]string{"url": "https://example.com", "kind": "crawl"})
	assert.Equal(t, "https://example.com", out["url"])
	assert.Equal(t, "crawl", out["kind"])
	assert.Len(t, out, 2)
}

func TestToJSONMapHandlesNil(t *testing.T) {
	out := toJSONMap(nil)
	assert.NotNil(t, out)
	assert.Len(t, out, 0)
}

func TestNewPipelineBoundsFanoutAtFour(t *testing.T) {
	p := NewPipeline(nil, nil, nil, nil, nil)
	assert.Equal(t, 4, cap(p.boundedFanout))
}
