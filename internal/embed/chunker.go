// Package embed implements C1: token-aware chunking plus the dense
// embedding call the ingestion pipeline and retrieval engine both depend
// on, grounded on yanqian-ai-helloworld's internal/infra/uploadask/
// chunker/simple.go token-budget splitter.
package embed

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenChunker splits text into token-budgeted fragments with configurable
// overlap, switching to a narrower budget for code files per the chunking
// step's code-aware variant.
type TokenChunker struct {
	MaxTokens     int
	Overlap       int
	CodeMaxTokens int
	encoder       *tiktoken.Tiktoken
}

func NewTokenChunker(maxTokens, overlap, codeMaxTokens int) *TokenChunker {
	if maxTokens <= 0 {
		maxTokens = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if codeMaxTokens <= 0 {
		codeMaxTokens = 400
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &TokenChunker{MaxTokens: maxTokens, Overlap: overlap, CodeMaxTokens: codeMaxTokens, encoder: enc}
}

// Chunk splits text by line then by token budget. Code files use a smaller
// budget and split on blank lines first so a chunk never straddles two
// unrelated functions any more than plain text straddles two paragraphs.
func (c *TokenChunker) Chunk(ctx context.Context, text string, isCode bool) ([]string, error) {
	budget := c.MaxTokens
	if isCode {
		budget = c.CodeMaxTokens
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	maxRunes := budget * 5
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })

	var (
		current      strings.Builder
		currentRunes int
		out          []string
	)

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			out = append(out, content)
		}
		current.Reset()
		currentRunes = 0
	}

	for _, line := range lines {
		words := strings.Fields(line)
		for _, word := range words {
			wordRunes := utf8.RuneCountInString(word)
			if currentRunes+wordRunes > maxRunes || c.countTokens(current.String()+word) >= budget {
				flush()
				if c.Overlap > 0 && len(out) > 0 {
					tail := c.tailTokens(out[len(out)-1], c.Overlap)
					current.WriteString(tail)
					currentRunes = utf8.RuneCountInString(tail)
				}
			}
			current.WriteString(word)
			current.WriteString(" ")
			currentRunes += wordRunes + 1
		}
		current.WriteString("\n")
		currentRunes++
	}
	if current.Len() > 0 {
		flush()
	}
	return out, nil
}

func (c *TokenChunker) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

func (c *TokenChunker) tailTokens(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}
	if c.encoder != nil {
		ids := c.encoder.Encode(text, nil, nil)
		if len(ids) <= limit {
			return text + " "
		}
		return c.encoder.Decode(ids[len(ids)-limit:]) + " "
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text + " "
	}
	return strings.Join(words[len(words)-limit:], " ") + " "
}
