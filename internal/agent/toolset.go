package agent

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/surfsense-core/knowledge-core/internal/agent/tools/linear"
	"github.com/surfsense-core/knowledge-core/internal/agent/tools/webtools"
	"github.com/surfsense-core/knowledge-core/internal/apperrors"
	"github.com/surfsense-core/knowledge-core/internal/connectors/mcp"
	"github.com/surfsense-core/knowledge-core/internal/jobs"
	"github.com/surfsense-core/knowledge-core/internal/memory"
	"github.com/surfsense-core/knowledge-core/internal/reports"
	"github.com/surfsense-core/knowledge-core/internal/retrieval"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// KnowledgeBase is the narrow retrieval.Engine surface the
// search_knowledge_base tool needs.
type KnowledgeBase interface {
	Search(ctx context.Context, userID, searchSpaceID uuid.UUID, query string, opts retrieval.SearchOptions) ([]retrieval.SourceEnvelope, []retrieval.CitableChunk, error)
}

// DocChunk is one chunk of the pre-indexed product documentation, kept
// in its own table space separate from a search space's own documents.
type DocChunk struct {
	ChunkID    int64
	DocumentID int64
	Title      string
	URL        string
	Content    string
}

// DocsSearcher searches the product documentation index. It is
// deployment-wide, not scoped to a user or search space.
type DocsSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]DocChunk, error)
}

// ToolsetConfig bundles every dependency a search space's tool set may
// need; fields left nil simply omit the tools they back (e.g. no
// PodcastRunner configured skips generate_podcast).
type ToolsetConfig struct {
	UserID        uuid.UUID
	SearchSpaceID uuid.UUID
	ThreadID      *uuid.UUID

	KnowledgeBase KnowledgeBase
	DocsSearcher  DocsSearcher
	Memory        *memory.Store
	Reports       *reports.Generator
	Podcasts      *jobs.PodcastRunner
	LinearClient  linear.Client
	MCPSpecs      []mcp.ToolSpec
	HTTPClient    *http.Client
}

// BuildToolset composes the full tool list for one chat turn, the Go
// analog of original_source's registry.py assembling BUILTIN_TOOLS plus a
// search space's user-defined MCP tools.
func BuildToolset(cfg ToolsetConfig) []Tool {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = webtools.DefaultClient()
	}

	tools := []Tool{
		newDisplayImageTool(),
		newScrapeWebpageTool(httpClient),
		newLinkPreviewTool(httpClient),
	}

	if cfg.KnowledgeBase != nil {
		tools = append(tools, newSearchKnowledgeBaseTool(cfg.KnowledgeBase, cfg.UserID, cfg.SearchSpaceID))
	}
	if cfg.DocsSearcher != nil {
		tools = append(tools, newSearchDocsTool(cfg.DocsSearcher))
	}
	if cfg.Memory != nil {
		tools = append(tools, newSaveMemoryTool(cfg.Memory, cfg.UserID, cfg.SearchSpaceID))
		tools = append(tools, newRecallMemoryTool(cfg.Memory, cfg.UserID, cfg.SearchSpaceID))
	}
	if cfg.Reports != nil {
		tools = append(tools, newGenerateReportTool(cfg.Reports, cfg.KnowledgeBase, cfg.UserID, cfg.SearchSpaceID))
	}
	if cfg.Podcasts != nil {
		tools = append(tools, newGeneratePodcastTool(cfg.Podcasts, cfg.SearchSpaceID))
	}
	if cfg.LinearClient != nil {
		tools = append(tools,
			linear.NewCreateTool(cfg.LinearClient),
			linear.NewUpdateTool(cfg.LinearClient),
			linear.NewDeleteTool(cfg.LinearClient))
	}
	for _, t := range mcp.Materialize(cfg.MCPSpecs) {
		tools = append(tools, NewFuncTool(t.Name, t.Description, t.ArgsSchema, t.Invoke))
	}

	return tools
}

func newSearchKnowledgeBaseTool(kb KnowledgeBase, userID, searchSpaceID uuid.UUID) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":           map[string]any{"type": "string"},
			"top_k":           map[string]any{"type": "integer"},
			"mode":            map[string]any{"type": "string", "enum": []string{"CHUNKS", "DOCUMENTS"}},
			"enabled_sources": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"query"},
	}
	return NewFuncTool("search_knowledge_base", "Search the indexed knowledge base for relevant content.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("search_knowledge_base: query is required")
			}
			opts := retrieval.SearchOptions{TopK: intArg(args["top_k"], 10)}
			if mode, ok := args["mode"].(string); ok && mode == string(retrieval.ModeDocuments) {
				opts.Mode = retrieval.ModeDocuments
			}
			for _, s := range stringSliceArg(args["enabled_sources"]) {
				opts.EnabledSources = append(opts.EnabledSources, store.DocumentType(s))
			}
			_, chunks, err := kb.Search(ctx, userID, searchSpaceID, query, opts)
			if err != nil {
				return "", err
			}
			return formatChunksForContext(chunks), nil
		})
}

func formatChunksForContext(chunks []retrieval.CitableChunk) string {
	if len(chunks) == 0 {
		return "No relevant results found in the knowledge base."
	}
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "[chunk_id:%d] %s (%s)\n%s\n\n", c.ChunkID, c.Document.Title, c.Document.Type, c.Content)
	}
	return b.String()
}

func newSearchDocsTool(docs DocsSearcher) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"top_k": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}
	return NewFuncTool("search_surfsense_docs",
		"Search the product documentation for help using the application: features, setup, configuration, connectors, and troubleshooting. This does not search the user's own knowledge base.",
		schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("search_surfsense_docs: query is required")
			}
			chunks, err := docs.Search(ctx, query, intArg(args["top_k"], 10))
			if err != nil {
				return "", err
			}
			return formatDocChunks(chunks), nil
		})
}

// formatDocChunks mirrors format_surfsense_docs_results: chunks grouped
// by document, with a "doc-" prefix on every id so a citation token can
// be routed to the documentation endpoint instead of the user's own
// knowledge base.
func formatDocChunks(chunks []DocChunk) string {
	if len(chunks) == 0 {
		return "No relevant documentation found for your query."
	}
	type group struct {
		title  string
		url    string
		chunks []DocChunk
	}
	order := make([]int64, 0, len(chunks))
	groups := make(map[int64]*group)
	for _, c := range chunks {
		g, ok := groups[c.DocumentID]
		if !ok {
			g = &group{title: c.Title, url: c.URL}
			groups[c.DocumentID] = g
			order = append(order, c.DocumentID)
		}
		g.chunks = append(g.chunks, c)
	}

	var b strings.Builder
	for _, docID := range order {
		g := groups[docID]
		fmt.Fprintf(&b, "<document>\n<document_metadata>\n  <document_id>doc-%d</document_id>\n  <document_type>SURFSENSE_DOCS</document_type>\n  <title>%s</title>\n  <url>%s</url>\n</document_metadata>\n\n<document_content>\n", docID, g.title, g.url)
		for _, c := range g.chunks {
			fmt.Fprintf(&b, "  <chunk id='doc-%d'>%s</chunk>\n", c.ChunkID, c.Content)
		}
		b.WriteString("</document_content>\n</document>\n\n")
	}
	return strings.TrimSpace(b.String())
}

func newSaveMemoryTool(m *memory.Store, userID, searchSpaceID uuid.UUID) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":     map[string]any{"type": "string"},
			"category": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
	return NewFuncTool("save_memory", "Save a fact, preference, or piece of context about the user for future conversations.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			category, _ := args["category"].(string)
			if category == "" {
				category = string(memory.CategoryFact)
			}
			id, err := m.Save(ctx, userID, searchSpaceID, memory.Category(category), text)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Saved memory %s", id), nil
		})
}

func newRecallMemoryTool(m *memory.Store, userID, searchSpaceID uuid.UUID) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"top_k": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}
	return NewFuncTool("recall_memory", "Retrieve relevant saved memories about the user using semantic search.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			recalled, err := m.Recall(ctx, userID, searchSpaceID, query, intArg(args["top_k"], 5))
			if err != nil {
				return "", err
			}
			if len(recalled) == 0 {
				return "No saved memories match this query.", nil
			}
			var b strings.Builder
			for _, r := range recalled {
				fmt.Fprintf(&b, "[%s] %s\n", r.Category, r.Text)
			}
			return b.String(), nil
		})
}

type kbSearcherAdapter struct {
	kb            KnowledgeBase
	userID        uuid.UUID
	searchSpaceID uuid.UUID
}

func (a kbSearcherAdapter) SearchText(ctx context.Context, queries []string) (string, error) {
	var b strings.Builder
	for _, q := range queries {
		_, chunks, err := a.kb.Search(ctx, a.userID, a.searchSpaceID, q, retrieval.SearchOptions{TopK: 10})
		if err != nil {
			return "", err
		}
		b.WriteString(formatChunksForContext(chunks))
	}
	return b.String(), nil
}

func newGenerateReportTool(gen *reports.Generator, kb KnowledgeBase, userID, searchSpaceID uuid.UUID) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic":            map[string]any{"type": "string"},
			"style":            map[string]any{"type": "string"},
			"source_content":   map[string]any{"type": "string"},
			"source_strategy":  map[string]any{"type": "string", "enum": []string{"provided", "conversation", "kb_search", "auto"}},
			"search_queries":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"short":            map[string]any{"type": "boolean"},
			"user_instructions": map[string]any{"type": "string"},
		},
		"required": []string{"topic"},
	}
	return NewFuncTool("generate_report", "Generate a structured Markdown report and save it.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			topic, _ := args["topic"].(string)
			style, _ := args["style"].(string)
			provided, _ := args["source_content"].(string)
			strategy := reports.SourceStrategy(stringOr(args["source_strategy"], "provided"))
			userInstructions, _ := args["user_instructions"].(string)
			short, _ := args["short"].(bool)

			var searcher reports.KnowledgeSearcher
			if kb != nil {
				searcher = kbSearcherAdapter{kb: kb, userID: userID, searchSpaceID: searchSpaceID}
			}
			source, err := reports.ResolveSource(ctx, strategy, provided, stringSliceArg(args["search_queries"]), searcher)
			if err != nil {
				return "", err
			}
			content, meta, err := gen.GenerateNew(ctx, topic, style, userInstructions, source, short)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Report %q generated (%d words, %d sections).\n\n%s", topic, meta.WordCount, meta.SectionCount, content), nil
		})
}

func newGeneratePodcastTool(runner *jobs.PodcastRunner, searchSpaceID uuid.UUID) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source_content": map[string]any{"type": "string"},
			"podcast_title":  map[string]any{"type": "string"},
			"user_prompt":    map[string]any{"type": "string"},
		},
		"required": []string{"source_content"},
	}
	return NewFuncTool("generate_podcast", "Generate a podcast from the provided content. Runs in the background; the frontend polls for completion.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			sourceContent, _ := args["source_content"].(string)
			title := stringOr(args["podcast_title"], "Podcast")
			userPrompt, _ := args["user_prompt"].(string)

			id, err := runner.Enqueue(ctx, searchSpaceID, title, sourceContent, userPrompt)
			if err != nil {
				if errors.Is(err, apperrors.ErrPodcastInFlight) {
					return "A podcast is already being generated for this search space. Please wait for it to complete.", nil
				}
				return "", err
			}
			return fmt.Sprintf("Podcast generation started (id %s). This may take a few minutes.", id), nil
		})
}

func newScrapeWebpageTool(client *http.Client) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":        map[string]any{"type": "string"},
			"max_length": map[string]any{"type": "integer"},
		},
		"required": []string{"url"},
	}
	return NewFuncTool("scrape_webpage", "Fetch a web page and extract its readable text content.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			rawURL, _ := args["url"].(string)
			result, err := webtools.ScrapePage(ctx, client, rawURL, intArg(args["max_length"], 0))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%s)\n\n%s", result.Title, result.Domain, result.Content), nil
		})
}

func newLinkPreviewTool(client *http.Client) Tool {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []string{"url"},
	}
	return NewFuncTool("link_preview", "Fetch OpenGraph/Twitter-card metadata for a URL, for chat-UI link cards.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			rawURL, _ := args["url"].(string)
			preview, err := webtools.FetchLinkPreview(ctx, client, rawURL)
			if err != nil {
				return "", err
			}
			encoded, err := json.Marshal(preview)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		})
}

// displayImage mirrors display_image.py: a UI-only hint, not a mutating
// action, so it runs as a plain FuncTool.
func newDisplayImageTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"src":         map[string]any{"type": "string"},
			"alt":         map[string]any{"type": "string"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"src"},
	}
	return NewFuncTool("display_image", "Display an image in the chat with optional title and description.", schema,
		func(ctx context.Context, args map[string]any) (string, error) {
			src, _ := args["src"].(string)
			if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
				src = "https://" + src
			}
			alt := stringOr(args["alt"], "Image")
			title, _ := args["title"].(string)
			description, _ := args["description"].(string)

			payload := map[string]any{
				"id":          imageID(src),
				"assetId":     src,
				"src":         src,
				"alt":         alt,
				"title":       title,
				"description": description,
				"domain":      webtools.ExtractDomain(src),
				"ratio":       aspectRatioFor(src),
			}
			encoded, err := json.Marshal(payload)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		})
}

func imageID(src string) string {
	sum := md5.Sum([]byte(src))
	return "image-" + hex.EncodeToString(sum[:])[:12]
}

func aspectRatioFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "16:9"
	}
	switch {
	case strings.Contains(u.Host, "imgur.com"), strings.Contains(u.Host, "github.com"), strings.Contains(u.Host, "githubusercontent.com"):
		return "auto"
	default:
		return "16:9"
	}
}

func intArg(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func stringSliceArg(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
