package genericpage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/surfsense-core/knowledge-core/internal/connectors"
)

// RESTConfig parameterizes one source's REST shape so a single Fetcher
// implementation can back every simple paged-JSON connector
// (Slack/Notion/Linear/Jira/Confluence/GitHub/Discord/Clickup/Airtable/
// Luma/Circleback/Gmail/Gcalendar), each of which talks a REST/GraphQL API
// none of the example repos bundle a dedicated SDK for (see DESIGN.md).
type RESTConfig struct {
	// BaseURL is formatted with the cursor (as a page token / "since"
	// value) and the window bounds via Go's fmt verbs in URLTemplate.
	URLTemplate func(cursor connectors.Cursor, window connectors.Window) string
	Headers     map[string]string
	// ItemsPath walks the decoded JSON body (dot-separated) to the array
	// of page items, e.g. "messages" or "issues.nodes".
	ItemsPath string
	// NextCursorPath walks the decoded JSON body to the next-page token;
	// empty when the response has no further pages.
	NextCursorPath string
	// Extract maps one raw item (as a map[string]any) into an Item. The
	// private-channel / access-restricted skip rule lives here too.
	Extract func(raw map[string]any) Item
	Timeout time.Duration
}

// RESTFetcher implements Fetcher against any source describable by a
// RESTConfig.
type RESTFetcher struct {
	cfg        RESTConfig
	httpClient *http.Client
}

func NewRESTFetcher(cfg RESTConfig) *RESTFetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &RESTFetcher{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

func (f *RESTFetcher) FetchPage(ctx context.Context, cursor connectors.Cursor, window connectors.Window) ([]Item, connectors.Cursor, error) {
	url := f.cfg.URLTemplate(cursor, window)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("restfetcher: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("restfetcher: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("restfetcher: read response: %w", err)
	}

	var decoded map[string]any
	var rawItems []any
	if f.cfg.ItemsPath == "" {
		// Some APIs (Discord's channel-messages endpoint) return a bare
		// JSON array rather than an envelope object.
		if err := json.Unmarshal(body, &rawItems); err != nil {
			return nil, "", fmt.Errorf("restfetcher: decode array response: %w", err)
		}
	} else {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, "", fmt.Errorf("restfetcher: decode response: %w", err)
		}
		rawItems, _ = walk(decoded, f.cfg.ItemsPath).([]any)
	}
	items := make([]Item, 0, len(rawItems))
	for _, ri := range rawItems {
		m, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, f.cfg.Extract(m))
	}

	var next connectors.Cursor
	if f.cfg.NextCursorPath != "" {
		if s, ok := walk(decoded, f.cfg.NextCursorPath).(string); ok {
			next = connectors.Cursor(s)
		}
	}
	return items, next, nil
}

func walk(m map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = asMap[part]
	}
	return cur
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
