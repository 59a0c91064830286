// Package websearch implements the external web-search providers the
// agent's search_knowledge_base tool can fan out to alongside indexed
// sources, grounded on original_source's app/agents/new_chat/tools
// search-tool wrappers around each provider's REST API, each mapped into
// retrieval.WebResult's common shape.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/surfsense-core/knowledge-core/internal/retrieval"
)

// TavilyProvider calls Tavily's /search endpoint.
type TavilyProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewTavilyProvider(apiKey string) *TavilyProvider {
	return &TavilyProvider{apiKey: apiKey, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *TavilyProvider) Name() string { return "TAVILY_API" }

type tavilyRequest struct {
	APIKey  string `json:"api_key"`
	Query   string `json:"query"`
	MaxResults int `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query string, topK int) ([]retrieval.WebResult, error) {
	body, err := json.Marshal(tavilyRequest{APIKey: p.apiKey, Query: query, MaxResults: topK})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: tavily: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("websearch: tavily status %d", resp.StatusCode)
	}
	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	out := make([]retrieval.WebResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		out = append(out, retrieval.WebResult{Title: r.Title, URL: r.URL, Description: r.Content})
	}
	return out, nil
}

// LinkupProvider calls Linkup's /v1/search endpoint.
type LinkupProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewLinkupProvider(apiKey string) *LinkupProvider {
	return &LinkupProvider{apiKey: apiKey, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *LinkupProvider) Name() string { return "LINKUP_API" }

type linkupRequest struct {
	Query    string `json:"q"`
	Depth    string `json:"depth"`
	OutputType string `json:"outputType"`
}

type linkupResponse struct {
	Results []struct {
		Name    string `json:"name"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (p *LinkupProvider) Search(ctx context.Context, query string, topK int) ([]retrieval.WebResult, error) {
	body, err := json.Marshal(linkupRequest{Query: query, Depth: "standard", OutputType: "searchResults"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.linkup.so/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: linkup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("websearch: linkup status %d", resp.StatusCode)
	}
	var decoded linkupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	out := make([]retrieval.WebResult, 0, len(decoded.Results))
	for i, r := range decoded.Results {
		if i >= topK {
			break
		}
		out = append(out, retrieval.WebResult{Title: r.Name, URL: r.URL, Description: r.Content})
	}
	return out, nil
}

// SearxNGProvider calls a self-hosted SearxNG instance's JSON search API.
type SearxNGProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewSearxNGProvider(baseURL string) *SearxNGProvider {
	return &SearxNGProvider{baseURL: baseURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *SearxNGProvider) Name() string { return "SEARXNG" }

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (p *SearxNGProvider) Search(ctx context.Context, query string, topK int) ([]retrieval.WebResult, error) {
	reqURL := fmt.Sprintf("%s/search?q=%s&format=json", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: searxng: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("websearch: searxng status %d", resp.StatusCode)
	}
	var decoded searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	out := make([]retrieval.WebResult, 0, len(decoded.Results))
	for i, r := range decoded.Results {
		if i >= topK {
			break
		}
		out = append(out, retrieval.WebResult{Title: r.Title, URL: r.URL, Description: r.Content})
	}
	return out, nil
}

// BaiduProvider calls Baidu's search API by scraping the results page's
// structured JSON endpoint, the same shape SearxNG's scrape-backed engines
// use when no official API exists.
type BaiduProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewBaiduProvider(apiKey string) *BaiduProvider {
	return &BaiduProvider{apiKey: apiKey, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *BaiduProvider) Name() string { return "BAIDU_API" }

type baiduResponse struct {
	Data []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Abstract string `json:"abstract"`
	} `json:"data"`
}

func (p *BaiduProvider) Search(ctx context.Context, query string, topK int) ([]retrieval.WebResult, error) {
	reqURL := fmt.Sprintf("https://aip.baidubce.com/rest/2.0/knowledge/v1/search?wd=%s&access_token=%s",
		url.QueryEscape(query), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: baidu: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("websearch: baidu status %d", resp.StatusCode)
	}
	var decoded baiduResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	out := make([]retrieval.WebResult, 0, len(decoded.Data))
	for i, r := range decoded.Data {
		if i >= topK {
			break
		}
		out = append(out, retrieval.WebResult{Title: r.Title, URL: r.URL, Description: r.Abstract})
	}
	return out, nil
}
