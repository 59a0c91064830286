// Package mcp materializes user-authored tool specs (endpoint + auth +
// JSON-schema parameters) into agent-callable tools at construction time,
// grounded on original_source's
// app/agents/new_chat/tools/mcp_tool.py ("custom implementation... keeps
// dependencies minimal and gives users a simple JSON-based config").
package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthType enumerates the authentication schemes a ToolSpec's endpoint may
// require.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
	AuthBasic  AuthType = "basic"
)

// AuthConfig carries the credential fields for one AuthType; only the
// fields relevant to the selected type are populated.
type AuthConfig struct {
	Type         AuthType
	Token        string
	APIKey       string
	APIKeyHeader string
	Username     string
	Password     string
}

func (a AuthConfig) headers() map[string]string {
	headers := map[string]string{}
	switch a.Type {
	case AuthBearer:
		if a.Token != "" {
			headers["Authorization"] = "Bearer " + a.Token
		}
	case AuthAPIKey:
		header := a.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		if a.APIKey != "" {
			headers[header] = a.APIKey
		}
	case AuthBasic:
		if a.Username != "" && a.Password != "" {
			creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
			headers["Authorization"] = "Basic " + creds
		}
	}
	return headers
}

// ToolSpec is one user-authored MCP tool definition: an HTTP endpoint plus
// the JSON-schema parameters the agent's tool-call arguments must conform
// to.
type ToolSpec struct {
	Name           string
	Description    string
	Method         string // defaults to POST
	Endpoint       string
	Auth           AuthConfig
	ParametersJSON map[string]any // JSON-schema describing the call arguments
}

// Tool is the materialized, invokable form of a ToolSpec.
type Tool struct {
	Name        string
	Description string
	ArgsSchema  map[string]any
	spec        ToolSpec
	httpClient  *http.Client
}

// Materialize turns a list of user connector configs into invokable tools,
// one per spec, the way the agent loop's tool set is composed at
// construction time (spec.md §4.1 "materialized into agent-callable tools
// at agent-construction time").
func Materialize(specs []ToolSpec) []*Tool {
	tools := make([]*Tool, 0, len(specs))
	for _, s := range specs {
		method := s.Method
		if method == "" {
			method = http.MethodPost
		}
		s.Method = method
		tools = append(tools, &Tool{
			Name:        s.Name,
			Description: s.Description,
			ArgsSchema:  s.ParametersJSON,
			spec:        s,
			httpClient:  &http.Client{Timeout: 30 * time.Second},
		})
	}
	return tools
}

// Invoke calls the tool's endpoint with args marshaled as the JSON request
// body, applying whatever auth scheme the spec configured.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("mcp: marshal args for %s: %w", t.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, t.spec.Method, t.spec.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("mcp: build request for %s: %w", t.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.spec.Auth.headers() {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mcp: call %s: %w", t.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("mcp: read response from %s: %w", t.Name, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("mcp: %s returned status %d: %s", t.Name, resp.StatusCode, string(body))
	}
	return string(body), nil
}
