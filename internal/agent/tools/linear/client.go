package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPClient calls Linear's GraphQL API directly, the same endpoint and
// raw-token Authorization header shape internal/connectors/wiring.go's
// linearFactory already uses for the read-only ingestion connector.
type HTTPClient struct {
	apiKey     string
	httpClient *http.Client
	endpoint   string
}

func NewHTTPClient(apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{apiKey: apiKey, httpClient: httpClient, endpoint: "https://api.linear.app/graphql"}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("linear graphql request: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("linear graphql decode: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("linear graphql error: %s", envelope.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func (c *HTTPClient) CreateIssue(ctx context.Context, teamName, title, description string, labelNames []string) (IssueRef, error) {
	const query = `
mutation($teamId: String!, $title: String!, $description: String, $labelIds: [String!]) {
  issueCreate(input: { teamId: $teamId, title: $title, description: $description, labelIds: $labelIds }) {
    issue { identifier url }
  }
}`
	teamID, err := c.resolveTeamID(ctx, teamName)
	if err != nil {
		return IssueRef{}, err
	}
	labelIDs, err := c.resolveLabelIDs(ctx, teamID, labelNames)
	if err != nil {
		return IssueRef{}, err
	}

	var out struct {
		IssueCreate struct {
			Issue struct {
				Identifier string `json:"identifier"`
				URL        string `json:"url"`
			} `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := c.do(ctx, query, map[string]any{
		"teamId":      teamID,
		"title":       title,
		"description": description,
		"labelIds":    labelIDs,
	}, &out); err != nil {
		return IssueRef{}, err
	}
	return IssueRef{Identifier: out.IssueCreate.Issue.Identifier, URL: out.IssueCreate.Issue.URL}, nil
}

func (c *HTTPClient) UpdateIssue(ctx context.Context, issueRef string, fields UpdateFields) (IssueRef, error) {
	const query = `
mutation($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    issue { identifier url }
  }
}`
	issueID, err := c.resolveIssueID(ctx, issueRef)
	if err != nil {
		return IssueRef{}, err
	}

	input := map[string]any{}
	if fields.NewTitle != nil {
		input["title"] = *fields.NewTitle
	}
	if fields.NewDescription != nil {
		input["description"] = *fields.NewDescription
	}
	if fields.NewStateName != nil {
		stateID, err := c.resolveStateID(ctx, issueID, *fields.NewStateName)
		if err != nil {
			return IssueRef{}, err
		}
		input["stateId"] = stateID
	}
	if fields.NewAssigneeEmail != nil {
		assigneeID, err := c.resolveUserID(ctx, *fields.NewAssigneeEmail)
		if err != nil {
			return IssueRef{}, err
		}
		input["assigneeId"] = assigneeID
	}
	if fields.NewPriority != nil {
		input["priority"] = *fields.NewPriority
	}
	if len(fields.NewLabelNames) > 0 {
		teamID, err := c.resolveIssueTeamID(ctx, issueID)
		if err != nil {
			return IssueRef{}, err
		}
		labelIDs, err := c.resolveLabelIDs(ctx, teamID, fields.NewLabelNames)
		if err != nil {
			return IssueRef{}, err
		}
		input["labelIds"] = labelIDs
	}

	var out struct {
		IssueUpdate struct {
			Issue struct {
				Identifier string `json:"identifier"`
				URL        string `json:"url"`
			} `json:"issue"`
		} `json:"issueUpdate"`
	}
	if err := c.do(ctx, query, map[string]any{"id": issueID, "input": input}, &out); err != nil {
		return IssueRef{}, err
	}
	return IssueRef{Identifier: out.IssueUpdate.Issue.Identifier, URL: out.IssueUpdate.Issue.URL}, nil
}

func (c *HTTPClient) DeleteIssue(ctx context.Context, issueRef string, deleteFromKB bool) (IssueRef, error) {
	const query = `
mutation($id: String!) {
  issueArchive(id: $id) {
    success
  }
}`
	issueID, identifier, url, err := c.resolveIssueRef(ctx, issueRef)
	if err != nil {
		return IssueRef{}, err
	}
	if err := c.do(ctx, query, map[string]any{"id": issueID}, nil); err != nil {
		return IssueRef{}, err
	}
	return IssueRef{Identifier: identifier, URL: url}, nil
}

// resolveTeamID, resolveLabelIDs, resolveIssueID, resolveStateID,
// resolveUserID, resolveIssueTeamID, and resolveIssueRef translate the
// human-readable names the LLM passes (team name, label names, issue
// title/identifier, state name, assignee email) into Linear's internal
// UUIDs via read-only GraphQL queries.

func (c *HTTPClient) resolveTeamID(ctx context.Context, teamName string) (string, error) {
	const query = `query($name: String!) { teams(filter: { name: { eqIgnoreCase: $name } }) { nodes { id } } }`
	var out struct {
		Teams struct {
			Nodes []struct {
				ID string `json:"id"`
			} `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.do(ctx, query, map[string]any{"name": teamName}, &out); err != nil {
		return "", err
	}
	if len(out.Teams.Nodes) == 0 {
		return "", fmt.Errorf("linear: team %q not found", teamName)
	}
	return out.Teams.Nodes[0].ID, nil
}

func (c *HTTPClient) resolveLabelIDs(ctx context.Context, teamID string, labelNames []string) ([]string, error) {
	if len(labelNames) == 0 {
		return nil, nil
	}
	const query = `query($teamId: String!) { team(id: $teamId) { labels { nodes { id name } } } }`
	var out struct {
		Team struct {
			Labels struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"labels"`
		} `json:"team"`
	}
	if err := c.do(ctx, query, map[string]any{"teamId": teamID}, &out); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(labelNames))
	for _, n := range labelNames {
		wanted[strings.ToLower(n)] = true
	}
	var ids []string
	for _, l := range out.Team.Labels.Nodes {
		if wanted[strings.ToLower(l.Name)] {
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

func (c *HTTPClient) resolveIssueID(ctx context.Context, issueRef string) (string, error) {
	id, _, _, err := c.resolveIssueRef(ctx, issueRef)
	return id, err
}

// resolveIssueRef matches issueRef against an issue's identifier or title,
// case-insensitively, mirroring update_linear_issue's documented matching
// rules.
func (c *HTTPClient) resolveIssueRef(ctx context.Context, issueRef string) (id, identifier, url string, err error) {
	const query = `
query($ref: String!) {
  issueSearch(query: $ref, first: 5) {
    nodes { id identifier title url }
  }
}`
	var out struct {
		IssueSearch struct {
			Nodes []struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				URL        string `json:"url"`
			} `json:"nodes"`
		} `json:"issueSearch"`
	}
	if err := c.do(ctx, query, map[string]any{"ref": issueRef}, &out); err != nil {
		return "", "", "", err
	}
	for _, n := range out.IssueSearch.Nodes {
		if strings.ToLower(n.Identifier) == strings.ToLower(issueRef) || strings.ToLower(n.Title) == strings.ToLower(issueRef) {
			return n.ID, n.Identifier, n.URL, nil
		}
	}
	if len(out.IssueSearch.Nodes) > 0 {
		n := out.IssueSearch.Nodes[0]
		return n.ID, n.Identifier, n.URL, nil
	}
	return "", "", "", fmt.Errorf("linear: issue %q not found", issueRef)
}

func (c *HTTPClient) resolveIssueTeamID(ctx context.Context, issueID string) (string, error) {
	const query = `query($id: String!) { issue(id: $id) { team { id } } }`
	var out struct {
		Issue struct {
			Team struct {
				ID string `json:"id"`
			} `json:"team"`
		} `json:"issue"`
	}
	if err := c.do(ctx, query, map[string]any{"id": issueID}, &out); err != nil {
		return "", err
	}
	return out.Issue.Team.ID, nil
}

func (c *HTTPClient) resolveStateID(ctx context.Context, issueID, stateName string) (string, error) {
	teamID, err := c.resolveIssueTeamID(ctx, issueID)
	if err != nil {
		return "", err
	}
	const query = `query($teamId: String!) { team(id: $teamId) { states { nodes { id name } } } }`
	var out struct {
		Team struct {
			States struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}
	if err := c.do(ctx, query, map[string]any{"teamId": teamID}, &out); err != nil {
		return "", err
	}
	for _, s := range out.Team.States.Nodes {
		if strings.ToLower(s.Name) == strings.ToLower(stateName) {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("linear: state %q not found", stateName)
}

func (c *HTTPClient) resolveUserID(ctx context.Context, email string) (string, error) {
	const query = `query($email: String!) { users(filter: { email: { eqIgnoreCase: $email } }) { nodes { id } } }`
	var out struct {
		Users struct {
			Nodes []struct {
				ID string `json:"id"`
			} `json:"nodes"`
		} `json:"users"`
	}
	if err := c.do(ctx, query, map[string]any{"email": email}, &out); err != nil {
		return "", err
	}
	if len(out.Users.Nodes) == 0 {
		return "", fmt.Errorf("linear: user %q not found", email)
	}
	return out.Users.Nodes[0].ID, nil
}

