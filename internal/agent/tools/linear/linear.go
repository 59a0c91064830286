// Package linear wires the agent's mutating Linear issue tools
// (create/update/delete), grounded on original_source's
// app/agents/new_chat/tools/linear/{create_issue,update_issue,delete_issue}.py
// — each a langgraph interrupt()-gated action, translated here into
// agent.MutatingTool's Invoke-always-suspends / Resume-on-approval shape.
package linear

import (
	"context"
	"fmt"

	"github.com/surfsense-core/knowledge-core/internal/agent"
)

// Client is the narrow surface the three tools need from a Linear
// connector; the concrete REST/GraphQL implementation lives alongside the
// other connector-kind clients.
type Client interface {
	CreateIssue(ctx context.Context, teamName, title, description string, labelNames []string) (IssueRef, error)
	UpdateIssue(ctx context.Context, issueRef string, fields UpdateFields) (IssueRef, error)
	DeleteIssue(ctx context.Context, issueRef string, deleteFromKB bool) (IssueRef, error)
}

// IssueRef is the minimal result the LLM needs to reference a Linear issue
// back to the user.
type IssueRef struct {
	Identifier string
	URL        string
}

// UpdateFields mirrors update_linear_issue's optional fields; a nil
// pointer means "leave unchanged".
type UpdateFields struct {
	NewTitle         *string
	NewDescription   *string
	NewStateName     *string
	NewAssigneeEmail *string
	NewPriority      *int
	NewLabelNames    []string
}

func createSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team_name":   map[string]any{"type": "string", "description": "Name of the Linear team to create the issue in"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"label_names": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"team_name", "title"},
	}
}

// NewCreateTool builds the create_linear_issue mutating tool.
func NewCreateTool(client Client) *agent.MutatingTool {
	return agent.NewMutatingTool(
		"create_linear_issue",
		"Create a new Linear issue. Requires user approval before it is actually created.",
		createSchema(),
		func(ctx context.Context, args map[string]any) (string, error) {
			team, _ := args["team_name"].(string)
			title, _ := args["title"].(string)
			description, _ := args["description"].(string)
			labels := toStringSlice(args["label_names"])
			ref, err := client.CreateIssue(ctx, team, title, description, labels)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Created %s: %s", ref.Identifier, ref.URL), nil
		},
		func(args map[string]any) string {
			title, _ := args["title"].(string)
			return fmt.Sprintf("create a new Linear issue %q", title)
		},
	)
}

func updateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"issue_ref":          map[string]any{"type": "string"},
			"new_title":          map[string]any{"type": "string"},
			"new_description":    map[string]any{"type": "string"},
			"new_state_name":     map[string]any{"type": "string"},
			"new_assignee_email": map[string]any{"type": "string"},
			"new_priority":       map[string]any{"type": "integer"},
			"new_label_names":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"issue_ref"},
	}
}

// NewUpdateTool builds the update_linear_issue mutating tool.
func NewUpdateTool(client Client) *agent.MutatingTool {
	return agent.NewMutatingTool(
		"update_linear_issue",
		"Update an existing Linear issue already indexed in the knowledge base. Requires user approval.",
		updateSchema(),
		func(ctx context.Context, args map[string]any) (string, error) {
			issueRef, _ := args["issue_ref"].(string)
			fields := UpdateFields{
				NewTitle:         optionalString(args["new_title"]),
				NewDescription:   optionalString(args["new_description"]),
				NewStateName:     optionalString(args["new_state_name"]),
				NewAssigneeEmail: optionalString(args["new_assignee_email"]),
				NewLabelNames:    toStringSlice(args["new_label_names"]),
			}
			if p, ok := args["new_priority"].(float64); ok {
				v := int(p)
				fields.NewPriority = &v
			}
			ref, err := client.UpdateIssue(ctx, issueRef, fields)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Updated %s: %s", ref.Identifier, ref.URL), nil
		},
		func(args map[string]any) string {
			issueRef, _ := args["issue_ref"].(string)
			return fmt.Sprintf("update Linear issue %q", issueRef)
		},
	)
}

func deleteSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"issue_ref":      map[string]any{"type": "string"},
			"delete_from_kb": map[string]any{"type": "boolean"},
		},
		"required": []string{"issue_ref"},
	}
}

// NewDeleteTool builds the delete_linear_issue mutating tool. Linear
// archives rather than permanently deletes the issue.
func NewDeleteTool(client Client) *agent.MutatingTool {
	return agent.NewMutatingTool(
		"delete_linear_issue",
		"Archive a Linear issue already indexed in the knowledge base. Requires user approval.",
		deleteSchema(),
		func(ctx context.Context, args map[string]any) (string, error) {
			issueRef, _ := args["issue_ref"].(string)
			deleteFromKB, _ := args["delete_from_kb"].(bool)
			ref, err := client.DeleteIssue(ctx, issueRef, deleteFromKB)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Archived %s", ref.Identifier), nil
		},
		func(args map[string]any) string {
			issueRef, _ := args["issue_ref"].(string)
			return fmt.Sprintf("archive Linear issue %q", issueRef)
		},
	)
}

func toStringSlice(v any) []string {
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

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
