package linear

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsense-core/knowledge-core/internal/agent"
)

type fakeClient struct {
	created IssueRef
	deleted IssueRef
}

func (f *fakeClient) CreateIssue(ctx context.Context, teamName, title, description string, labelNames []string) (IssueRef, error) {
	return f.created, nil
}

func (f *fakeClient) UpdateIssue(ctx context.Context, issueRef string, fields UpdateFields) (IssueRef, error) {
	return IssueRef{Identifier: issueRef}, nil
}

func (f *fakeClient) DeleteIssue(ctx context.Context, issueRef string, deleteFromKB bool) (IssueRef, error) {
	return f.deleted, nil
}

func TestCreateToolAlwaysSuspendsFirst(t *testing.T) {
	tool := NewCreateTool(&fakeClient{created: IssueRef{Identifier: "ENG-1", URL: "https://example.com/ENG-1"}})
	outcome := tool.Invoke(context.Background(), map[string]any{"team_name": "Eng", "title": "Fix bug"})
	require.Equal(t, agent.OutcomeSuspended, outcome.Kind)
	assert.Equal(t, "create_linear_issue", outcome.Approval.ToolName)
	assert.Contains(t, outcome.Approval.Summary, "Fix bug")
}

func TestCreateToolResumeRejectedReturnsFailed(t *testing.T) {
	tool := NewCreateTool(&fakeClient{})
	outcome := tool.Resume(context.Background(), nil, agent.ApprovalDecision{Approve: false})
	assert.Equal(t, agent.OutcomeFailed, outcome.Kind)
}

func TestCreateToolResumeApprovedCallsClient(t *testing.T) {
	tool := NewCreateTool(&fakeClient{created: IssueRef{Identifier: "ENG-2", URL: "https://example.com/ENG-2"}})
	outcome := tool.Resume(context.Background(), nil, agent.ApprovalDecision{
		Approve:         true,
		EditedArguments: map[string]any{"team_name": "Eng", "title": "Fix bug"},
	})
	require.Equal(t, agent.OutcomeSuccess, outcome.Kind)
	assert.Contains(t, outcome.Result, "ENG-2")
}
