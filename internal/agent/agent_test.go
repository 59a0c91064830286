package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsense-core/knowledge-core/internal/llm"
)

func TestExtractCitationsReturnsIDsInOrder(t *testing.T) {
	text := "First fact [citation:12]. Second fact [citation:7]."
	assert.Equal(t, []int64{12, 7}, ExtractCitations(text))
}

func TestExtractCitationsIgnoresMalformedTokens(t *testing.T) {
	text := "No citation here, and [citation:] is malformed."
	assert.Empty(t, ExtractCitations(text))
}

func TestBuildSystemPromptIncludesCitationInstructionsWhenEnabled(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	prompt := BuildSystemPrompt(now, "Be concise.", true)
	assert.Contains(t, prompt, "2026-07-30")
	assert.Contains(t, prompt, "Be concise.")
	assert.Contains(t, prompt, "[citation:<chunk_id>]")
}

func TestBuildSystemPromptOmitsCitationInstructionsWhenDisabled(t *testing.T) {
	prompt := BuildSystemPrompt(time.Now(), "", false)
	assert.NotContains(t, prompt, "citation")
}

type scriptedProvider struct {
	completions []llm.Completion
	calls       int
}

func (p *scriptedProvider) Complete(ctx context.Context, slot string, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Completion, error) {
	c := p.completions[p.calls]
	p.calls++
	return &c, nil
}

func (p *scriptedProvider) Summarize(ctx context.Context, text string) (string, error) {
	return text, nil
}

func TestSessionTurnExecutesToolAndReturnsFinalAnswer(t *testing.T) {
	echoCall := llm.ToolCall{ID: "call-1"}
	echoCall.Function.Name = "echo"
	echoCall.Function.Arguments = `{"text":"hi"}`
	provider := &scriptedProvider{completions: []llm.Completion{
		{ToolCalls: []llm.ToolCall{echoCall}},
		{Content: "done"},
	}}
	echoTool := NewFuncTool("echo", "echoes input", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return args["text"].(string), nil
	})
	session := NewSession(provider, "chat", []Tool{echoTool})

	messages, suspension, err := session.Turn(context.Background(), []llm.Message{{Role: "user", Content: "say hi"}})
	require.NoError(t, err)
	assert.Nil(t, suspension)
	assert.Equal(t, "done", messages[len(messages)-1].Content)

	var sawToolResult bool
	for _, m := range messages {
		if m.Role == "tool" && m.Content == "hi" {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolResult)
}

func TestSessionTurnReturnsSuspensionForMutatingTool(t *testing.T) {
	mutateCall := llm.ToolCall{ID: "call-1"}
	mutateCall.Function.Name = "mutate"
	mutateCall.Function.Arguments = `{}`
	provider := &scriptedProvider{completions: []llm.Completion{
		{ToolCalls: []llm.ToolCall{mutateCall}},
	}}
	mutating := NewMutatingTool("mutate", "mutates something", nil,
		func(ctx context.Context, args map[string]any) (string, error) { return "applied", nil },
		nil)
	session := NewSession(provider, "chat", []Tool{mutating})

	_, suspension, err := session.Turn(context.Background(), []llm.Message{{Role: "user", Content: "do it"}})
	require.NoError(t, err)
	require.NotNil(t, suspension)
	assert.Equal(t, "mutate", suspension.Request.ToolName)
}

func TestSessionResumeApprovedCompletesTurn(t *testing.T) {
	mutateCall2 := llm.ToolCall{ID: "call-1"}
	mutateCall2.Function.Name = "mutate"
	mutateCall2.Function.Arguments = `{}`
	provider := &scriptedProvider{completions: []llm.Completion{
		{ToolCalls: []llm.ToolCall{mutateCall2}},
		{Content: "applied and done"},
	}}
	mutating := NewMutatingTool("mutate", "mutates something", nil,
		func(ctx context.Context, args map[string]any) (string, error) { return "applied", nil },
		nil)
	session := NewSession(provider, "chat", []Tool{mutating})

	_, suspension, err := session.Turn(context.Background(), []llm.Message{{Role: "user", Content: "do it"}})
	require.NoError(t, err)
	require.NotNil(t, suspension)

	messages, finalSuspension, err := session.Resume(context.Background(), suspension, ApprovalDecision{Approve: true})
	require.NoError(t, err)
	assert.Nil(t, finalSuspension)
	assert.Equal(t, "applied and done", messages[len(messages)-1].Content)
}

func TestMutatingToolResumeFallsBackToProposedArgumentsWhenNotEdited(t *testing.T) {
	var seen map[string]any
	mutating := NewMutatingTool("mutate", "mutates something", nil,
		func(ctx context.Context, args map[string]any) (string, error) {
			seen = args
			return "applied", nil
		}, nil)

	outcome := mutating.Resume(context.Background(), map[string]any{"team_name": "Eng", "title": "Fix bug"}, ApprovalDecision{Approve: true})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "Eng", seen["team_name"])
	assert.Equal(t, "Fix bug", seen["title"])
}

func TestMutatingToolResumeMergesEditedArgumentsOverProposed(t *testing.T) {
	var seen map[string]any
	mutating := NewMutatingTool("mutate", "mutates something", nil,
		func(ctx context.Context, args map[string]any) (string, error) {
			seen = args
			return "applied", nil
		}, nil)

	outcome := mutating.Resume(context.Background(),
		map[string]any{"team_name": "Eng", "title": "Fix bug"},
		ApprovalDecision{Approve: true, EditedArguments: map[string]any{"title": "Fix bug urgently"}})
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "Eng", seen["team_name"])
	assert.Equal(t, "Fix bug urgently", seen["title"])
}
