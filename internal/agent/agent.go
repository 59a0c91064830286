// Package agent implements C8: the single-threaded cooperative tool-calling
// loop driving one chat turn, grounded on services/agent_service.go's
// Message/ToolCall/ToolDefinition shapes and
// original_source/app/agents/new_chat/chat_deepagent.py's turn loop, with
// langgraph's `interrupt()` suspension translated into the ToolOutcome sum
// type below.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/surfsense-core/knowledge-core/internal/apperrors"
	"github.com/surfsense-core/knowledge-core/internal/llm"
)

// OutcomeKind discriminates the three shapes a tool call can resolve to.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeSuspended OutcomeKind = "suspended"
	OutcomeFailed    OutcomeKind = "failed"
)

// ApprovalRequest is the structured payload a mutating tool emits instead
// of acting immediately; the host surfaces it to the user and resumes the
// turn with an ApprovalDecision.
type ApprovalRequest struct {
	ToolName  string
	CallID    string
	Arguments map[string]any
	Summary   string
}

// ApprovalDecision is what the host passes back after a suspension. Edited
// arguments replace the originally proposed ones before the mutating
// action runs; Reject short-circuits with apperrors.ErrToolRejected.
type ApprovalDecision struct {
	Approve         bool
	EditedArguments map[string]any
}

// ToolOutcome is the sum type every Tool.Invoke call returns: exactly one
// of Success, Suspended, or Failed is populated, discriminated by Kind.
type ToolOutcome struct {
	Kind      OutcomeKind
	Result    string
	Approval  *ApprovalRequest
	Err       error
}

func Success(result string) ToolOutcome { return ToolOutcome{Kind: OutcomeSuccess, Result: result} }

func Suspended(req ApprovalRequest) ToolOutcome {
	return ToolOutcome{Kind: OutcomeSuspended, Approval: &req}
}

func Failed(err error) ToolOutcome { return ToolOutcome{Kind: OutcomeFailed, Err: err} }

// Tool is one agent-callable capability.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() map[string]any
	Invoke(ctx context.Context, args map[string]any) ToolOutcome
}

// MutatingTool wraps an action that must be approved by the host before it
// runs (e.g. create_linear_issue). Invoke always suspends; Resume performs
// the underlying action once a decision comes back.
type MutatingTool struct {
	name        string
	description string
	schema      map[string]any
	perform     func(ctx context.Context, args map[string]any) (string, error)
	summarize   func(args map[string]any) string
}

func NewMutatingTool(name, description string, schema map[string]any, perform func(ctx context.Context, args map[string]any) (string, error), summarize func(args map[string]any) string) *MutatingTool {
	return &MutatingTool{name: name, description: description, schema: schema, perform: perform, summarize: summarize}
}

func (t *MutatingTool) Name() string                     { return t.name }
func (t *MutatingTool) Description() string              { return t.description }
func (t *MutatingTool) ParametersSchema() map[string]any { return t.schema }

func (t *MutatingTool) Invoke(ctx context.Context, args map[string]any) ToolOutcome {
	summary := t.name
	if t.summarize != nil {
		summary = t.summarize(args)
	}
	return Suspended(ApprovalRequest{ToolName: t.name, Arguments: args, Summary: summary})
}

// Resume executes the approved action using proposed as the base arguments,
// overridden field-by-field by decision.EditedArguments when the host edited
// them; it fails with apperrors.ErrToolRejected when the host declined.
func (t *MutatingTool) Resume(ctx context.Context, proposed map[string]any, decision ApprovalDecision) ToolOutcome {
	if !decision.Approve {
		return Failed(apperrors.ErrToolRejected)
	}
	args := make(map[string]any, len(proposed)+len(decision.EditedArguments))
	for k, v := range proposed {
		args[k] = v
	}
	for k, v := range decision.EditedArguments {
		args[k] = v
	}
	result, err := t.perform(ctx, args)
	if err != nil {
		return Failed(err)
	}
	return Success(result)
}

// FuncTool adapts a plain function into a non-mutating Tool (search,
// scrape, memory recall, and every other read-only capability).
type FuncTool struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

func NewFuncTool(name, description string, schema map[string]any, fn func(ctx context.Context, args map[string]any) (string, error)) *FuncTool {
	return &FuncTool{name: name, description: description, schema: schema, fn: fn}
}

func (t *FuncTool) Name() string                     { return t.name }
func (t *FuncTool) Description() string              { return t.description }
func (t *FuncTool) ParametersSchema() map[string]any { return t.schema }

func (t *FuncTool) Invoke(ctx context.Context, args map[string]any) ToolOutcome {
	result, err := t.fn(ctx, args)
	if err != nil {
		return Failed(err)
	}
	return Success(result)
}

// BuildSystemPrompt composes the deterministic system prompt from today's
// UTC date, per-user instructions, and whether citations are enabled
// (spec §4.4 step 1).
func BuildSystemPrompt(now time.Time, userInstructions string, citationsEnabled bool) string {
	prompt := fmt.Sprintf("Today's date is %s (UTC).\n\n", now.UTC().Format("2006-01-02"))
	if userInstructions != "" {
		prompt += userInstructions + "\n\n"
	}
	if citationsEnabled {
		prompt += "When you use information from the knowledge base or web search, cite it with a " +
			"[citation:<chunk_id>] token immediately after the supporting sentence, using only chunk " +
			"ids present in the provided context. Never fabricate a citation id.\n"
	}
	return prompt
}

var citationPattern = regexp.MustCompile(`\[citation:(\d+)\]`)

// ExtractCitations returns every chunk id referenced by a [citation:<id>]
// token in text, in order of first appearance.
func ExtractCitations(text string) []int64 {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	out := make([]int64, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Suspension is returned by Session.Turn when a mutating tool call needs
// host approval before the turn can continue.
type Suspension struct {
	Request  ApprovalRequest
	ToolCall llm.ToolCall
	Messages []llm.Message
}

// Session drives one chat turn's tool-calling loop against a configured
// model slot and tool set.
type Session struct {
	provider llm.Provider
	slot     string
	tools    map[string]Tool
}

func NewSession(provider llm.Provider, slot string, tools []Tool) *Session {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Session{provider: provider, slot: slot, tools: byName}
}

// Turn drives the LLM until it stops requesting tool calls, executing each
// requested tool and feeding its result back, or returns a Suspension if a
// mutating tool needs approval.
func (s *Session) Turn(ctx context.Context, messages []llm.Message) ([]llm.Message, *Suspension, error) {
	defs := make([]llm.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, llm.ToolDefinition{Name: t.Name(), Description: t.Description(), Parameters: t.ParametersSchema()})
	}

	for {
		completion, err := s.provider.Complete(ctx, s.slot, messages, defs)
		if err != nil {
			return messages, nil, err
		}
		messages = append(messages, llm.Message{Role: "assistant", Content: completion.Content, ToolCalls: completion.ToolCalls})
		if len(completion.ToolCalls) == 0 {
			return messages, nil, nil
		}

		for _, tc := range completion.ToolCalls {
			tool, ok := s.tools[tc.Function.Name]
			if !ok {
				messages = append(messages, toolResultMessage(tc.ID, "", apperrors.ErrToolNotFound))
				continue
			}

			var args map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					messages = append(messages, toolResultMessage(tc.ID, "", fmt.Errorf("invalid tool arguments: %w", err)))
					continue
				}
			}

			outcome := tool.Invoke(ctx, args)
			switch outcome.Kind {
			case OutcomeSuccess:
				messages = append(messages, toolResultMessage(tc.ID, outcome.Result, nil))
			case OutcomeFailed:
				messages = append(messages, toolResultMessage(tc.ID, "", outcome.Err))
			case OutcomeSuspended:
				outcome.Approval.CallID = tc.ID
				return messages, &Suspension{Request: *outcome.Approval, ToolCall: tc, Messages: messages}, nil
			}
		}
	}
}

// Resume continues a suspended turn after the host returns a decision for
// the mutating tool identified by toolName.
func (s *Session) Resume(ctx context.Context, suspension *Suspension, decision ApprovalDecision) ([]llm.Message, *Suspension, error) {
	tool, ok := s.tools[suspension.Request.ToolName]
	if !ok {
		return suspension.Messages, nil, apperrors.ErrToolNotFound
	}
	mutating, ok := tool.(*MutatingTool)
	if !ok {
		return suspension.Messages, nil, fmt.Errorf("agent: tool %q is not resumable", suspension.Request.ToolName)
	}
	outcome := mutating.Resume(ctx, suspension.Request.Arguments, decision)

	messages := suspension.Messages
	switch outcome.Kind {
	case OutcomeSuccess:
		messages = append(messages, toolResultMessage(suspension.ToolCall.ID, outcome.Result, nil))
	case OutcomeFailed:
		messages = append(messages, toolResultMessage(suspension.ToolCall.ID, "", outcome.Err))
	}
	return s.Turn(ctx, messages)
}

func toolResultMessage(callID, content string, err error) llm.Message {
	if err != nil {
		content = fmt.Sprintf("error: %s", err.Error())
	}
	return llm.Message{Role: "tool", Content: content, ToolCallID: callID}
}
