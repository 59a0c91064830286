// Package reports implements §4.6's structured report generator: strategy
// selection, single-shot generation, section-diff revision with
// byte-identical preservation of unmodified sections, full-rewrite
// fallback, and the footer strip-and-reappend step, grounded on
// original_source's app/agents/new_chat/tools/report.py.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/surfsense-core/knowledge-core/internal/llm"
)

const footer = "Powered by the agent."

// SourceStrategy selects how source material is collected before
// generation.
type SourceStrategy string

const (
	StrategyProvided     SourceStrategy = "provided"
	StrategyConversation SourceStrategy = "conversation"
	StrategyKBSearch     SourceStrategy = "kb_search"
	StrategyAuto         SourceStrategy = "auto"
)

// autoSourceWordThreshold is the word count below which "auto" falls back
// to a knowledge-base search instead of trusting the provided content.
const autoSourceWordThreshold = 200

// KnowledgeSearcher is the narrow dependency "kb_search"/"auto" strategies
// need; it's satisfied by internal/retrieval.Engine via an adapter in the
// agent tool wiring.
type KnowledgeSearcher interface {
	SearchText(ctx context.Context, queries []string) (string, error)
}

// ResolveSource decides what source content to actually use, given the
// requested strategy.
func ResolveSource(ctx context.Context, strategy SourceStrategy, provided string, searchQueries []string, searcher KnowledgeSearcher) (string, error) {
	switch strings.ToLower(strings.TrimSpace(string(strategy))) {
	case string(StrategyKBSearch):
		if searcher == nil {
			return provided, nil
		}
		return searcher.SearchText(ctx, searchQueries)
	case string(StrategyAuto):
		if len(strings.Fields(provided)) >= autoSourceWordThreshold || searcher == nil {
			return provided, nil
		}
		return searcher.SearchText(ctx, searchQueries)
	default: // "provided", "conversation"
		return provided, nil
	}
}

// LengthInstruction returns the mandatory length constraint clause for
// "short" reports, or "" to leave length unconstrained.
func LengthInstruction(short bool) string {
	if !short {
		return ""
	}
	return "**LENGTH CONSTRAINT (MANDATORY):** The user wants a SHORT report. " +
		"Keep it concise — aim for ~500 words (~1 page) unless a different length is explicitly requested."
}

var fenceRE = regexp.MustCompile("(?s)^(`{3,})(?:markdown|md|json)?\\s*\\n(.*)\\n?$")

// StripWrappingCodeFence removes an outer ``` fence LLMs sometimes wrap
// whole-document Markdown output in.
func StripWrappingCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	m := fenceRE.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed
	}
	fence, body := m[1], m[2]
	if strings.HasSuffix(strings.TrimRight(body, "\n"), fence) {
		body = strings.TrimSuffix(strings.TrimRight(body, "\n"), fence)
	}
	return strings.TrimSpace(body)
}

// Section is one heading-delimited chunk of a report, split on # and ##
// headings only; deeper headings stay nested inside their parent body.
type Section struct {
	Heading string
	Body    string
}

var headingRE = regexp.MustCompile(`^#{1,2}\s+`)
var subHeadingRE = regexp.MustCompile(`^#{3,}\s+`)

// ParseSections splits Markdown content into top-level sections.
func ParseSections(content string) []Section {
	lines := strings.Split(content, "\n")
	var sections []Section
	var heading string
	var body []string
	inCode := false

	flush := func() {
		if heading != "" || len(body) > 0 {
			sections = append(sections, Section{Heading: heading, Body: strings.TrimSpace(strings.Join(body, "\n"))})
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
		}
		isHeading := !inCode && headingRE.MatchString(line) && !subHeadingRE.MatchString(line)
		if isHeading {
			flush()
			heading = strings.TrimSpace(line)
			body = nil
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// StitchSections reassembles sections into one Markdown document.
func StitchSections(sections []Section) string {
	parts := make([]string, 0, len(sections)*2)
	for _, s := range sections {
		if s.Heading != "" {
			parts = append(parts, s.Heading)
		}
		if s.Body != "" {
			parts = append(parts, s.Body)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Metadata is the derived counts computed over final report content.
type Metadata struct {
	WordCount    int
	CharCount    int
	SectionCount int
}

// ExtractMetadata computes word/char/section counts the way
// _extract_metadata does.
func ExtractMetadata(content string) Metadata {
	sections := ParseSections(content)
	headingCount := 0
	for _, s := range sections {
		if s.Heading != "" {
			headingCount++
		}
	}
	return Metadata{
		WordCount:    len(strings.Fields(content)),
		CharCount:    len(content),
		SectionCount: headingCount,
	}
}

// StripFooter removes any trailing footer(s) carried over from a parent
// report version before a new one is appended.
func StripFooter(content string) string {
	for strings.HasSuffix(strings.TrimRight(content, " \n"), footer) {
		trimmed := strings.TrimRight(content, " \n")
		idx := strings.LastIndex(trimmed, footer)
		content = strings.TrimRight(trimmed[:idx], " \n-\t")
	}
	return content
}

// AppendFooter strips any existing footer and appends exactly one.
func AppendFooter(content string) string {
	content = StripFooter(content)
	return content + "\n\n---\n\n" + footer
}

// SectionPlan is the LLM's decision on which sections a targeted
// modification request touches.
type SectionPlan struct {
	Modify    []int           `json:"modify"`
	Add       []SectionInsert `json:"add"`
	Remove    []int           `json:"remove"`
	Reasoning string          `json:"reasoning"`
}

type SectionInsert struct {
	AfterIndex  int    `json:"after_index"`
	Heading     string `json:"heading"`
	Description string `json:"description"`
}

// ParseSectionPlan decodes the JSON object the identify-sections prompt
// asks the LLM to return, tolerating a wrapping code fence.
func ParseSectionPlan(raw string) (SectionPlan, error) {
	var plan SectionPlan
	clean := StripWrappingCodeFence(raw)
	if err := json.Unmarshal([]byte(clean), &plan); err != nil {
		return SectionPlan{}, fmt.Errorf("reports: parse section plan: %w", err)
	}
	return plan, nil
}

// Generator drives report generation and revision against a configured
// LLM slot.
type Generator struct {
	provider llm.Provider
	slot     string
}

func NewGenerator(provider llm.Provider, slot string) *Generator {
	return &Generator{provider: provider, slot: slot}
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := g.provider.Complete(ctx, g.slot, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	return StripWrappingCodeFence(completion.Content), nil
}

// GenerateNew produces a brand-new report in a single LLM call.
func (g *Generator) GenerateNew(ctx context.Context, topic, style, userInstructions, sourceContent string, short bool) (string, Metadata, error) {
	prompt := fmt.Sprintf(
		"You are an expert report writer. Generate a comprehensive Markdown report.\n\n"+
			"Topic: %s\nStyle: %s\nUser instructions: %s\n\nSource content:\n%s\n\n%s\n\n"+
			"Write a well-structured Markdown report with a # title, executive summary, organized sections, and conclusion.",
		topic, style, userInstructions, sourceContent, LengthInstruction(short))
	content, err := g.complete(ctx, prompt)
	if err != nil {
		return "", Metadata{}, err
	}
	content = AppendFooter(content)
	return content, ExtractMetadata(content), nil
}

// Revise applies a modification request to an existing report. It first
// tries section-level revision (sections untouched by the plan are kept
// byte-identical); it falls back to a full-document rewrite when the
// report has fewer than two sections or the plan can't be parsed.
func (g *Generator) Revise(ctx context.Context, topic, style, userInstructions, sourceContent, previousContent string, short bool) (string, Metadata, error) {
	previousContent = StripFooter(previousContent)
	sections := ParseSections(previousContent)
	if len(sections) < 2 {
		return g.reviseFullDocument(ctx, topic, style, userInstructions, sourceContent, previousContent, short)
	}

	plan, err := g.identifySections(ctx, userInstructions, sections)
	if err != nil {
		return g.reviseFullDocument(ctx, topic, style, userInstructions, sourceContent, previousContent, short)
	}

	revised, err := g.applySectionPlan(ctx, topic, style, userInstructions, sourceContent, sections, plan)
	if err != nil {
		return g.reviseFullDocument(ctx, topic, style, userInstructions, sourceContent, previousContent, short)
	}

	final := AppendFooter(revised)
	return final, ExtractMetadata(final), nil
}

func (g *Generator) identifySections(ctx context.Context, userInstructions string, sections []Section) (SectionPlan, error) {
	var listing strings.Builder
	for i, s := range sections {
		heading := s.Heading
		if heading == "" {
			heading = "(preamble)"
		}
		preview := s.Body
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		fmt.Fprintf(&listing, "\n[%d] %s\n    Preview: %s\n", i, heading, preview)
	}
	prompt := fmt.Sprintf(
		"Determine which sections need modification, addition, or removal to satisfy this request.\n\n"+
			"Request: %s\n\nSections (0-indexed):\n%s\n\n"+
			"Return ONLY a JSON object with fields \"modify\" (int array), \"add\" "+
			"(array of {after_index, heading, description}), \"remove\" (int array), and \"reasoning\".",
		userInstructions, listing.String())
	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return SectionPlan{}, err
	}
	return ParseSectionPlan(raw)
}

func (g *Generator) applySectionPlan(ctx context.Context, topic, style, userInstructions, sourceContent string, sections []Section, plan SectionPlan) (string, error) {
	toModify := toSet(plan.Modify)
	toRemove := toSet(plan.Remove)

	out := make([]Section, 0, len(sections))
	for i, s := range sections {
		if toRemove[i] {
			continue
		}
		if toModify[i] {
			revised, err := g.reviseSection(ctx, userInstructions, sourceContent, sections, i)
			if err != nil {
				return "", err
			}
			s.Body = revised
		}
		out = append(out, s)
		for _, ins := range plan.Add {
			if ins.AfterIndex == i {
				newSection, err := g.generateNewSection(ctx, topic, style, userInstructions, sourceContent, sections, ins)
				if err != nil {
					return "", err
				}
				out = append(out, newSection)
			}
		}
	}
	return StitchSections(out), nil
}

func (g *Generator) reviseSection(ctx context.Context, userInstructions, sourceContent string, sections []Section, index int) (string, error) {
	surrounding := surroundingContext(sections, index)
	prompt := fmt.Sprintf(
		"Revise ONLY this section based on the instructions. If they don't apply, return it UNCHANGED.\n\n"+
			"Instructions: %s\n\nCurrent section:\n%s\n\nSurrounding context (for coherence only, do not output):\n%s\n\n"+
			"Source content:\n%s\n\nKeep the same heading and heading level.",
		userInstructions, sections[index].Body, surrounding, sourceContent)
	return g.complete(ctx, prompt)
}

func (g *Generator) generateNewSection(ctx context.Context, topic, style, userInstructions, sourceContent string, sections []Section, ins SectionInsert) (Section, error) {
	surrounding := surroundingContext(sections, ins.AfterIndex)
	prompt := fmt.Sprintf(
		"Write a new report section to insert into an existing report.\n\n"+
			"Topic: %s\nStyle: %s\nHeading: %s\nGoal: %s\nUser instructions: %s\n\n"+
			"Surrounding context:\n%s\n\nSource content:\n%s\n\n"+
			"Write ONLY this section, starting with the heading \"%s\".",
		topic, style, ins.Heading, ins.Description, userInstructions, surrounding, sourceContent, ins.Heading)
	body, err := g.complete(ctx, prompt)
	if err != nil {
		return Section{}, err
	}
	return Section{Heading: ins.Heading, Body: strings.TrimPrefix(body, ins.Heading)}, nil
}

func (g *Generator) reviseFullDocument(ctx context.Context, topic, style, userInstructions, sourceContent, previousContent string, short bool) (string, Metadata, error) {
	prompt := fmt.Sprintf(
		"You are an expert report editor. Apply ONLY the requested changes — do NOT rewrite from scratch.\n\n"+
			"Topic: %s\nStyle: %s\nModification instructions: %s\n\nSource content (use if relevant):\n%s\n\n"+
			"Existing report:\n%s\n\n%s\n\nPreserve all structure and content not affected by the modification.",
		topic, style, userInstructions, sourceContent, previousContent, LengthInstruction(short))
	content, err := g.complete(ctx, prompt)
	if err != nil {
		return "", Metadata{}, err
	}
	content = AppendFooter(content)
	return content, ExtractMetadata(content), nil
}

func surroundingContext(sections []Section, index int) string {
	var parts []string
	if index > 0 {
		parts = append(parts, sections[index-1].Heading)
	}
	if index < len(sections)-1 {
		parts = append(parts, sections[index+1].Heading)
	}
	return strings.Join(parts, "\n")
}

func toSet(ids []int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
