package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAndStitchSectionsRoundTrips(t *testing.T) {
	content := "# Title\n\nIntro text.\n\n## Section One\n\nBody one.\n\n## Section Two\n\nBody two."
	sections := ParseSections(content)
	assert.Len(t, sections, 3)
	assert.Equal(t, "# Title", sections[0].Heading)
	assert.Equal(t, "Intro text.", sections[0].Body)
	assert.Equal(t, "## Section One", sections[1].Heading)

	assert.Equal(t, content, StitchSections(sections))
}

func TestParseSectionsKeepsSubHeadingsInsideParentBody(t *testing.T) {
	content := "## Section\n\n### Subsection\n\nnested text"
	sections := ParseSections(content)
	assert.Len(t, sections, 1)
	assert.Contains(t, sections[0].Body, "### Subsection")
}

func TestParseSectionsIgnoresHeadingsInsideCodeBlocks(t *testing.T) {
	content := "## Real Section\n\n```\n## not a heading\n```\n\nbody text"
	sections := ParseSections(content)
	assert.Len(t, sections, 1)
	assert.Contains(t, sections[0].Body, "## not a heading")
}

func TestStripWrappingCodeFenceRemovesMarkdownFence(t *testing.T) {
	wrapped := "```markdown\n# Report\n\nbody\n```"
	assert.Equal(t, "# Report\n\nbody", StripWrappingCodeFence(wrapped))
}

func TestStripWrappingCodeFenceLeavesUnfencedContentAlone(t *testing.T) {
	plain := "# Report\n\nbody"
	assert.Equal(t, plain, StripWrappingCodeFence(plain))
}

func TestAppendFooterReplacesExistingFooter(t *testing.T) {
	content := "# Report\n\nbody\n\n---\n\n" + footer
	out := AppendFooter(content)
	assert.Equal(t, 1, countOccurrences(out, footer))
}

func TestExtractMetadataCountsWordsAndSections(t *testing.T) {
	content := "# Title\n\none two three\n\n## Section\n\nfour five"
	meta := ExtractMetadata(content)
	assert.Equal(t, 2, meta.SectionCount)
	assert.Equal(t, 9, meta.WordCount)
}

func TestParseSectionPlanDecodesJSON(t *testing.T) {
	raw := `{"modify": [0, 2], "add": [{"after_index": 2, "heading": "## New", "description": "desc"}], "remove": [], "reasoning": "because"}`
	plan, err := ParseSectionPlan(raw)
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 2}, plan.Modify)
	assert.Len(t, plan.Add, 1)
	assert.Equal(t, "## New", plan.Add[0].Heading)
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
		}
	}
	return count
}
