package jobs

import (
	"context"
	"fmt"

	"github.com/surfsense-core/knowledge-core/internal/llm"
)

// ScriptSynthesizer turns source content into a two-host conversational
// script via the chat LLM, the same way podcast.py's Celery task derives a
// script before handing it to a TTS backend. No TTS vendor library is
// present anywhere in the reference corpus this repo was built from, so
// this Synthesizer stops at the script: it returns the generated script as
// text/plain "audio", leaving the actual speech-synthesis call as the one
// documented seam where a concrete TTS integration plugs in once a vendor
// is chosen.
type ScriptSynthesizer struct {
	provider llm.Provider
	slot     string
}

func NewScriptSynthesizer(provider llm.Provider, slot string) *ScriptSynthesizer {
	return &ScriptSynthesizer{provider: provider, slot: slot}
}

func (s *ScriptSynthesizer) Synthesize(ctx context.Context, sourceContent, userPrompt string) ([]byte, string, error) {
	prompt := fmt.Sprintf(`Write a two-host, engaging podcast script discussing the content below.
Use "HOST A:" and "HOST B:" turn prefixes. Keep it conversational, not a dry summary.

%s

Additional instructions from the user: %s

Content to discuss:
%s`, "Podcast script", userPrompt, sourceContent)

	completion, err := s.provider.Complete(ctx, s.slot, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return nil, "", fmt.Errorf("jobs: generate podcast script: %w", err)
	}
	return []byte(completion.Content), "text/plain", nil
}
