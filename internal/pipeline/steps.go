package pipeline

import (
	"context"
	"strings"
	"unicode"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/expression"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// ASRStep transcribes audio submissions. Text submissions pass through
// untouched. An empty transcription short-circuits the chain — the
// orchestrator answers with a no-audio-data control instead of waking the
// agent.
type ASRStep struct {
	provider asr.Provider
	engine   string
}

// NewASRStep creates an ASRStep. engine names the provider in metadata and
// logs.
func NewASRStep(provider asr.Provider, engine string) *ASRStep {
	return &ASRStep{provider: provider, engine: engine}
}

// Name implements Step.
func (s *ASRStep) Name() string { return "asr" }

// Process implements Step.
func (s *ASRStep) Process(ctx context.Context, pc *Context) {
	if pc.HasText() {
		return
	}
	if s.provider == nil {
		pc.Err = types.E(types.KindASRUnavailable, "no speech recognizer configured")
		return
	}

	text, err := s.provider.Transcribe(ctx, pc.RawAudio())
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.Wrap(types.KindASRUnavailable, "transcribe", err)
		}
		pc.Err = err
		return
	}

	pc.Metadata[MetaASREngine] = s.engine
	if strings.TrimSpace(text) == "" {
		pc.SkipRemaining = true
		return
	}
	pc.SetText(text)
}

// NormalizeStep strips control whitespace, collapses runs of spaces, and
// trims the text. Bracketed emotion tags are left for the next step.
type NormalizeStep struct{}

// Name implements Step.
func (NormalizeStep) Name() string { return "normalize" }

// Process implements Step.
func (NormalizeStep) Process(_ context.Context, pc *Context) {
	pc.SetText(normalize(pc.Text()))
	if pc.Text() == "" {
		pc.SkipRemaining = true
	}
}

// normalize maps every whitespace or control rune to a plain space, then
// collapses runs and trims.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// TagExtractStep extracts bracketed emotion tags from the text into
// metadata and removes them from the prompt.
type TagExtractStep struct {
	valid expression.TagSet
}

// NewTagExtractStep creates a TagExtractStep over the configured emotion
// set.
func NewTagExtractStep(valid expression.TagSet) *TagExtractStep {
	return &TagExtractStep{valid: valid}
}

// Name implements Step.
func (s *TagExtractStep) Name() string { return "emotion-tags" }

// Process implements Step.
func (s *TagExtractStep) Process(_ context.Context, pc *Context) {
	clean, tags := expression.ExtractTags(pc.Text(), s.valid)
	pc.SetText(clean)
	pc.Metadata[MetaEmotionTags] = tags
}

// TagsFrom returns the emotion tags recorded by TagExtractStep, or nil.
func TagsFrom(pc *Context) []types.EmotionTag {
	tags, _ := pc.Metadata[MetaEmotionTags].([]types.EmotionTag)
	return tags
}
