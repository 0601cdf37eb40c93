// Package pipeline implements the per-input processing chain that turns a
// client submission (speech or text) into a normalized, tag-annotated
// prompt for the agent: ASR → whitespace normalization → emotion-tag
// extraction.
//
// Each submission gets its own [Context]; steps mutate it in order until
// one sets an error or short-circuits the chain.
package pipeline

import (
	"context"
	"log/slog"
)

// MetaEmotionTags is the metadata key under which the tag-extract step
// stores the []types.EmotionTag it found.
const MetaEmotionTags = "emotion_tags"

// MetaASREngine is the metadata key naming the ASR engine that produced
// the transcription.
const MetaASREngine = "asr_engine"

// Context is the mutable state threaded through the input chain. One
// Context serves exactly one submission and is owned by the orchestrator.
type Context struct {
	rawAudio []float32
	text     string
	textSet  bool

	// Metadata captures step outputs (extracted tags, ASR engine name, …).
	Metadata map[string]any

	// SkipRemaining short-circuits the chain without an error (e.g. the
	// recognizer heard nothing).
	SkipRemaining bool

	// Err terminates the chain; the orchestrator surfaces it as an error
	// event and does not invoke the agent.
	Err error
}

// NewAudioContext creates a Context for a captured utterance of 16 kHz
// mono PCM.
func NewAudioContext(samples []float32) *Context {
	return &Context{rawAudio: samples, Metadata: make(map[string]any)}
}

// NewTextContext creates a Context for typed text input.
func NewTextContext(text string) *Context {
	c := &Context{Metadata: make(map[string]any)}
	c.SetText(text)
	return c
}

// RawAudio returns the submission's PCM samples, nil for text input.
func (c *Context) RawAudio() []float32 { return c.rawAudio }

// Text returns the current text. Empty until the ASR step ran (audio
// input) or the context was created from text.
func (c *Context) Text() string { return c.text }

// HasText reports whether text has been set.
func (c *Context) HasText() bool { return c.textSet }

// SetText sets the working text. Once set, the raw audio is frozen:
// further SetRawAudio calls are refused.
func (c *Context) SetText(text string) {
	c.text = text
	c.textSet = true
}

// SetRawAudio replaces the raw input. Refused with a warning once text has
// been set — no step may rewrite the audio after transcription.
func (c *Context) SetRawAudio(samples []float32) {
	if c.textSet {
		slog.Warn("pipeline: SetRawAudio ignored after text was set")
		return
	}
	c.rawAudio = samples
}

// Step is one stage of the input chain.
type Step interface {
	// Name identifies the step in logs.
	Name() string

	// Process inspects and mutates pc. Failures are recorded on pc.Err
	// rather than returned, mirroring the chain's short-circuit contract.
	Process(ctx context.Context, pc *Context)
}

// Pipeline runs an ordered chain of steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// New creates a Pipeline over the given steps. A nil logger selects
// slog.Default().
func New(logger *slog.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// Run executes the chain on pc. It stops at the first step that sets
// pc.Err or pc.SkipRemaining, or when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, pc *Context) {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			pc.Err = err
			return
		}
		step.Process(ctx, pc)
		if pc.Err != nil {
			p.logger.Warn("input step failed", "step", step.Name(), "err", pc.Err)
			return
		}
		if pc.SkipRemaining {
			p.logger.Debug("input chain short-circuited", "step", step.Name())
			return
		}
	}
}
