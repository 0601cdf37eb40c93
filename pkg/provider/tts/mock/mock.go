// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the sentence passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
// The zero value returns an empty wav Clip for every call.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize for every call.
	Clip tts.Clip

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// ErrOnCall, when > 0, makes only the n-th call (1-based) fail with
	// Err; other calls succeed. Used to test mid-turn synthesis failures.
	ErrOnCall int

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns the configured Clip or Err.
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	n := len(p.SynthesizeCalls)

	if p.Err != nil && (p.ErrOnCall == 0 || p.ErrOnCall == n) {
		return tts.Clip{}, p.Err
	}
	clip := p.Clip
	if clip.Format == "" {
		clip.Format = "wav"
	}
	return clip, nil
}

// CallCount returns the number of Synthesize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Texts returns the synthesized sentence texts in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		out[i] = c.Text
	}
	return out
}
