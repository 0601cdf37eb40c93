// Package mock provides a test double for the asr.Provider interface.
//
// Use Provider in unit tests to feed controlled transcriptions without a
// live recognition backend. Set the response fields before use; call
// records can be read back after the code under test ran.
package mock

import (
	"context"
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is the PCM slice passed to Transcribe.
	Samples []float32
}

// Provider is a mock implementation of asr.Provider.
// Zero values cause Transcribe to return "" and a nil error.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe.
	Text string

	// Err, if non-nil, is returned by Transcribe instead of Text.
	Err error

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall
}

var _ asr.Provider = (*Provider)(nil)

// Transcribe records the call and returns the configured Text or Err.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Samples: samples})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
