// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to feed controlled fragment streams without a
// live model backend.
//
// Example:
//
//	p := &mock.Provider{
//	    StreamChunks: []llm.Chunk{{Text: "Hi! "}, {Text: "How are you?", FinishReason: "stop"}},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm"
)

// StreamCall records a single invocation of ChatStream.
type StreamCall struct {
	// Ctx is the context passed to ChatStream.
	Ctx context.Context
	// Req is the ChatRequest passed to ChatStream.
	Req llm.ChatRequest
}

// Provider is a mock implementation of llm.Provider.
// Zero values cause ChatStream to return an immediately-closed channel.
type Provider struct {
	mu sync.Mutex

	// StreamChunks is the sequence of Chunk values emitted on the channel
	// returned by ChatStream. Chunks are delivered in order; delivery stops
	// early if the caller's context is cancelled.
	StreamChunks []llm.Chunk

	// StreamErr, if non-nil, is returned as the error from ChatStream
	// instead of opening a channel.
	StreamErr error

	// ChunkDelay, if non-nil, is received from between chunk sends. Tests
	// use it to hold the stream open while they inject an interrupt.
	ChunkDelay <-chan struct{}

	// StreamCalls records every invocation of ChatStream in order.
	StreamCalls []StreamCall
}

var _ llm.Provider = (*Provider)(nil)

// ChatStream records the call and returns a channel emitting StreamChunks.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	chunks := make([]llm.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	streamErr := p.StreamErr
	delay := p.ChunkDelay
	p.mu.Unlock()

	if streamErr != nil {
		return nil, streamErr
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if delay != nil {
				select {
				case <-delay:
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// CallCount returns the number of ChatStream invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StreamCalls)
}

// LastRequest returns the most recent ChatRequest, or a zero value when
// ChatStream has not been called.
func (p *Provider) LastRequest() llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.StreamCalls) == 0 {
		return llm.ChatRequest{}
	}
	return p.StreamCalls[len(p.StreamCalls)-1].Req
}
