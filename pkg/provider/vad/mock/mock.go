// Package mock provides test doubles for the vad.Engine and vad.Session
// interfaces.
package mock

import (
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine. Every NewSession call
// returns the configured Session (or a fresh zero-value one).
type Engine struct {
	mu sync.Mutex

	// Session is handed out by NewSession. When nil a new zero-value
	// Session is created per call.
	Session *Session

	// NewSessionErr, if non-nil, is returned by NewSession.
	NewSessionErr error

	// NewSessionCalls counts NewSession invocations.
	NewSessionCalls int
}

var _ vad.Engine = (*Engine)(nil)

// NewSession implements vad.Engine.
func (e *Engine) NewSession(_ vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls++
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Session is a scripted mock implementation of vad.Session: each Process
// call pops the next event from Events; when the script is exhausted it
// returns Silence.
type Session struct {
	mu sync.Mutex

	// Events is the script consumed by successive Process calls.
	Events []vad.Event

	// FlushEvent is returned by Flush.
	FlushEvent vad.Event

	// ProcessCalls records the chunks passed to Process.
	ProcessCalls [][]byte

	// ResetCalls counts Reset invocations.
	ResetCalls int

	next   int
	closed bool
}

var _ vad.Session = (*Session)(nil)

// Process implements vad.Session.
func (s *Session) Process(chunk []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProcessCalls = append(s.ProcessCalls, chunk)
	if s.next >= len(s.Events) {
		return vad.Event{Type: vad.Silence}, nil
	}
	ev := s.Events[s.next]
	s.next++
	return ev, nil
}

// Flush implements vad.Session.
func (s *Session) Flush() vad.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FlushEvent
}

// Reset implements vad.Session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
	s.next = 0
}

// Close implements vad.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
