package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Turn is the unit of one user utterance and one (possibly interrupted)
// agent reply. It owns the per-turn sequence counter, the cancellation
// token shared by every job of the turn, and the assistant text emitted so
// far.
type Turn struct {
	// ID is monotonically increasing per session.
	ID int64

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      int
	text     strings.Builder
	finished bool
}

// newTurn creates a turn whose context is derived from parent with the
// given wall-clock budget. A zero timeout disables the deadline.
func newTurn(parent context.Context, id int64, timeout time.Duration) *Turn {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &Turn{ID: id, ctx: ctx, cancel: cancel}
}

// Context returns the turn's cancellation context. Every provider call and
// synthesis job of the turn derives from it.
func (t *Turn) Context() context.Context { return t.ctx }

// Cancel signals the turn's cancellation token. Safe to call repeatedly.
func (t *Turn) Cancel() { t.cancel() }

// Cancelled reports whether the turn's token has been signalled (interrupt,
// disconnect, or timeout).
func (t *Turn) Cancelled() bool { return t.ctx.Err() != nil }

// NextSeq allocates the next sequence number, starting at 0.
func (t *Turn) NextSeq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.seq
	t.seq++
	return s
}

// AppendText records sentence text as emitted, building the assistant
// reply for the chat log.
func (t *Turn) AppendText(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.text.Len() > 0 {
		t.text.WriteByte(' ')
	}
	t.text.WriteString(s)
}

// Text returns the assistant text emitted so far.
func (t *Turn) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// finishOnce reports true exactly once; used so that exactly one of the
// normal-completion and interrupt paths writes the chat log entry.
func (t *Turn) finishOnce() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	t.finished = true
	return true
}
