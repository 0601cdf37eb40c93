package bus

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func TestEmit_PriorityOrder(t *testing.T) {
	t.Parallel()

	b := newTestBus()
	var got []string
	record := func(tag string) Handler {
		return func(types.OutputEvent) error {
			got = append(got, tag)
			return nil
		}
	}

	// Subscribe out of priority order; insertion order breaks ties.
	b.Subscribe(types.EventSentence, record("low"), Low)
	b.Subscribe(types.EventSentence, record("normal-1"), Normal)
	b.Subscribe(types.EventSentence, record("high"), High)
	b.Subscribe(types.EventSentence, record("normal-2"), Normal)

	b.Emit(types.NewSentenceEvent("x", 0))

	want := []string{"high", "normal-1", "normal-2", "low"}
	if len(got) != len(want) {
		t.Fatalf("handler calls: want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("handler order: want %v, got %v", want, got)
		}
	}
}

func TestEmit_IsolatesFailures(t *testing.T) {
	t.Parallel()

	b := newTestBus()
	var after int

	b.Subscribe(types.EventControl, func(types.OutputEvent) error {
		panic("boom")
	}, High)
	b.Subscribe(types.EventControl, func(types.OutputEvent) error {
		return errors.New("soft failure")
	}, Normal)
	b.Subscribe(types.EventControl, func(types.OutputEvent) error {
		after++
		return nil
	}, Low)

	b.Emit(types.NewControlEvent(types.SignalInterrupted))

	if after != 1 {
		t.Errorf("handler after panic+error: want 1 call, got %d", after)
	}
}

func TestEmit_OnlyMatchingType(t *testing.T) {
	t.Parallel()

	b := newTestBus()
	var sentences, controls int
	b.Subscribe(types.EventSentence, func(types.OutputEvent) error { sentences++; return nil }, Normal)
	b.Subscribe(types.EventControl, func(types.OutputEvent) error { controls++; return nil }, Normal)

	b.Emit(types.NewSentenceEvent("a", 0))
	b.Emit(types.NewSentenceEvent("b", 1))
	b.Emit(types.NewControlEvent(types.SignalConversationEnd))

	if sentences != 2 || controls != 1 {
		t.Errorf("dispatch counts: want sentences=2 controls=1, got %d/%d", sentences, controls)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	t.Parallel()

	b := newTestBus()
	var calls int
	sub := b.Subscribe(types.EventError, func(types.OutputEvent) error { calls++; return nil }, Normal)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op

	b.Emit(types.NewErrorEvent(types.KindTTSUnavailable, "x"))
	if calls != 0 {
		t.Errorf("unsubscribed handler called %d times", calls)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	b := newTestBus()
	var calls int
	b.Subscribe(types.EventSentence, func(types.OutputEvent) error { calls++; return nil }, Normal)
	b.Clear()
	b.Emit(types.NewSentenceEvent("x", 0))
	if calls != 0 {
		t.Errorf("handler survived Clear: %d calls", calls)
	}
}

func TestEmit_DropsMalformedEvent(t *testing.T) {
	t.Parallel()

	b := newTestBus()
	var calls int
	b.Subscribe(types.EventSentence, func(types.OutputEvent) error { calls++; return nil }, Normal)

	// Hand-built event with no payload must be dropped, not delivered.
	b.Emit(types.OutputEvent{Type: types.EventSentence})
	if calls != 0 {
		t.Errorf("malformed event delivered %d times", calls)
	}
}
