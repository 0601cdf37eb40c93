package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestOutputEvent_Validate(t *testing.T) {
	t.Parallel()

	valid := []OutputEvent{
		NewSentenceEvent("Hello.", 0),
		NewAudioExpressionEvent(AudioExpressionPayload{Format: "mp3", Seq: 0}),
		NewTranscriptEvent("hi", true),
		NewControlEvent(SignalConversationEnd),
		NewErrorEvent(KindTTSUnavailable, "synthesis failed"),
	}
	for _, ev := range valid {
		if err := ev.Validate(); err != nil {
			t.Errorf("Validate(%s): unexpected error: %v", ev.Type, err)
		}
	}

	// A hand-built event with mismatched payload must fail.
	bad := OutputEvent{Type: EventSentence, Control: &ControlPayload{Signal: SignalInterrupt}}
	if err := bad.Validate(); err == nil {
		t.Error("Validate: mismatched payload accepted")
	}

	// Two payloads must fail.
	dual := NewSentenceEvent("x", 0)
	dual.Control = &ControlPayload{Signal: SignalInterrupt}
	if err := dual.Validate(); err == nil {
		t.Error("Validate: double payload accepted")
	}
}

func TestOutputEvent_Seq(t *testing.T) {
	t.Parallel()

	if got := NewSentenceEvent("a", 3).Seq(); got != 3 {
		t.Errorf("sentence Seq: want 3, got %d", got)
	}
	if got := NewTranscriptEvent("a", false).Seq(); got != -1 {
		t.Errorf("transcript Seq: want -1, got %d", got)
	}
	if got := NewControlEvent(SignalInterrupted).Seq(); got != -1 {
		t.Errorf("control Seq: want -1, got %d", got)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("socket closed")
	err := fmt.Errorf("provider call: %w", Wrap(KindTTSUnavailable, "elevenlabs", base))

	if got := KindOf(err); got != KindTTSUnavailable {
		t.Errorf("KindOf: want %q, got %q", KindTTSUnavailable, got)
	}
	if !IsKind(err, KindTTSUnavailable) {
		t.Error("IsKind: want true")
	}
	if IsKind(err, KindASRUnavailable) {
		t.Error("IsKind: wrong kind matched")
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is: wrapped cause lost")
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain): want empty, got %q", got)
	}
}

func TestErrorEvent_NonEmptyMessage(t *testing.T) {
	t.Parallel()

	ev := NewErrorEvent(KindLLMUnavailable, "")
	if ev.Error.Message == "" {
		t.Error("error event must carry a non-empty message")
	}
}
