package types

import "fmt"

// EventType discriminates the variants of [OutputEvent].
type EventType string

const (
	// EventSentence is a completed sentence of agent text.
	EventSentence EventType = "sentence"

	// EventAudioExpression is a synthesized audio clip bundled with its
	// volume envelope and emotion timeline.
	EventAudioExpression EventType = "audio_with_expression"

	// EventTranscript is a speech-recognition result echoed back to the client.
	EventTranscript EventType = "transcript"

	// EventControl is a control signal (see [ControlSignal]).
	EventControl EventType = "control"

	// EventError is an error surfaced to the client.
	EventError EventType = "error"
)

// ControlSignal enumerates the control messages exchanged with clients.
type ControlSignal string

const (
	SignalStartMic          ControlSignal = "start-mic"
	SignalStopMic           ControlSignal = "stop-mic"
	SignalInterrupt         ControlSignal = "interrupt"
	SignalInterrupted       ControlSignal = "interrupted"
	SignalNoAudioData       ControlSignal = "no-audio-data"
	SignalMicAudioEnd       ControlSignal = "mic-audio-end"
	SignalConversationStart ControlSignal = "conversation-start"
	SignalConversationEnd   ControlSignal = "conversation-end"
)

// SentencePayload carries a completed agent sentence.
type SentencePayload struct {
	Text string
	Seq  int
}

// AudioExpressionPayload carries a synthesized clip plus everything the
// avatar needs to animate it: the 50 Hz loudness envelope for the mouth and
// the emotion timeline for the face. It shares its Seq with the sentence it
// was synthesized from.
type AudioExpressionPayload struct {
	// Audio is the encoded clip as produced by the TTS provider.
	Audio []byte

	// Format is the clip's codec tag (mp3, wav, ogg, webm, flac, aac, mp4).
	Format string

	// Volumes is the loudness envelope sampled at [EnvelopeRate] Hz,
	// values in [0, 1].
	Volumes []float64

	// Timeline is the emotion timeline tiling [0, TotalDuration].
	Timeline []TimelineSegment

	// TotalDuration is the clip length in seconds.
	TotalDuration float64

	// Text is the sentence the clip was synthesized from (tags stripped).
	Text string

	Seq int
}

// TranscriptPayload echoes a speech-recognition result.
type TranscriptPayload struct {
	Text    string
	IsFinal bool
}

// ControlPayload carries a control signal. Seq is set only for signals that
// participate in a turn's event ordering; -1 means unordered.
type ControlPayload struct {
	Signal ControlSignal
	Seq    int
}

// ErrorPayload carries a client-visible error.
type ErrorPayload struct {
	// Kind is the machine-readable error kind (may be empty).
	Kind Kind

	// Message is a non-empty human-readable description.
	Message string

	// Seq references the sentence the error relates to; -1 when the error
	// is not tied to a particular sentence.
	Seq int
}

// OutputEvent is the tagged union of everything the output pipeline emits.
// Exactly one payload pointer is non-nil, matching Type. Construct events
// through the New*Event functions, which validate this invariant.
type OutputEvent struct {
	Type EventType

	Sentence   *SentencePayload
	Audio      *AudioExpressionPayload
	Transcript *TranscriptPayload
	Control    *ControlPayload
	Error      *ErrorPayload
}

// NewSentenceEvent builds a sentence event.
func NewSentenceEvent(text string, seq int) OutputEvent {
	return OutputEvent{Type: EventSentence, Sentence: &SentencePayload{Text: text, Seq: seq}}
}

// NewAudioExpressionEvent builds an audio_with_expression event.
func NewAudioExpressionEvent(p AudioExpressionPayload) OutputEvent {
	return OutputEvent{Type: EventAudioExpression, Audio: &p}
}

// NewTranscriptEvent builds a transcript event.
func NewTranscriptEvent(text string, isFinal bool) OutputEvent {
	return OutputEvent{Type: EventTranscript, Transcript: &TranscriptPayload{Text: text, IsFinal: isFinal}}
}

// NewControlEvent builds an unordered control event.
func NewControlEvent(signal ControlSignal) OutputEvent {
	return OutputEvent{Type: EventControl, Control: &ControlPayload{Signal: signal, Seq: -1}}
}

// NewErrorEvent builds an error event not tied to a sentence.
func NewErrorEvent(kind Kind, message string) OutputEvent {
	return NewErrorEventForSeq(kind, message, -1)
}

// NewErrorEventForSeq builds an error event referencing the sentence with
// the given seq.
func NewErrorEventForSeq(kind Kind, message string, seq int) OutputEvent {
	if message == "" {
		message = string(kind)
	}
	return OutputEvent{Type: EventError, Error: &ErrorPayload{Kind: kind, Message: message, Seq: seq}}
}

// Seq returns the event's sequence number within its turn, or -1 for events
// that do not participate in turn ordering.
func (e OutputEvent) Seq() int {
	switch e.Type {
	case EventSentence:
		return e.Sentence.Seq
	case EventAudioExpression:
		return e.Audio.Seq
	case EventControl:
		return e.Control.Seq
	case EventError:
		return e.Error.Seq
	default:
		return -1
	}
}

// Validate checks that exactly the payload matching Type is set.
func (e OutputEvent) Validate() error {
	set := 0
	for _, p := range []bool{e.Sentence != nil, e.Audio != nil, e.Transcript != nil, e.Control != nil, e.Error != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("types: event has %d payloads, want exactly 1", set)
	}
	ok := false
	switch e.Type {
	case EventSentence:
		ok = e.Sentence != nil
	case EventAudioExpression:
		ok = e.Audio != nil
	case EventTranscript:
		ok = e.Transcript != nil
	case EventControl:
		ok = e.Control != nil
	case EventError:
		ok = e.Error != nil
	default:
		return fmt.Errorf("types: unknown event type %q", e.Type)
	}
	if !ok {
		return fmt.Errorf("types: payload does not match event type %q", e.Type)
	}
	return nil
}
