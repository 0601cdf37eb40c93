package handler

import (
	"encoding/base64"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/bus"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// RegisterAll subscribes the five built-in output handlers on b, rendering
// every event onto send. Returns the subscriptions so the session manager
// can unsubscribe on teardown.
func RegisterAll(b *bus.Bus, send SendFunc) []bus.Subscription {
	return []bus.Subscription{
		b.Subscribe(types.EventSentence, sentenceHandler(send), bus.High),
		b.Subscribe(types.EventAudioExpression, audioHandler(send), bus.Normal),
		b.Subscribe(types.EventTranscript, transcriptHandler(send), bus.High),
		b.Subscribe(types.EventControl, controlHandler(send), bus.Normal),
		b.Subscribe(types.EventError, errorHandler(send), bus.High),
	}
}

// sentenceHandler renders sentence events as text frames.
func sentenceHandler(send SendFunc) bus.Handler {
	return func(ev types.OutputEvent) error {
		return send(TextFrame{Type: "text", Text: ev.Sentence.Text, Seq: ev.Sentence.Seq})
	}
}

// audioHandler renders audio_with_expression events.
func audioHandler(send SendFunc) bus.Handler {
	return func(ev types.OutputEvent) error {
		p := ev.Audio
		segments := make([]Segment, len(p.Timeline))
		for i, s := range p.Timeline {
			segments[i] = Segment{
				Emotion:   s.Emotion,
				Time:      s.Start,
				Duration:  s.Duration,
				Intensity: s.Intensity,
			}
		}
		return send(AudioExpressionFrame{
			Type:      "audio_with_expression",
			AudioData: base64.StdEncoding.EncodeToString(p.Audio),
			Format:    p.Format,
			Volumes:   p.Volumes,
			Expressions: Expressions{
				Segments:      segments,
				TotalDuration: p.TotalDuration,
			},
			Text: p.Text,
			Seq:  p.Seq,
		})
	}
}

// transcriptHandler renders transcript events.
func transcriptHandler(send SendFunc) bus.Handler {
	return func(ev types.OutputEvent) error {
		return send(TranscriptFrame{Type: "transcript", Text: ev.Transcript.Text, IsFinal: ev.Transcript.IsFinal})
	}
}

// controlHandler renders control events.
func controlHandler(send SendFunc) bus.Handler {
	return func(ev types.OutputEvent) error {
		return send(ControlFrame{Type: "control", Text: string(ev.Control.Signal)})
	}
}

// errorHandler renders error events; the message is always non-empty by
// event construction.
func errorHandler(send SendFunc) bus.Handler {
	return func(ev types.OutputEvent) error {
		return send(ErrorFrame{Type: "error", Message: ev.Error.Message, Kind: string(ev.Error.Kind)})
	}
}
