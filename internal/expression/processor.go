package expression

import (
	"context"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/audio"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Result bundles everything the avatar needs to perform one sentence. The
// output pipeline stamps the sequence number before emitting it.
type Result struct {
	// Audio is the encoded clip exactly as the TTS provider produced it.
	Audio []byte

	// Format is the clip's codec tag.
	Format string

	// Volumes is the 50 Hz loudness envelope.
	Volumes []float64

	// Timeline is the emotion timeline tiling [0, TotalDuration].
	Timeline []types.TimelineSegment

	// TotalDuration is the clip length in seconds.
	TotalDuration float64

	// Emotion is the analyzed emotion data (primary, confidence).
	Emotion types.EmotionData

	// Text is the sentence the clip was synthesized from.
	Text string
}

// Processor co-processes a synthesized clip and its sentence into a Result:
// decode → volume envelope → emotion analysis → timeline.
//
// A Processor is immutable after construction and safe for concurrent use;
// sentences of one turn are processed in parallel.
type Processor struct {
	analyzer Analyzer
	strategy Strategy
	gain     float64
}

// NewProcessor creates a Processor. A zero gain selects the default
// envelope gain.
func NewProcessor(analyzer Analyzer, strategy Strategy, gain float64) *Processor {
	if gain <= 0 {
		gain = audio.DefaultEnvelopeGain
	}
	return &Processor{analyzer: analyzer, strategy: strategy, gain: gain}
}

// Process analyses one synthesized sentence. tags are the emotion tags
// stripped from the sentence before synthesis. Decoding failures carry the
// decode_failed error kind; cancelled contexts abort before decoding.
func (p *Processor) Process(ctx context.Context, text string, tags []types.EmotionTag, clip tts.Clip) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, rate, err := audio.Decode(clip.Audio, clip.Format)
	if err != nil {
		return nil, err
	}

	duration := audio.Duration(len(samples), rate)
	volumes := audio.Envelope(samples, rate, p.gain)
	emotion := p.analyzer.Analyze(text, tags)
	timeline := p.strategy.Timeline(tags, duration)

	return &Result{
		Audio:         clip.Audio,
		Format:        clip.Format,
		Volumes:       volumes,
		Timeline:      timeline,
		TotalDuration: duration,
		Emotion:       emotion,
		Text:          text,
	}, nil
}
