package expression

import (
	"context"
	"math"
	"testing"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/audio"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// testClip builds a WAV clip of the given duration at 16 kHz.
func testClip(seconds float64) tts.Clip {
	n := int(seconds * 16000)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.05 * float32(math.Sin(2*math.Pi*220*float64(i)/16000))
	}
	return tts.Clip{Audio: audio.SamplesToWAV(samples, 16000), Format: "wav"}
}

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	analyzer, err := NewAnalyzer("tag", ModeFrequency)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	strategy, err := NewStrategy("position", StrategyConfig{})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	return NewProcessor(analyzer, strategy, 0)
}

func TestProcessor_Process(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t)
	res, err := p.Process(context.Background(), "Sure ! Let me think .", tags("happy", "thinking"), testClip(0.8))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if math.Abs(res.TotalDuration-0.8) > 0.01 {
		t.Errorf("TotalDuration: want ≈0.8, got %f", res.TotalDuration)
	}

	// P2: envelope length tracks duration at 50 Hz within one sample.
	want := int(math.Round(res.TotalDuration * types.EnvelopeRate))
	if diff := len(res.Volumes) - want; diff < -1 || diff > 1 {
		t.Errorf("envelope length: want %d±1, got %d", want, len(res.Volumes))
	}
	for i, v := range res.Volumes {
		if v < 0 || v > 1 {
			t.Errorf("volume[%d] = %f out of [0,1]", i, v)
		}
	}

	// P2: segment durations sum to the clip duration.
	var sum float64
	for _, s := range res.Timeline {
		sum += s.Duration
	}
	if math.Abs(sum-res.TotalDuration) > 1e-6 {
		t.Errorf("timeline sum: want %f, got %f", res.TotalDuration, sum)
	}

	// S2: position strategy splits two tags into halves.
	if len(res.Timeline) != 2 || res.Timeline[0].Emotion != "happy" || res.Timeline[1].Emotion != "thinking" {
		t.Errorf("timeline: got %v", res.Timeline)
	}
	if res.Emotion.Primary != "happy" {
		t.Errorf("primary emotion: want happy (tie → first), got %q", res.Emotion.Primary)
	}
}

func TestProcessor_TinyClip(t *testing.T) {
	t.Parallel()

	// Shorter than one 20 ms window: still one volume sample and one
	// timeline segment covering the whole clip.
	p := newTestProcessor(t)
	res, err := p.Process(context.Background(), "?", nil, testClip(0.01))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Volumes) != 1 {
		t.Errorf("tiny clip volumes: want 1 sample, got %d", len(res.Volumes))
	}
	if len(res.Timeline) != 1 {
		t.Fatalf("tiny clip timeline: want 1 segment, got %d", len(res.Timeline))
	}
	seg := res.Timeline[0]
	if seg.Start != 0 || math.Abs(seg.Duration-res.TotalDuration) > 1e-9 {
		t.Errorf("tiny clip segment does not cover clip: %+v (duration %f)", seg, res.TotalDuration)
	}
}

func TestProcessor_DecodeFailure(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t)
	_, err := p.Process(context.Background(), "x", nil, tts.Clip{Audio: []byte("not audio"), Format: "mp4"})
	if !types.IsKind(err, types.KindDecodeFailed) {
		t.Errorf("decode failure kind: want decode_failed, got %v", err)
	}
}

func TestProcessor_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestProcessor(t).Process(ctx, "x", nil, testClip(0.1))
	if err == nil {
		t.Error("Process with cancelled context: want error")
	}
}
