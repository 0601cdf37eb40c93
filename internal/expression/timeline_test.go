package expression

import (
	"math"
	"testing"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// checkTiling asserts the shared timeline invariants: sorted by start,
// non-overlapping, first at 0, durations summing to total.
func checkTiling(t *testing.T, segs []types.TimelineSegment, total float64) {
	t.Helper()
	if len(segs) == 0 {
		t.Fatal("empty timeline")
	}
	if segs[0].Start != 0 {
		t.Errorf("first segment starts at %f, want 0", segs[0].Start)
	}
	var sum float64
	cursor := 0.0
	for i, s := range segs {
		if math.Abs(s.Start-cursor) > 1e-9 {
			t.Errorf("segment %d starts at %f, want %f (gap or overlap)", i, s.Start, cursor)
		}
		if s.Duration < 0 {
			t.Errorf("segment %d has negative duration %f", i, s.Duration)
		}
		if s.Intensity < 0 || s.Intensity > 1 {
			t.Errorf("segment %d intensity %f out of [0,1]", i, s.Intensity)
		}
		cursor = s.Start + s.Duration
		sum += s.Duration
	}
	if math.Abs(sum-total) > 1e-6 {
		t.Errorf("durations sum to %f, want %f", sum, total)
	}
}

func TestPositionStrategy_TwoTags(t *testing.T) {
	t.Parallel()

	s := &PositionStrategy{}
	segs := s.Timeline(tags("happy", "thinking"), 2.0)
	checkTiling(t, segs, 2.0)

	if len(segs) != 2 {
		t.Fatalf("segments: want 2, got %d", len(segs))
	}
	if segs[0].Emotion != "happy" || segs[1].Emotion != "thinking" {
		t.Errorf("segment emotions: got %v", segs)
	}
	if segs[0].Duration != 1.0 || segs[1].Start != 1.0 {
		t.Errorf("equal split violated: %v", segs)
	}
}

func TestPositionStrategy_Empty(t *testing.T) {
	t.Parallel()

	segs := (&PositionStrategy{}).Timeline(nil, 1.5)
	checkTiling(t, segs, 1.5)
	if len(segs) != 1 || segs[0].Emotion != Neutral {
		t.Errorf("empty tags: want one neutral segment, got %v", segs)
	}
}

func TestPositionStrategy_Transition(t *testing.T) {
	t.Parallel()

	s := &PositionStrategy{Transition: 0.2}
	segs := s.Timeline(tags("happy", "sad"), 2.0)
	checkTiling(t, segs, 2.0)

	// body(happy) + crossfade(sad, 0.5 intensity) + body(sad).
	if len(segs) != 3 {
		t.Fatalf("segments with transition: want 3, got %d (%v)", len(segs), segs)
	}
	fade := segs[1]
	if fade.Emotion != "sad" || fade.Intensity != 0.5 {
		t.Errorf("crossfade segment: got %+v", fade)
	}
	if math.Abs(fade.Duration-0.2) > 1e-9 {
		t.Errorf("crossfade duration: want 0.2, got %f", fade.Duration)
	}
	if math.Abs(fade.Start-0.9) > 1e-9 {
		t.Errorf("crossfade start: want 0.9, got %f", fade.Start)
	}
}

func TestWeightStrategy_ProportionalAllocation(t *testing.T) {
	t.Parallel()

	s := &WeightStrategy{}
	// happy appears twice, sad once → 2/3 vs 1/3 of 3 s.
	segs := s.Timeline(tags("happy", "sad", "happy"), 3.0)
	checkTiling(t, segs, 3.0)

	if len(segs) != 2 {
		t.Fatalf("segments: want 2 distinct emotions, got %d", len(segs))
	}
	if segs[0].Emotion != "happy" || segs[1].Emotion != "sad" {
		t.Errorf("first-occurrence order violated: %v", segs)
	}
	if math.Abs(segs[0].Duration-2.0) > 1e-9 {
		t.Errorf("happy duration: want 2.0, got %f", segs[0].Duration)
	}
}

func TestWeightStrategy_ConfiguredWeights(t *testing.T) {
	t.Parallel()

	s := &WeightStrategy{Weights: map[string]float64{"sad": 3}}
	segs := s.Timeline(tags("happy", "sad"), 4.0)
	checkTiling(t, segs, 4.0)

	// happy weight 1, sad weight 3 → 1 s vs 3 s.
	if math.Abs(segs[0].Duration-1.0) > 1e-9 || math.Abs(segs[1].Duration-3.0) > 1e-9 {
		t.Errorf("weighted durations: got %v", segs)
	}
}

func TestWeightStrategy_MinDuration(t *testing.T) {
	t.Parallel()

	s := &WeightStrategy{MinDuration: 0.5, Weights: map[string]float64{"happy": 9}}
	segs := s.Timeline(tags("happy", "sad"), 2.0)
	checkTiling(t, segs, 2.0)

	// sad's proportional share (0.2 s) is below the 0.5 s minimum.
	if segs[1].Duration < 0.5-1e-9 {
		t.Errorf("min duration not enforced: %v", segs)
	}
}

func TestWeightStrategy_IntensityScaling(t *testing.T) {
	t.Parallel()

	s := &WeightStrategy{ScaleIntensity: true}
	segs := s.Timeline(tags("happy", "happy", "sad"), 3.0)
	checkTiling(t, segs, 3.0)

	if segs[0].Intensity != 1.0 {
		t.Errorf("dominant emotion intensity: want 1.0, got %f", segs[0].Intensity)
	}
	if math.Abs(segs[1].Intensity-0.5) > 1e-9 {
		t.Errorf("minor emotion intensity: want 0.5, got %f", segs[1].Intensity)
	}
}

func TestNewStrategy(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "position", "duration", "intensity"} {
		if _, err := NewStrategy(name, StrategyConfig{}); err != nil {
			t.Errorf("NewStrategy(%q): %v", name, err)
		}
	}
	_, err := NewStrategy("spiral", StrategyConfig{})
	if !types.IsKind(err, types.KindConfigInvalid) {
		t.Errorf("NewStrategy(spiral): want config_invalid, got %v", err)
	}
}
