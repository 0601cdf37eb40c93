package expression

import (
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Strategy lays the sentence's emotions out over the clip duration.
// Returned segments are sorted by start, non-overlapping, and tile
// [0, duration] exactly; an empty tag list yields a single neutral segment.
type Strategy interface {
	Timeline(tags []types.EmotionTag, duration float64) []types.TimelineSegment
}

// StrategyConfig tunes the built-in strategies.
type StrategyConfig struct {
	// MinDuration is the minimum segment length in seconds used by the
	// duration and intensity strategies.
	MinDuration float64

	// Weights overrides the per-emotion weight. Default 1.0.
	Weights map[string]float64

	// Transition is the crossfade window in seconds applied at interior
	// boundaries by the position strategy. Zero disables crossfades.
	Transition float64
}

// NewStrategy builds the timeline strategy selected by name ("position",
// "duration", or "intensity"). An unknown name fails with config_invalid.
func NewStrategy(name string, cfg StrategyConfig) (Strategy, error) {
	switch name {
	case "", "position":
		return &PositionStrategy{Transition: cfg.Transition}, nil
	case "duration":
		return &WeightStrategy{MinDuration: cfg.MinDuration, Weights: cfg.Weights}, nil
	case "intensity":
		return &WeightStrategy{MinDuration: cfg.MinDuration, Weights: cfg.Weights, ScaleIntensity: true}, nil
	default:
		return nil, types.E(types.KindConfigInvalid, "unknown timeline strategy %q; valid: position, duration, intensity", name)
	}
}

// neutralTimeline covers the whole clip with a neutral segment.
func neutralTimeline(duration float64) []types.TimelineSegment {
	return []types.TimelineSegment{{Emotion: Neutral, Start: 0, Duration: duration, Intensity: 1}}
}

// PositionStrategy partitions the clip into one equal slot per tag in tag
// order. With a Transition window t, each interior boundary becomes a
// crossfade segment spanning t/2 on each side, carrying the incoming
// emotion at half intensity; the first slot's start and the last slot's end
// are never moved.
type PositionStrategy struct {
	Transition float64
}

var _ Strategy = (*PositionStrategy)(nil)

// Timeline implements Strategy.
func (s *PositionStrategy) Timeline(tags []types.EmotionTag, duration float64) []types.TimelineSegment {
	if len(tags) == 0 || duration <= 0 {
		return neutralTimeline(duration)
	}

	slot := duration / float64(len(tags))

	// Clamp the crossfade so it never swallows a whole slot.
	half := s.Transition / 2
	if half > slot/2 {
		half = slot / 2
	}

	var segs []types.TimelineSegment
	cursor := 0.0
	for i, tag := range tags {
		end := float64(i+1) * slot
		if i < len(tags)-1 && half > 0 {
			// Body of slot i up to the crossfade window.
			segs = append(segs, types.TimelineSegment{
				Emotion: tag.Emotion, Start: cursor, Duration: end - half - cursor, Intensity: 1,
			})
			// Crossfade into the next emotion.
			segs = append(segs, types.TimelineSegment{
				Emotion: tags[i+1].Emotion, Start: end - half, Duration: 2 * half, Intensity: 0.5,
			})
			cursor = end + half
			continue
		}
		segs = append(segs, types.TimelineSegment{
			Emotion: tag.Emotion, Start: cursor, Duration: end - cursor, Intensity: 1,
		})
		cursor = end
	}

	closeTiling(segs, duration)
	return segs
}

// WeightStrategy allocates the clip across the distinct emotions in
// first-occurrence order, each weighted by its tag count times the
// configured per-emotion weight. Segments below MinDuration are raised and
// the remainder is rescaled. With ScaleIntensity set, each segment's
// intensity is its weight normalized by the largest weight; otherwise
// intensity is 1.
type WeightStrategy struct {
	MinDuration    float64
	Weights        map[string]float64
	ScaleIntensity bool
}

var _ Strategy = (*WeightStrategy)(nil)

// Timeline implements Strategy.
func (s *WeightStrategy) Timeline(tags []types.EmotionTag, duration float64) []types.TimelineSegment {
	if len(tags) == 0 || duration <= 0 {
		return neutralTimeline(duration)
	}

	// Distinct emotions in first-occurrence order with combined weights.
	var order []string
	weight := make(map[string]float64)
	for _, t := range tags {
		if _, seen := weight[t.Emotion]; !seen {
			order = append(order, t.Emotion)
		}
		w := 1.0
		if cw, ok := s.Weights[t.Emotion]; ok && cw > 0 {
			w = cw
		}
		weight[t.Emotion] += w
	}

	var total, maxW float64
	for _, w := range weight {
		total += w
		if w > maxW {
			maxW = w
		}
	}

	// Proportional allocation with a minimum length. When the minimum is
	// unsatisfiable, fall back to equal slots.
	durations := make([]float64, len(order))
	minDur := s.MinDuration
	if minDur*float64(len(order)) > duration {
		minDur = 0
	}
	if minDur > 0 {
		// Raise sub-minimum segments, rescale the rest into what is left.
		var flexTotal float64
		raised := make([]bool, len(order))
		remaining := duration
		for i, e := range order {
			d := duration * weight[e] / total
			if d < minDur {
				durations[i] = minDur
				raised[i] = true
				remaining -= minDur
			} else {
				flexTotal += weight[e]
			}
		}
		for i, e := range order {
			if !raised[i] {
				durations[i] = remaining * weight[e] / flexTotal
			}
		}
	} else {
		for i, e := range order {
			durations[i] = duration * weight[e] / total
		}
	}

	segs := make([]types.TimelineSegment, len(order))
	cursor := 0.0
	for i, e := range order {
		intensity := 1.0
		if s.ScaleIntensity && maxW > 0 {
			intensity = weight[e] / maxW
		}
		segs[i] = types.TimelineSegment{Emotion: e, Start: cursor, Duration: durations[i], Intensity: intensity}
		cursor += durations[i]
	}

	closeTiling(segs, duration)
	return segs
}

// closeTiling removes floating-point drift by pinning the last segment's
// end to the clip duration.
func closeTiling(segs []types.TimelineSegment, duration float64) {
	if len(segs) == 0 {
		return
	}
	last := &segs[len(segs)-1]
	last.Duration = duration - last.Start
	if last.Duration < 0 {
		last.Duration = 0
	}
}
