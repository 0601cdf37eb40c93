package audio

import (
	"math"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// DefaultEnvelopeGain is the fixed gain applied to per-window RMS values
// before clamping to [0, 1]. Speech RMS rarely exceeds 0.1, so a gain of 10
// maps a loud voice near full mouth opening.
const DefaultEnvelopeGain = 10.0

// Envelope computes the volume envelope of mono samples at
// [types.EnvelopeRate] Hz: one value per 20 ms window, each
// min(1, gain·rms(window)). The trailing partial window is dropped, except
// that a clip shorter than one window still yields a single value computed
// over the whole clip.
func Envelope(samples []float64, sampleRate int, gain float64) []float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}
	if gain <= 0 {
		gain = DefaultEnvelopeGain
	}

	window := sampleRate / types.EnvelopeRate
	if window <= 0 || len(samples) < window {
		return []float64{windowVolume(samples, gain)}
	}

	n := len(samples) / window
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = windowVolume(samples[i*window:(i+1)*window], gain)
	}
	return out
}

// windowVolume returns min(1, gain·rms) over one window.
func windowVolume(window []float64, gain float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(window)))
	return math.Min(1, gain*rms)
}

// Duration returns the clip duration in seconds for the given sample count
// and rate.
func Duration(sampleCount, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate)
}
