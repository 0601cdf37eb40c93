// Package audio provides the PCM plumbing shared by the input pipeline and
// the expression processor: int16/float conversions, WAV encoding for ASR
// uploads, decoding of synthesized clips (WAV, MP3, Ogg/WebM Opus), and the
// 50 Hz RMS volume envelope that drives avatar lipsync.
package audio

import "math"

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
// A trailing odd byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Int16sToFloat32 scales int16 PCM samples to float32 in [-1, 1].
func Int16sToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// BytesToFloat32 converts little-endian int16 PCM bytes to float32 samples
// in [-1, 1].
func BytesToFloat32(b []byte) []float32 {
	return Int16sToFloat32(BytesToInt16s(b))
}

// DownmixMono averages interleaved multi-channel float64 samples into mono.
// channels must be ≥ 1; input length not divisible by channels drops the
// trailing partial frame.
func DownmixMono(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// clamp limits v to [-1, 1].
func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
