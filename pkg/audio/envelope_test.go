package audio

import (
	"math"
	"testing"
)

// constantSamples returns n samples of constant amplitude a.
func constantSamples(n int, a float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = a
	}
	return out
}

func TestEnvelope_LengthAndRange(t *testing.T) {
	t.Parallel()

	// 0.8 s at 16 kHz → exactly 40 windows of 320 samples.
	samples := constantSamples(12800, 0.05)
	env := Envelope(samples, 16000, DefaultEnvelopeGain)

	if len(env) != 40 {
		t.Fatalf("envelope length: want 40, got %d", len(env))
	}
	for i, v := range env {
		if v < 0 || v > 1 {
			t.Errorf("env[%d] = %f out of [0, 1]", i, v)
		}
	}
	// Constant 0.05 → rms 0.05 → gain 10 → 0.5.
	if math.Abs(env[0]-0.5) > 1e-9 {
		t.Errorf("env[0]: want 0.5, got %f", env[0])
	}
}

func TestEnvelope_Clamps(t *testing.T) {
	t.Parallel()

	// Full-scale input: 10·rms would exceed 1, must clamp.
	env := Envelope(constantSamples(640, 1.0), 16000, DefaultEnvelopeGain)
	for i, v := range env {
		if v != 1.0 {
			t.Errorf("env[%d]: want clamped 1.0, got %f", i, v)
		}
	}
}

func TestEnvelope_ShortClip(t *testing.T) {
	t.Parallel()

	// A clip shorter than one 20 ms window still yields one sample.
	env := Envelope(constantSamples(100, 0.02), 16000, DefaultEnvelopeGain)
	if len(env) != 1 {
		t.Fatalf("short clip envelope length: want 1, got %d", len(env))
	}
	if math.Abs(env[0]-0.2) > 1e-9 {
		t.Errorf("short clip volume: want 0.2, got %f", env[0])
	}
}

func TestEnvelope_DropsPartialTrailingWindow(t *testing.T) {
	t.Parallel()

	// 330 samples at 16 kHz: one full 320-sample window + 10 leftover.
	env := Envelope(constantSamples(330, 0.01), 16000, DefaultEnvelopeGain)
	if len(env) != 1 {
		t.Errorf("envelope length: want 1, got %d", len(env))
	}
}

func TestEnvelope_Empty(t *testing.T) {
	t.Parallel()

	if env := Envelope(nil, 16000, DefaultEnvelopeGain); env != nil {
		t.Errorf("empty input: want nil, got %v", env)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	if d := Duration(16000, 16000); d != 1.0 {
		t.Errorf("Duration: want 1.0, got %f", d)
	}
	if d := Duration(8000, 16000); d != 0.5 {
		t.Errorf("Duration: want 0.5, got %f", d)
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	src := make([]float32, 1600)
	for i := range src {
		src[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}
	wavBytes := SamplesToWAV(src, 16000)

	samples, rate, err := Decode(wavBytes, "wav")
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if rate != 16000 {
		t.Errorf("sample rate: want 16000, got %d", rate)
	}
	if len(samples) != len(src) {
		t.Fatalf("sample count: want %d, got %d", len(src), len(samples))
	}
	for i := 0; i < len(src); i += 100 {
		if math.Abs(samples[i]-float64(src[i])) > 1e-3 {
			t.Fatalf("sample %d: want %f, got %f", i, src[i], samples[i])
		}
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, _, err := Decode([]byte{1, 2, 3}, "flac")
	if err == nil {
		t.Fatal("Decode(flac): want error")
	}
}

func TestDownmixMono(t *testing.T) {
	t.Parallel()

	stereo := []float64{1, 0, 0.5, 0.5, -1, 1}
	mono := DownmixMono(stereo, 2)
	want := []float64{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("length: want %d, got %d", len(want), len(mono))
	}
	for i := range want {
		if math.Abs(mono[i]-want[i]) > 1e-12 {
			t.Errorf("mono[%d]: want %f, got %f", i, want[i], mono[i])
		}
	}
}
