package energy

import (
	"testing"
	"time"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/audio"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad"
)

// chunk builds 20 ms of constant-amplitude PCM at 16 kHz.
func chunk(amplitude int16) []byte {
	pcm := make([]int16, 320)
	for i := range pcm {
		pcm[i] = amplitude
	}
	return audio.Int16sToBytes(pcm)
}

var (
	loud  = chunk(8000) // ≈ -12 dBFS
	quiet = chunk(10)   // ≈ -70 dBFS
)

func newSession(t *testing.T, opts Options) vad.Session {
	t.Helper()
	s, err := New(opts).NewSession(vad.Config{SampleRate: 16000})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestSpeechEndsAfterSilenceTimeout(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{
		SilenceTimeout:    100 * time.Millisecond,
		MinSpeechDuration: 40 * time.Millisecond,
	})

	// 10 loud chunks (200 ms) → speaking.
	var ev vad.Event
	var err error
	for i := 0; i < 10; i++ {
		ev, err = s.Process(loud)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if ev.Type != vad.Speaking {
		t.Fatalf("after speech chunks: want Speaking, got %v", ev.Type)
	}

	// Silence until the 100 ms timeout elapses (5 × 20 ms chunks).
	for i := 0; i < 4; i++ {
		ev, _ = s.Process(quiet)
		if ev.Type == vad.SpeechEnded {
			break
		}
	}
	ev, _ = s.Process(quiet)
	if ev.Type != vad.SpeechEnded {
		t.Fatalf("after silence timeout: want SpeechEnded, got %v", ev.Type)
	}
	if len(ev.Utterance) == 0 {
		t.Fatal("SpeechEnded must carry the utterance buffer")
	}
}

func TestShortBlipDiscarded(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{
		SilenceTimeout:    40 * time.Millisecond,
		MinSpeechDuration: 300 * time.Millisecond,
	})

	// One 20 ms blip, then silence past the timeout.
	s.Process(loud)
	var ev vad.Event
	for i := 0; i < 5; i++ {
		ev, _ = s.Process(quiet)
	}
	if ev.Type != vad.Silence {
		t.Fatalf("short blip: want Silence, got %v", ev.Type)
	}
}

func TestFlushReturnsBufferedSpeech(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{MinSpeechDuration: 40 * time.Millisecond})

	for i := 0; i < 5; i++ {
		s.Process(loud)
	}
	ev := s.Flush()
	if ev.Type != vad.SpeechEnded {
		t.Fatalf("Flush: want SpeechEnded, got %v", ev.Type)
	}
	if len(ev.Utterance) == 0 {
		t.Fatal("Flush must carry the utterance buffer")
	}

	// A second flush has nothing buffered.
	if ev := s.Flush(); ev.Type != vad.Silence {
		t.Fatalf("second Flush: want Silence, got %v", ev.Type)
	}
}

func TestFlushOnSilenceOnly(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{})
	for i := 0; i < 10; i++ {
		s.Process(quiet)
	}
	if ev := s.Flush(); ev.Type != vad.Silence {
		t.Fatalf("Flush on silence: want Silence, got %v", ev.Type)
	}
}

func TestPreSpeechBufferPrepended(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{
		PreSpeechBuffer:   40 * time.Millisecond,
		MinSpeechDuration: 20 * time.Millisecond,
	})

	// Silence first fills the pre-speech ring, then speech starts.
	for i := 0; i < 5; i++ {
		s.Process(quiet)
	}
	for i := 0; i < 3; i++ {
		s.Process(loud)
	}
	ev := s.Flush()
	if ev.Type != vad.SpeechEnded {
		t.Fatalf("Flush: want SpeechEnded, got %v", ev.Type)
	}
	// 3 × 640 speech bytes + 2 × 640 pre-speech bytes (40 ms cap).
	want := 5 * 640
	if len(ev.Utterance) != want {
		t.Errorf("utterance size: want %d, got %d", want, len(ev.Utterance))
	}
}

func TestAdaptiveCalibrationRaisesThreshold(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{
		CalibrationDuration: 100 * time.Millisecond,
		AdaptiveMarginDB:    20,
		SpeechThresholdDB:   -60,
		MinSpeechDuration:   20 * time.Millisecond,
	})

	// Noisy ambient at ≈ -24 dBFS during calibration.
	ambient := chunk(2000)
	for i := 0; i < 5; i++ {
		s.Process(ambient)
	}

	// The same ambient level after calibration must not count as speech
	// (threshold is now ≈ -4 dBFS).
	sess := s.(*session)
	if sess.calibrating {
		t.Fatal("calibration should have completed after 100 ms of audio")
	}
	ev, _ := s.Process(ambient)
	if ev.Type != vad.Silence {
		t.Fatalf("ambient after calibration: want Silence, got %v", ev.Type)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{MinSpeechDuration: 20 * time.Millisecond})
	for i := 0; i < 3; i++ {
		s.Process(loud)
	}
	s.Reset()
	if ev := s.Flush(); ev.Type != vad.Silence {
		t.Fatalf("Flush after Reset: want Silence, got %v", ev.Type)
	}
}
