// Package energy implements an energy-threshold VAD engine.
//
// Classification is based on per-chunk RMS energy in dBFS with an optional
// adaptive noise-floor calibration window: during the first part of a
// session the engine measures ambient energy and raises the speech
// threshold a configured margin above it. A pre-speech ring buffer keeps
// the audio immediately before the detected onset so utterances are not
// clipped, and short blips below the minimum speech duration are discarded
// as noise.
//
// Timing is derived from sample counts, not the wall clock, so detection is
// deterministic for a given input stream.
package energy

import (
	"math"
	"time"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/audio"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad"
)

// Options tune the detector. The zero value selects the defaults noted per
// field.
type Options struct {
	// SpeechThresholdDB is the energy above which a chunk counts as speech.
	// Default -30 dBFS. Raised adaptively when calibration is enabled.
	SpeechThresholdDB float64

	// SilenceTimeout is how much consecutive sub-threshold audio ends an
	// utterance. Default 800 ms.
	SilenceTimeout time.Duration

	// MinSpeechDuration discards utterances shorter than this as noise.
	// Default 300 ms.
	MinSpeechDuration time.Duration

	// PreSpeechBuffer is how much audio before the detected onset is kept.
	// Default 300 ms.
	PreSpeechBuffer time.Duration

	// CalibrationDuration is the ambient-noise measurement window at
	// session start. Zero disables calibration.
	CalibrationDuration time.Duration

	// AdaptiveMarginDB is how far above the measured noise floor the
	// speech threshold is placed. Default 10 dB.
	AdaptiveMarginDB float64
}

// withDefaults fills zero fields with the package defaults.
func (o Options) withDefaults() Options {
	if o.SpeechThresholdDB == 0 {
		o.SpeechThresholdDB = -30
	}
	if o.SilenceTimeout == 0 {
		o.SilenceTimeout = 800 * time.Millisecond
	}
	if o.MinSpeechDuration == 0 {
		o.MinSpeechDuration = 300 * time.Millisecond
	}
	if o.PreSpeechBuffer == 0 {
		o.PreSpeechBuffer = 300 * time.Millisecond
	}
	if o.AdaptiveMarginDB == 0 {
		o.AdaptiveMarginDB = 10
	}
	return o
}

// Engine implements vad.Engine.
type Engine struct {
	opts Options
}

var _ vad.Engine = (*Engine)(nil)

// New creates an Engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = 16000
	}
	s := &session{
		opts:       e.opts,
		sampleRate: sr,
	}
	s.Reset()
	return s, nil
}

// session holds per-stream detection state. Not safe for concurrent use.
type session struct {
	opts       Options
	sampleRate int

	inSpeech      bool
	speechBuf     []byte // utterance being captured
	preSpeech     []byte // ring of audio preceding onset
	speechSamples int    // samples captured while in speech
	silenceMs     float64

	calibrating    bool
	calibSamples   int
	calibReadings  []float64
	threshold      float64
	closed         bool
}

var _ vad.Session = (*session)(nil)

// Process implements vad.Session.
func (s *session) Process(chunk []byte) (vad.Event, error) {
	if s.closed || len(chunk) < 2 {
		return vad.Event{Type: s.stateType()}, nil
	}

	samples := audio.BytesToFloat32(chunk)
	energyDB := energyDB(samples)
	chunkMs := 1000 * float64(len(samples)) / float64(s.sampleRate)

	// During calibration all audio is assumed to be ambient noise; keep it
	// in the pre-speech ring so an early onset is not lost entirely.
	if s.calibrating {
		s.calibrate(energyDB, len(samples))
		s.appendPreSpeech(chunk)
		return vad.Event{Type: vad.Silence}, nil
	}

	if energyDB >= s.threshold {
		return s.handleSpeech(chunk, len(samples)), nil
	}
	return s.handleSilence(chunk, chunkMs), nil
}

// Flush implements vad.Session.
func (s *session) Flush() vad.Event {
	if !s.inSpeech || !s.longEnough() {
		s.Reset()
		return vad.Event{Type: vad.Silence}
	}
	utt := s.speechBuf
	s.Reset()
	return vad.Event{Type: vad.SpeechEnded, Utterance: utt}
}

// Reset implements vad.Session.
func (s *session) Reset() {
	s.inSpeech = false
	s.speechBuf = nil
	s.preSpeech = nil
	s.speechSamples = 0
	s.silenceMs = 0
	s.calibrating = s.opts.CalibrationDuration > 0
	s.calibSamples = 0
	s.calibReadings = nil
	s.threshold = s.opts.SpeechThresholdDB
}

// Close implements vad.Session.
func (s *session) Close() error {
	s.closed = true
	s.speechBuf = nil
	s.preSpeech = nil
	return nil
}

func (s *session) stateType() vad.EventType {
	if s.inSpeech {
		return vad.Speaking
	}
	return vad.Silence
}

// handleSpeech extends (or starts) the current utterance.
func (s *session) handleSpeech(chunk []byte, sampleCount int) vad.Event {
	if !s.inSpeech {
		s.inSpeech = true
		s.speechBuf = append(s.speechBuf, s.preSpeech...)
		s.preSpeech = nil
	}
	s.silenceMs = 0
	s.speechSamples += sampleCount
	s.speechBuf = append(s.speechBuf, chunk...)
	return vad.Event{Type: vad.Speaking}
}

// handleSilence accumulates trailing silence and closes the utterance when
// the timeout elapses.
func (s *session) handleSilence(chunk []byte, chunkMs float64) vad.Event {
	if !s.inSpeech {
		s.appendPreSpeech(chunk)
		return vad.Event{Type: vad.Silence}
	}

	// Keep the pause inside the utterance; it may be a mid-sentence gap.
	s.speechBuf = append(s.speechBuf, chunk...)
	s.silenceMs += chunkMs
	if s.silenceMs < float64(s.opts.SilenceTimeout.Milliseconds()) {
		return vad.Event{Type: vad.Speaking}
	}

	if !s.longEnough() {
		// Too short to be speech; treat as noise.
		s.Reset()
		return vad.Event{Type: vad.Silence}
	}
	utt := s.speechBuf
	s.Reset()
	return vad.Event{Type: vad.SpeechEnded, Utterance: utt}
}

// appendPreSpeech keeps the most recent PreSpeechBuffer worth of audio.
func (s *session) appendPreSpeech(chunk []byte) {
	maxBytes := 2 * int(s.opts.PreSpeechBuffer.Seconds()*float64(s.sampleRate))
	s.preSpeech = append(s.preSpeech, chunk...)
	if len(s.preSpeech) > maxBytes {
		s.preSpeech = s.preSpeech[len(s.preSpeech)-maxBytes:]
	}
}

// longEnough reports whether the captured speech exceeds MinSpeechDuration.
func (s *session) longEnough() bool {
	minSamples := int(s.opts.MinSpeechDuration.Seconds() * float64(s.sampleRate))
	return s.speechSamples >= minSamples
}

// calibrate collects energy readings during the calibration window, then
// computes the noise floor and raises the speech threshold above it.
func (s *session) calibrate(energyDB float64, sampleCount int) {
	s.calibReadings = append(s.calibReadings, energyDB)
	s.calibSamples += sampleCount

	window := int(s.opts.CalibrationDuration.Seconds() * float64(s.sampleRate))
	if s.calibSamples < window {
		return
	}

	var sum float64
	for _, r := range s.calibReadings {
		sum += r
	}
	floor := sum / float64(len(s.calibReadings))
	adaptive := floor + s.opts.AdaptiveMarginDB
	if adaptive > s.threshold {
		s.threshold = adaptive
	}
	s.calibrating = false
	s.calibReadings = nil
}

// energyDB returns the RMS energy of samples in dBFS.
func energyDB(samples []float32) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
