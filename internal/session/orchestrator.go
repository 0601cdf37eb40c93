package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/bus"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/expression"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/observe"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/pipeline"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/audio"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// DefaultTurnTimeout bounds one turn when turn.timeout_seconds is not
// configured.
const DefaultTurnTimeout = 120 * time.Second

// Config carries everything an Orchestrator needs. Providers and the
// expression processor are shared across sessions; the VAD session is per
// session.
type Config struct {
	// SID is the session identifier assigned at connection time.
	SID string

	// Persona is the immutable system prompt applied to every LLM call.
	Persona string

	// ASR recognizes captured utterances. Nil disables speech input.
	ASR asr.Provider

	// ASRName labels the recognizer in metadata and logs.
	ASRName string

	// LLM generates replies. Required.
	LLM llm.Provider

	// TTS synthesizes sentences. Required.
	TTS tts.Provider

	// VAD is this session's voice-activity session. Nil disables
	// microphone input.
	VAD vad.Session

	// Processor bundles the expression analysis configuration.
	Processor *expression.Processor

	// Emotions is the closed tag vocabulary.
	Emotions expression.TagSet

	// TurnTimeout is the per-turn wall-clock budget. Zero selects
	// [DefaultTurnTimeout].
	TurnTimeout time.Duration

	// Logger receives this session's log records. Nil selects the default
	// logger.
	Logger *slog.Logger

	// LevelVar, when set, is adjusted by set_log_level frames.
	LevelVar *slog.LevelVar

	// Metrics records turn and interrupt telemetry. Nil disables.
	Metrics *observe.Metrics
}

// Orchestrator owns one session's conversation: the state machine, the
// chat log, the per-turn pipelines, and the event bus its handlers hang
// off. All exported methods are safe for concurrent use; state transitions
// and chat-log mutations are serialized under one mutex while provider
// work runs on per-turn goroutines.
type Orchestrator struct {
	cfg       Config
	bus       *bus.Bus
	logger    *slog.Logger
	inputPipe *pipeline.Pipeline

	baseCtx context.Context
	close   context.CancelFunc

	mu          sync.Mutex
	state       State
	history     []types.ChatMessage
	current     *Turn
	turnCounter int64

	// emitMu serializes all bus emissions of this session so handlers run
	// one at a time regardless of which goroutine produced the event.
	emitMu sync.Mutex

	wg sync.WaitGroup
}

// New creates an Orchestrator in the idle state with an empty chat log and
// its own event bus.
func New(cfg Config) *Orchestrator {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("sid", cfg.SID)

	baseCtx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		cfg:     cfg,
		bus:     bus.New(logger),
		logger:  logger,
		baseCtx: baseCtx,
		close:   cancel,
		state:   StateIdle,
	}
	o.inputPipe = pipeline.New(logger,
		pipeline.NewASRStep(cfg.ASR, cfg.ASRName),
		pipeline.NormalizeStep{},
		pipeline.NewTagExtractStep(cfg.Emotions),
	)
	return o
}

// Bus returns the session's event bus for handler registration.
func (o *Orchestrator) Bus() *bus.Bus { return o.bus }

// State returns the current conversation state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns a copy of the in-memory chat log.
func (o *Orchestrator) History() []types.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.ChatMessage, len(o.history))
	copy(out, o.history)
	return out
}

// SubmitText begins a turn from typed input. A live turn is cancelled
// first.
func (o *Orchestrator) SubmitText(text, fromName string) {
	pc := pipeline.NewTextContext(text)
	o.beginTurn(pc, fromName, false)
}

// FeedAudio routes one chunk of little-endian int16 microphone PCM through
// the VAD. The first chunk while idle opens the listening state; a
// detected utterance end begins a turn. Audio arriving while a turn is
// live is dropped — barge-in is explicit via Interrupt.
func (o *Orchestrator) FeedAudio(chunk []byte) {
	o.mu.Lock()
	if o.cfg.VAD == nil {
		o.mu.Unlock()
		return
	}
	if o.state == StateIdle || o.state == StateError {
		o.state = StateListening
		o.logger.Debug("listening")
	}
	if o.state != StateListening {
		o.mu.Unlock()
		return
	}
	vadSess := o.cfg.VAD
	o.mu.Unlock()

	ev, err := vadSess.Process(chunk)
	if err != nil {
		o.logger.Warn("vad processing failed", "err", err)
		return
	}
	if ev.Type == vad.SpeechEnded {
		o.onUtterance(ev.Utterance)
	}
}

// EndMic force-closes the current utterance capture (mic_audio_end frame).
// Captured speech begins a turn; silence answers with a no-audio-data
// control and returns to idle.
func (o *Orchestrator) EndMic() {
	o.mu.Lock()
	if o.cfg.VAD == nil || o.state != StateListening {
		o.mu.Unlock()
		return
	}
	vadSess := o.cfg.VAD
	o.mu.Unlock()

	ev := vadSess.Flush()
	if ev.Type == vad.SpeechEnded && len(ev.Utterance) > 0 {
		o.onUtterance(ev.Utterance)
		return
	}

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
	vadSess.Reset()
	o.emitDirect(types.NewControlEvent(types.SignalNoAudioData))
}

// onUtterance begins a turn from a completed VAD utterance.
func (o *Orchestrator) onUtterance(utterance []byte) {
	samples := audio.BytesToFloat32(utterance)
	pc := pipeline.NewAudioContext(samples)
	o.beginTurn(pc, "", true)
}

// Interrupt handles a barge-in: the live turn's token is signalled, its
// partial reply is committed to the chat log, an interrupted control event
// is emitted, and the state returns to idle. Without a live turn it is a
// no-op.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	t := o.current
	if t == nil || t.Cancelled() {
		o.mu.Unlock()
		return
	}
	t.Cancel()
	if t.finishOnce() {
		o.appendAssistantLocked(t.Text())
	}
	o.state = StateIdle
	o.mu.Unlock()

	o.logger.Info("turn interrupted", "turn_id", t.ID)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.AddInterrupt(o.baseCtx)
	}
	o.emitDirect(types.NewControlEvent(types.SignalInterrupted))
}

// ClearHistory empties the session chat log. A subsequent turn behaves
// exactly like the first turn of a fresh session.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
}

// SetLogLevel adjusts this session's log verbosity.
func (o *Orchestrator) SetLogLevel(level string) {
	if o.cfg.LevelVar == nil {
		return
	}
	l := parseLogLevel(level)
	o.cfg.LevelVar.Set(l)
	o.logger.Info("log level changed", "level", level)
}

// Close cancels the live turn, waits for turn goroutines to finish, and
// clears the bus. Called on client disconnect.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if t := o.current; t != nil {
		t.Cancel()
		if t.finishOnce() {
			o.appendAssistantLocked(t.Text())
		}
	}
	o.mu.Unlock()

	o.close()
	o.wg.Wait()
	if o.cfg.VAD != nil {
		_ = o.cfg.VAD.Close()
	}
	o.bus.Clear()
}

// ─── Turn lifecycle ──────────────────────────────────────────────────────────

// beginTurn cancels any live turn, allocates the next turn, and runs it on
// its own goroutine.
func (o *Orchestrator) beginTurn(pc *pipeline.Context, fromName string, isAudio bool) {
	o.mu.Lock()
	if prev := o.current; prev != nil && !prev.Cancelled() && o.stateIsLiveLocked() {
		prev.Cancel()
		if prev.finishOnce() {
			o.appendAssistantLocked(prev.Text())
		}
		o.logger.Debug("live turn cancelled by new input", "turn_id", prev.ID)
	}
	o.turnCounter++
	t := newTurn(o.baseCtx, o.turnCounter, o.cfg.TurnTimeout)
	o.current = t
	o.state = StateProcessing
	o.mu.Unlock()

	if o.cfg.Metrics != nil {
		o.cfg.Metrics.AddTurn(o.baseCtx)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runTurn(t, pc, fromName, isAudio)
	}()
}

// stateIsLiveLocked reports whether a turn is mid-flight. Caller holds mu.
func (o *Orchestrator) stateIsLiveLocked() bool {
	return o.state == StateProcessing || o.state == StateSpeaking
}

// runTurn executes one full turn: input pipeline → agent stream → output
// pipeline → closing control event.
func (o *Orchestrator) runTurn(t *Turn, pc *pipeline.Context, fromName string, isAudio bool) {
	defer t.Cancel() // release the timeout timer
	started := time.Now()

	o.inputPipe.Run(t.Context(), pc)

	switch {
	case pc.Err != nil:
		o.failTurn(t, pc.Err)
		return
	case pc.SkipRemaining:
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
		o.emitDirect(types.NewControlEvent(types.SignalNoAudioData))
		return
	}

	emit := o.emitFor(t)

	if isAudio {
		emit(types.NewTranscriptEvent(pc.Text(), true))
	}

	o.mu.Lock()
	o.history = append(o.history, types.ChatMessage{
		Role: types.RoleUser, Name: fromName, Text: pc.Text(), Timestamp: time.Now(),
	})
	req := llm.ChatRequest{
		SystemPrompt: o.cfg.Persona,
		Messages:     historyToMessages(o.history),
	}
	o.mu.Unlock()

	chunks, err := o.cfg.LLM.ChatStream(t.Context(), req)
	if err != nil {
		o.failTurn(t, err)
		return
	}

	llmErr := runOutput(t, chunks, outputDeps{
		tts:       o.cfg.TTS,
		processor: o.cfg.Processor,
		emotions:  o.cfg.Emotions,
		logger:    o.logger,
	}, emit)

	o.finishTurn(t, llmErr, started)
}

// finishTurn closes out a turn after its output pipeline drained.
func (o *Orchestrator) finishTurn(t *Turn, llmErr error, started time.Time) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.RecordTurnDuration(o.baseCtx, time.Since(started).Seconds())
	}

	if t.Cancelled() {
		// Interrupt and disconnect were already handled where they
		// happened; only the turn timeout surfaces here.
		if errors.Is(t.Context().Err(), context.DeadlineExceeded) {
			o.logger.Warn("turn timed out", "turn_id", t.ID)
			o.mu.Lock()
			if t.finishOnce() {
				o.appendAssistantLocked(t.Text())
			}
			if o.current == t {
				o.state = StateIdle
			}
			o.mu.Unlock()
			o.emitDirect(types.NewErrorEvent(types.KindTurnTimeout, "turn exceeded its time budget"))
		}
		return
	}

	o.mu.Lock()
	if t.finishOnce() {
		o.appendAssistantLocked(t.Text())
	}
	o.mu.Unlock()

	if llmErr != nil {
		o.failTurn(t, llmErr)
		return
	}

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
	o.emitFor(t)(types.NewControlEvent(types.SignalConversationEnd))
}

// failTurn surfaces a provider failure: the session enters the error state,
// an error event is emitted, and the session returns to idle, ready to
// accept the next input.
func (o *Orchestrator) failTurn(t *Turn, err error) {
	// A replaced or interrupted turn fails with a cancelled context; that
	// path already produced its own signal.
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = types.Wrap(types.KindTurnTimeout, "turn exceeded its time budget", err)
	}
	o.logger.Error("turn failed", "turn_id", t.ID, "err", err)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.AddProviderError(o.baseCtx, string(types.KindOf(err)))
	}

	o.mu.Lock()
	o.state = StateError
	o.mu.Unlock()

	kind := types.KindOf(err)
	if kind == "" {
		kind = types.KindLLMUnavailable
	}
	o.emitDirect(types.NewErrorEvent(kind, err.Error()))

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// ─── Emission ────────────────────────────────────────────────────────────────

// emitFor returns the emit function for one turn: events are serialized,
// suppressed once the turn is cancelled, and the first event flips the
// state from processing to speaking.
func (o *Orchestrator) emitFor(t *Turn) func(types.OutputEvent) {
	return func(ev types.OutputEvent) {
		if t.Cancelled() {
			return
		}
		o.emitMu.Lock()
		defer o.emitMu.Unlock()
		if t.Cancelled() {
			return
		}

		o.mu.Lock()
		if o.state == StateProcessing {
			o.state = StateSpeaking
		}
		o.mu.Unlock()

		o.bus.Emit(ev)
	}
}

// emitDirect emits an event that must not be suppressed by turn
// cancellation (interrupted, no-audio-data, turn_timeout, provider
// errors).
func (o *Orchestrator) emitDirect(ev types.OutputEvent) {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	o.bus.Emit(ev)
}

// appendAssistantLocked writes the assistant's (possibly truncated) reply
// to the chat log. Caller holds mu. Empty replies are not logged.
func (o *Orchestrator) appendAssistantLocked(text string) {
	if text == "" {
		return
	}
	o.history = append(o.history, types.ChatMessage{
		Role: types.RoleAssistant, Text: text, Timestamp: time.Now(),
	})
}

// historyToMessages converts the chat log into the LLM request shape.
func historyToMessages(history []types.ChatMessage) []llm.Message {
	out := make([]llm.Message, len(history))
	for i, m := range history {
		out[i] = llm.Message{Role: string(m.Role), Content: m.Text, Name: m.Name}
	}
	return out
}

// parseLogLevel maps a set_log_level frame value onto a slog level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
