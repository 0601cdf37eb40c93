package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/bus"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/config"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/expression"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/handler"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/observe"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/session"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/audio"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Providers holds the shared provider instances built from the registry.
// Nil slots disable the corresponding capability.
type Providers struct {
	ASR     asr.Provider
	ASRName string
	LLM     llm.Provider
	TTS     tts.Provider
	VAD     vad.Engine
}

// clientSession pairs one connected client with its orchestrator.
type clientSession struct {
	sid  string
	orch *session.Orchestrator
	subs []bus.Subscription
}

// Manager owns the session table: one orchestrator per connected client.
// All exported methods are safe for concurrent use.
type Manager struct {
	cfg       *config.Config
	providers Providers
	processor *expression.Processor
	emotions  expression.TagSet
	metrics   *observe.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*clientSession
}

// NewManager creates a Manager. The expression analyzer and timeline
// strategy are built once from cfg and shared by every session.
func NewManager(cfg *config.Config, providers Providers, metrics *observe.Metrics, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	analyzer, err := expression.NewAnalyzer(cfg.Emotion.Analyzer, expression.TagMode(cfg.Emotion.AnalyzerMode))
	if err != nil {
		return nil, err
	}
	strategy, err := expression.NewStrategy(cfg.Emotion.Strategy, expression.StrategyConfig{
		MinDuration: cfg.Emotion.MinDuration,
		Weights:     cfg.Emotion.Weights,
		Transition:  cfg.Emotion.Transition,
	})
	if err != nil {
		return nil, err
	}

	emotions := cfg.Emotion.ValidEmotions
	if len(emotions) == 0 {
		emotions = config.DefaultValidEmotions
	}

	return &Manager{
		cfg:       cfg,
		providers: providers,
		processor: expression.NewProcessor(analyzer, strategy, cfg.Emotion.EnvelopeGain),
		emotions:  expression.NewTagSet(emotions),
		metrics:   metrics,
		logger:    logger,
		sessions:  make(map[string]*clientSession),
	}, nil
}

// Connect allocates a session id, constructs the orchestrator with the
// shared providers plus a fresh per-session VAD session, registers the
// built-in output handlers on its bus, and greets the client. send is the
// transport's outbound callback.
func (m *Manager) Connect(send handler.SendFunc) (string, error) {
	sid := uuid.NewString()

	levelVar := new(slog.LevelVar)
	levelVar.Set(m.cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))

	var vadSess vad.Session
	if m.providers.VAD != nil {
		var err error
		vadSess, err = m.providers.VAD.NewSession(vad.Config{SampleRate: types.SampleRate})
		if err != nil {
			return "", fmt.Errorf("server: create vad session: %w", err)
		}
	}

	orch := session.New(session.Config{
		SID:         sid,
		Persona:     m.cfg.Persona.SystemPrompt,
		ASR:         m.providers.ASR,
		ASRName:     m.providers.ASRName,
		LLM:         m.providers.LLM,
		TTS:         m.providers.TTS,
		VAD:         vadSess,
		Processor:   m.processor,
		Emotions:    m.emotions,
		TurnTimeout: time.Duration(m.cfg.Turn.TimeoutSeconds) * time.Second,
		Logger:      logger,
		LevelVar:    levelVar,
		Metrics:     m.metrics,
	})

	subs := handler.RegisterAll(orch.Bus(), send)

	m.mu.Lock()
	m.sessions[sid] = &clientSession{sid: sid, orch: orch, subs: subs}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionOpened(context.Background())
	}
	m.logger.Info("session connected", "sid", sid)

	if err := send(handler.ConnectionFrame{
		Type:    "connection-established",
		SID:     sid,
		Message: "connected",
	}); err != nil {
		m.Disconnect(sid)
		return "", fmt.Errorf("server: greet client: %w", err)
	}
	return sid, nil
}

// Disconnect cancels the session's live turn, unsubscribes its handlers,
// clears its bus, and drops it from the table. Unknown sids are a no-op.
func (m *Manager) Disconnect(sid string) {
	m.mu.Lock()
	cs, ok := m.sessions[sid]
	if ok {
		delete(m.sessions, sid)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	for _, sub := range cs.subs {
		cs.orch.Bus().Unsubscribe(sub)
	}
	cs.orch.Close()

	if m.metrics != nil {
		m.metrics.SessionClosed(context.Background())
	}
	m.logger.Info("session disconnected", "sid", sid)
}

// HandleFrame demultiplexes one inbound frame into the session's
// orchestrator. Unknown frame types are logged and dropped.
func (m *Manager) HandleFrame(sid string, data []byte) error {
	m.mu.Lock()
	cs, ok := m.sessions[sid]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("server: unknown session %q", sid)
	}

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("server: decode frame: %w", err)
	}

	switch frame.Type {
	case frameTextInput:
		cs.orch.SubmitText(frame.Text, frame.FromName)
	case frameRawAudioData:
		cs.orch.FeedAudio(audio.Int16sToBytes(frame.Audio))
	case frameMicAudioEnd:
		cs.orch.EndMic()
	case frameInterruptSignal:
		cs.orch.Interrupt()
	case frameClearHistory:
		cs.orch.ClearHistory()
	case frameSetLogLevel:
		cs.orch.SetLogLevel(frame.Level)
	default:
		m.logger.Warn("dropping unknown frame type", "sid", sid, "type", frame.Type)
	}
	return nil
}

// SessionCount returns the number of connected sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll disconnects every session concurrently. Called on server
// shutdown, where waiting for sessions one at a time would stack their
// teardown latencies.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sids := make([]string, 0, len(m.sessions))
	for sid := range m.sessions {
		sids = append(sids, sid)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, sid := range sids {
		g.Go(func() error {
			m.Disconnect(sid)
			return nil
		})
	}
	_ = g.Wait()
}
