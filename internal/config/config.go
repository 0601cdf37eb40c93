// Package config provides the configuration schema, loader, and provider
// registry for the Anima conversation server.
package config

import "log/slog"

// Config is the root configuration structure for Anima.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Services  ServicesConfig  `yaml:"services"`
	Providers ProvidersConfig `yaml:"providers"`
	Persona   PersonaConfig   `yaml:"persona"`
	Emotion   EmotionConfig   `yaml:"emotion"`
	Turn      TurnConfig      `yaml:"turn"`
}

// LogLevel controls logging verbosity.
type LogLevel string

// IsValid reports whether the level is one of debug, info, warn, error.
func (l LogLevel) IsValid() bool {
	switch l {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Level maps the config value onto a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
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

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// ServicesConfig selects which registered provider serves each pipeline
// stage. Each field names a provider under the matching providers.<kind>
// block.
type ServicesConfig struct {
	ASR   string `yaml:"asr"`
	TTS   string `yaml:"tts"`
	Agent string `yaml:"agent"`
	VAD   string `yaml:"vad"`
}

// ProvidersConfig carries the per-provider option blocks, keyed by provider
// name within each kind.
type ProvidersConfig struct {
	LLM map[string]ProviderEntry `yaml:"llm"`
	ASR map[string]ProviderEntry `yaml:"asr"`
	TTS map[string]ProviderEntry `yaml:"tts"`
	VAD map[string]ProviderEntry `yaml:"vad"`
}

// ForKind returns the option-block map for the given provider kind.
func (p ProvidersConfig) ForKind(kind Kind) map[string]ProviderEntry {
	switch kind {
	case KindLLM:
		return p.LLM
	case KindASR:
		return p.ASR
	case KindTTS:
		return p.TTS
	case KindVAD:
		return p.VAD
	default:
		return nil
	}
}

// ProviderEntry is the common configuration block shared by all provider
// types. The standard fields cover what nearly every backend needs; Options
// holds the remainder, validated against the [Schema] declared at
// registration time.
type ProviderEntry struct {
	// Name selects the registered provider implementation. Filled from the
	// map key by the loader.
	Name string `yaml:"-"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "tts-1", "ggml-base.en.bin").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// PersonaConfig is the immutable persona applied to every LLM call.
type PersonaConfig struct {
	// SystemPrompt is passed verbatim as the system instruction.
	SystemPrompt string `yaml:"system_prompt"`
}

// EmotionConfig tunes the expression processor.
type EmotionConfig struct {
	// Analyzer selects the emotion analyzer: "tag" or "keyword".
	Analyzer string `yaml:"analyzer"`

	// AnalyzerMode tunes the tag analyzer: "first", "frequency", or
	// "majority". Ignored by the keyword analyzer.
	AnalyzerMode string `yaml:"analyzer_mode"`

	// Strategy selects the timeline strategy: "position", "duration", or
	// "intensity".
	Strategy string `yaml:"strategy"`

	// ValidEmotions is the closed set of emotions recognized in bracket
	// tags. Unknown bracketed words stay in the text as literals.
	ValidEmotions []string `yaml:"valid_emotions"`

	// MinDuration is the minimum timeline segment length in seconds
	// (duration/intensity strategies).
	MinDuration float64 `yaml:"min_duration"`

	// Weights overrides the per-emotion weight used by the duration and
	// intensity strategies. Default weight is 1.0.
	Weights map[string]float64 `yaml:"weights"`

	// Transition is the smoothing overlap in seconds applied at segment
	// boundaries by the position strategy. Zero disables smoothing.
	Transition float64 `yaml:"transition"`

	// EnvelopeGain scales the RMS volume envelope. Zero selects the
	// default gain of 10.
	EnvelopeGain float64 `yaml:"envelope_gain"`
}

// TurnConfig bounds a single conversation turn.
type TurnConfig struct {
	// TimeoutSeconds is the wall-clock budget for one turn. Zero selects
	// the default of 120 seconds.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultValidEmotions is used when emotion.valid_emotions is not
// configured.
var DefaultValidEmotions = []string{
	"neutral", "happy", "sad", "angry", "surprised", "thinking", "fear", "disgust",
}
