package main

import (
	"fmt"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/config"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/server"
	asropenai "github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr/openai"
	asrwhisper "github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr/whisper"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm/anyllm"
	llmopenai "github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm/openai"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts/openai"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad/energy"
)

// anyllmBackends lists the LLM backends reachable through any-llm-go.
// OpenAI gets its own native adapter below.
var anyllmBackends = []string{
	"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders binds every provider implementation that ships
// with Anima. Out-of-tree providers register here too before Seal.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ──────────────────────────────────────────────────────────────
	reg.Register(config.KindLLM, "openai",
		config.Schema{"timeout_seconds": config.TypeInt},
		func(e config.ProviderEntry) (any, error) {
			opts := []llmopenai.Option{}
			if e.BaseURL != "" {
				opts = append(opts, llmopenai.WithBaseURL(e.BaseURL))
			}
			if t := config.IntOption(e, "timeout_seconds", 0); t > 0 {
				opts = append(opts, llmopenai.WithTimeout(time.Duration(t)*time.Second))
			}
			return llmopenai.New(e.APIKey, e.Model, opts...)
		})

	for _, backend := range anyllmBackends {
		reg.Register(config.KindLLM, backend, config.Schema{},
			func(e config.ProviderEntry) (any, error) {
				var opts []anyllmlib.Option
				if e.APIKey != "" {
					opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
				}
				if e.BaseURL != "" {
					opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
				}
				return anyllm.New(backend, e.Model, opts...)
			})
	}

	// ── ASR ──────────────────────────────────────────────────────────────
	reg.Register(config.KindASR, "openai",
		config.Schema{"timeout_seconds": config.TypeInt},
		func(e config.ProviderEntry) (any, error) {
			opts := []asropenai.Option{}
			if e.BaseURL != "" {
				opts = append(opts, asropenai.WithBaseURL(e.BaseURL))
			}
			if e.Model != "" {
				opts = append(opts, asropenai.WithModel(e.Model))
			}
			if t := config.IntOption(e, "timeout_seconds", 0); t > 0 {
				opts = append(opts, asropenai.WithTimeout(time.Duration(t)*time.Second))
			}
			return asropenai.New(e.APIKey, opts...)
		})

	reg.Register(config.KindASR, "whisper",
		config.Schema{"language": config.TypeString},
		func(e config.ProviderEntry) (any, error) {
			opts := []asrwhisper.Option{}
			if lang := config.StringOption(e, "language", ""); lang != "" {
				opts = append(opts, asrwhisper.WithLanguage(lang))
			}
			// Model carries the ggml model file path for the native engine.
			return asrwhisper.New(e.Model, opts...)
		})

	// ── TTS ──────────────────────────────────────────────────────────────
	reg.Register(config.KindTTS, "openai",
		config.Schema{"voice": config.TypeString, "speed": config.TypeFloat},
		func(e config.ProviderEntry) (any, error) {
			opts := []ttsopenai.Option{}
			if e.BaseURL != "" {
				opts = append(opts, ttsopenai.WithBaseURL(e.BaseURL))
			}
			if e.Model != "" {
				opts = append(opts, ttsopenai.WithModel(e.Model))
			}
			if v := config.StringOption(e, "voice", ""); v != "" {
				opts = append(opts, ttsopenai.WithVoice(v))
			}
			if s := config.FloatOption(e, "speed", 0); s > 0 {
				opts = append(opts, ttsopenai.WithSpeed(s))
			}
			return ttsopenai.New(e.APIKey, opts...)
		})

	reg.Register(config.KindTTS, "elevenlabs",
		config.Schema{"voice_id": config.TypeString, "output_format": config.TypeString},
		func(e config.ProviderEntry) (any, error) {
			opts := []elevenlabs.Option{}
			if e.Model != "" {
				opts = append(opts, elevenlabs.WithModel(e.Model))
			}
			if f := config.StringOption(e, "output_format", ""); f != "" {
				opts = append(opts, elevenlabs.WithOutputFormat(f))
			}
			return elevenlabs.New(e.APIKey, config.StringOption(e, "voice_id", ""), opts...)
		})

	// ── VAD ──────────────────────────────────────────────────────────────
	reg.Register(config.KindVAD, "energy",
		config.Schema{
			"speech_threshold_db": config.TypeFloat,
			"silence_timeout_ms":  config.TypeInt,
			"min_speech_ms":       config.TypeInt,
			"pre_speech_ms":       config.TypeInt,
			"calibration_ms":      config.TypeInt,
			"adaptive_margin_db":  config.TypeFloat,
		},
		func(e config.ProviderEntry) (any, error) {
			return energy.New(energy.Options{
				SpeechThresholdDB:   config.FloatOption(e, "speech_threshold_db", 0),
				SilenceTimeout:      time.Duration(config.IntOption(e, "silence_timeout_ms", 0)) * time.Millisecond,
				MinSpeechDuration:   time.Duration(config.IntOption(e, "min_speech_ms", 0)) * time.Millisecond,
				PreSpeechBuffer:     time.Duration(config.IntOption(e, "pre_speech_ms", 0)) * time.Millisecond,
				CalibrationDuration: time.Duration(config.IntOption(e, "calibration_ms", 0)) * time.Millisecond,
				AdaptiveMarginDB:    config.FloatOption(e, "adaptive_margin_db", 0),
			}), nil
		})
}

// buildProviders instantiates the providers selected by services.* using
// the registry and returns them for the session manager.
func buildProviders(cfg *config.Config, reg *config.Registry) (server.Providers, error) {
	ps := server.Providers{}

	if name := cfg.Services.Agent; name != "" {
		p, err := reg.BuildLLM(cfg.Providers.LLM[name])
		if err != nil {
			return ps, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
	}
	if name := cfg.Services.ASR; name != "" {
		p, err := reg.BuildASR(cfg.Providers.ASR[name])
		if err != nil {
			return ps, fmt.Errorf("create asr provider %q: %w", name, err)
		}
		ps.ASR = p
		ps.ASRName = name
	}
	if name := cfg.Services.TTS; name != "" {
		p, err := reg.BuildTTS(cfg.Providers.TTS[name])
		if err != nil {
			return ps, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
	}
	if name := cfg.Services.VAD; name != "" {
		p, err := reg.BuildVAD(cfg.Providers.VAD[name])
		if err != nil {
			return ps, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
	}

	return ps, nil
}
