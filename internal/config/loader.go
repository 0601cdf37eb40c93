package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// envRefPattern matches ${VAR} references inside string values.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Environment references of the form ${VAR} inside string values
// are expanded; a reference to an unset variable fails with the
// config_missing_env error kind.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	expanded, err := ExpandEnv(string(raw))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, types.Wrap(types.KindConfigInvalid, "decode yaml", err)
	}

	// Propagate map keys into entry names.
	for _, entries := range []map[string]ProviderEntry{
		cfg.Providers.LLM, cfg.Providers.ASR, cfg.Providers.TTS, cfg.Providers.VAD,
	} {
		for name, e := range entries {
			e.Name = name
			entries[name] = e
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces every ${VAR} reference in s with the value of the
// environment variable VAR. A reference to an unset variable yields a
// config_missing_env error naming the variable.
func ExpandEnv(s string) (string, error) {
	var missing []string
	out := envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return val
	})
	if len(missing) > 0 {
		return "", types.E(types.KindConfigMissingEnv, "unset environment variable(s): %v", missing)
	}
	return out, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Every selected service must have a matching provider block. The
	// binding itself is resolved later against the registry.
	check := func(kind Kind, selected string) {
		if selected == "" {
			return
		}
		if _, ok := cfg.Providers.ForKind(kind)[selected]; !ok {
			errs = append(errs, fmt.Errorf("services.%s selects %q but providers.%s.%s is not configured", kind, selected, kind, selected))
		}
	}
	check(KindASR, cfg.Services.ASR)
	check(KindTTS, cfg.Services.TTS)
	check(KindLLM, cfg.Services.Agent)
	check(KindVAD, cfg.Services.VAD)

	if cfg.Services.Agent == "" {
		errs = append(errs, errors.New("services.agent is required; the server cannot answer without an LLM"))
	}
	if cfg.Services.TTS == "" {
		errs = append(errs, errors.New("services.tts is required; the server cannot speak without a TTS provider"))
	}

	if a := cfg.Emotion.Analyzer; a != "" && a != "tag" && a != "keyword" {
		errs = append(errs, fmt.Errorf("emotion.analyzer %q is invalid; valid values: tag, keyword", a))
	}
	if m := cfg.Emotion.AnalyzerMode; m != "" && m != "first" && m != "frequency" && m != "majority" {
		errs = append(errs, fmt.Errorf("emotion.analyzer_mode %q is invalid; valid values: first, frequency, majority", m))
	}
	if s := cfg.Emotion.Strategy; s != "" && s != "position" && s != "duration" && s != "intensity" {
		errs = append(errs, fmt.Errorf("emotion.strategy %q is invalid; valid values: position, duration, intensity", s))
	}
	if cfg.Emotion.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("emotion.min_duration %.3f must not be negative", cfg.Emotion.MinDuration))
	}
	if cfg.Emotion.Transition < 0 {
		errs = append(errs, fmt.Errorf("emotion.transition %.3f must not be negative", cfg.Emotion.Transition))
	}
	if slices.Contains(cfg.Emotion.ValidEmotions, "") {
		errs = append(errs, errors.New("emotion.valid_emotions must not contain an empty string"))
	}

	if cfg.Turn.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("turn.timeout_seconds %d must not be negative", cfg.Turn.TimeoutSeconds))
	}

	if len(errs) > 0 {
		return types.Wrap(types.KindConfigInvalid, "validate", errors.Join(errs...))
	}
	return nil
}
