package config

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/asr"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/vad"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Kind identifies a provider capability slot.
type Kind string

const (
	KindLLM Kind = "llm"
	KindASR Kind = "asr"
	KindTTS Kind = "tts"
	KindVAD Kind = "vad"
)

// OptionType declares the expected value type of one option key.
type OptionType string

const (
	TypeString OptionType = "string"
	TypeInt    OptionType = "int"
	TypeFloat  OptionType = "float"
	TypeBool   OptionType = "bool"
)

// Schema enumerates the option keys a provider recognizes and their value
// types. The standard ProviderEntry fields (api_key, base_url, model) are
// always accepted and need not appear here.
type Schema map[string]OptionType

// Constructor builds a live provider from a validated entry. The returned
// value implements the capability interface matching the binding's kind.
type Constructor func(entry ProviderEntry) (any, error)

// binding pairs a schema with its constructor.
type binding struct {
	schema Schema
	ctor   Constructor
}

// Registry maps (kind, name) to provider bindings. It is the single
// process-wide object of the system: populated during startup, sealed before
// the first session, read-only afterwards. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bindings map[Kind]map[string]binding
	sealed   bool
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		bindings: map[Kind]map[string]binding{
			KindLLM: {},
			KindASR: {},
			KindTTS: {},
			KindVAD: {},
		},
	}
}

// Register binds a constructor and its option schema under (kind, name).
// Re-registering the same (kind, name) replaces the prior binding with a
// warning. Register panics when called after [Registry.Seal] — bindings are
// fixed before any session exists.
func (r *Registry) Register(kind Kind, name string, schema Schema, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("config: Register(%s, %s) after Seal", kind, name))
	}
	byName, ok := r.bindings[kind]
	if !ok {
		panic(fmt.Sprintf("config: unknown provider kind %q", kind))
	}
	if _, exists := byName[name]; exists {
		slog.Warn("provider binding replaced", "kind", kind, "name", name)
	}
	byName[name] = binding{schema: schema, ctor: ctor}
}

// Seal freezes the registry. Subsequent Register calls panic.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Build validates entry against the schema bound under (kind, entry.Name),
// expands any remaining ${VAR} references in its string values, and invokes
// the constructor. An unknown name, an unrecognized option key, or a
// mistyped option value fails with config_invalid; an unset environment
// variable fails with config_missing_env.
func (r *Registry) Build(kind Kind, entry ProviderEntry) (any, error) {
	r.mu.RLock()
	b, ok := r.bindings[kind][entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, types.E(types.KindConfigInvalid, "%s provider %q is not registered (known: %v)", kind, entry.Name, r.List(kind))
	}

	if err := validateOptions(kind, entry, b.schema); err != nil {
		return nil, err
	}

	expanded, err := expandEntry(entry)
	if err != nil {
		return nil, err
	}

	p, err := b.ctor(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: build %s/%s: %w", kind, entry.Name, err)
	}
	return p, nil
}

// List returns the registered provider names for kind, sorted.
func (r *Registry) List(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.bindings[kind]))
	for name := range r.bindings[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildLLM builds an LLM provider and asserts its capability interface.
func (r *Registry) BuildLLM(entry ProviderEntry) (llm.Provider, error) {
	p, err := r.Build(KindLLM, entry)
	if err != nil {
		return nil, err
	}
	lp, ok := p.(llm.Provider)
	if !ok {
		return nil, fmt.Errorf("config: llm/%s constructor returned %T, not llm.Provider", entry.Name, p)
	}
	return lp, nil
}

// BuildASR builds an ASR provider and asserts its capability interface.
func (r *Registry) BuildASR(entry ProviderEntry) (asr.Provider, error) {
	p, err := r.Build(KindASR, entry)
	if err != nil {
		return nil, err
	}
	ap, ok := p.(asr.Provider)
	if !ok {
		return nil, fmt.Errorf("config: asr/%s constructor returned %T, not asr.Provider", entry.Name, p)
	}
	return ap, nil
}

// BuildTTS builds a TTS provider and asserts its capability interface.
func (r *Registry) BuildTTS(entry ProviderEntry) (tts.Provider, error) {
	p, err := r.Build(KindTTS, entry)
	if err != nil {
		return nil, err
	}
	tp, ok := p.(tts.Provider)
	if !ok {
		return nil, fmt.Errorf("config: tts/%s constructor returned %T, not tts.Provider", entry.Name, p)
	}
	return tp, nil
}

// BuildVAD builds a VAD engine and asserts its capability interface.
func (r *Registry) BuildVAD(entry ProviderEntry) (vad.Engine, error) {
	p, err := r.Build(KindVAD, entry)
	if err != nil {
		return nil, err
	}
	ve, ok := p.(vad.Engine)
	if !ok {
		return nil, fmt.Errorf("config: vad/%s constructor returned %T, not vad.Engine", entry.Name, p)
	}
	return ve, nil
}

// validateOptions checks entry.Options against schema.
func validateOptions(kind Kind, entry ProviderEntry, schema Schema) error {
	for key, val := range entry.Options {
		want, ok := schema[key]
		if !ok {
			return types.E(types.KindConfigInvalid, "%s/%s: unknown option %q (recognized: %v)", kind, entry.Name, key, schemaKeys(schema))
		}
		if !valueMatches(want, val) {
			return types.E(types.KindConfigInvalid, "%s/%s: option %q must be a %s, got %T", kind, entry.Name, key, want, val)
		}
	}
	return nil
}

// valueMatches reports whether a decoded YAML value satisfies the declared
// option type. YAML integers also satisfy float options.
func valueMatches(want OptionType, val any) bool {
	switch want {
	case TypeString:
		_, ok := val.(string)
		return ok
	case TypeInt:
		_, ok := val.(int)
		return ok
	case TypeFloat:
		switch val.(type) {
		case float64, int:
			return true
		}
		return false
	case TypeBool:
		_, ok := val.(bool)
		return ok
	default:
		return false
	}
}

// expandEntry expands ${VAR} references in the entry's string values.
// Entries loaded through [LoadFromReader] are already expanded, making this
// a no-op; entries constructed programmatically get the same treatment.
func expandEntry(entry ProviderEntry) (ProviderEntry, error) {
	var err error
	if entry.APIKey, err = ExpandEnv(entry.APIKey); err != nil {
		return entry, err
	}
	if entry.BaseURL, err = ExpandEnv(entry.BaseURL); err != nil {
		return entry, err
	}
	if entry.Model, err = ExpandEnv(entry.Model); err != nil {
		return entry, err
	}
	if len(entry.Options) > 0 {
		opts := make(map[string]any, len(entry.Options))
		for k, v := range entry.Options {
			if s, ok := v.(string); ok {
				expanded, err := ExpandEnv(s)
				if err != nil {
					return entry, err
				}
				opts[k] = expanded
				continue
			}
			opts[k] = v
		}
		entry.Options = opts
	}
	return entry, nil
}

// schemaKeys returns the schema's option keys, sorted.
func schemaKeys(schema Schema) []string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringOption returns the string option key from entry, or def when absent.
func StringOption(entry ProviderEntry, key, def string) string {
	if v, ok := entry.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// FloatOption returns the float option key from entry, or def when absent.
func FloatOption(entry ProviderEntry, key string, def float64) float64 {
	switch v := entry.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// IntOption returns the int option key from entry, or def when absent.
func IntOption(entry ProviderEntry, key string, def int) int {
	if v, ok := entry.Options[key].(int); ok {
		return v
	}
	return def
}
