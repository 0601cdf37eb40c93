package config

import (
	"testing"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	ttsmock "github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts/mock"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

func mockTTSConstructor(tag string) Constructor {
	return func(entry ProviderEntry) (any, error) {
		return &ttsmock.Provider{Clip: tts.Clip{Audio: []byte(tag), Format: "wav"}}, nil
	}
}

func TestRegistry_BuildUnknownName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Build(KindTTS, ProviderEntry{Name: "ghost"})
	if err == nil {
		t.Fatal("Build: want error for unregistered name")
	}
	if !types.IsKind(err, types.KindConfigInvalid) {
		t.Errorf("error kind: want config_invalid, got %q", types.KindOf(err))
	}
}

func TestRegistry_ReRegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(KindTTS, "dup", Schema{}, mockTTSConstructor("first"))
	r.Register(KindTTS, "dup", Schema{}, mockTTSConstructor("second"))

	p, err := r.BuildTTS(ProviderEntry{Name: "dup"})
	if err != nil {
		t.Fatalf("BuildTTS: %v", err)
	}
	clip, err := p.Synthesize(t.Context(), "x")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.Audio) != "second" {
		t.Errorf("re-registration did not replace binding: got %q", clip.Audio)
	}
}

func TestRegistry_OptionValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(KindTTS, "opt", Schema{"voice": TypeString, "speed": TypeFloat}, mockTTSConstructor("opt"))

	// Valid options pass; ints satisfy float options.
	if _, err := r.Build(KindTTS, ProviderEntry{Name: "opt", Options: map[string]any{"voice": "alloy", "speed": 1}}); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}

	// Unknown key fails.
	_, err := r.Build(KindTTS, ProviderEntry{Name: "opt", Options: map[string]any{"pitch": 2.0}})
	if !types.IsKind(err, types.KindConfigInvalid) {
		t.Errorf("unknown option: want config_invalid, got %v", err)
	}

	// Type mismatch fails.
	_, err = r.Build(KindTTS, ProviderEntry{Name: "opt", Options: map[string]any{"voice": 42}})
	if !types.IsKind(err, types.KindConfigInvalid) {
		t.Errorf("mistyped option: want config_invalid, got %v", err)
	}
}

func TestRegistry_BuildExpandsEnv(t *testing.T) {
	t.Setenv("ANIMA_REG_KEY", "resolved")

	r := NewRegistry()
	var seen string
	r.Register(KindTTS, "env", Schema{}, func(entry ProviderEntry) (any, error) {
		seen = entry.APIKey
		return &ttsmock.Provider{}, nil
	})

	if _, err := r.Build(KindTTS, ProviderEntry{Name: "env", APIKey: "${ANIMA_REG_KEY}"}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if seen != "resolved" {
		t.Errorf("api_key expansion: want resolved, got %q", seen)
	}

	_, err := r.Build(KindTTS, ProviderEntry{Name: "env", APIKey: "${ANIMA_REG_UNSET}"})
	if !types.IsKind(err, types.KindConfigMissingEnv) {
		t.Errorf("unset env: want config_missing_env, got %v", err)
	}
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(KindTTS, "zeta", Schema{}, mockTTSConstructor("z"))
	r.Register(KindTTS, "alpha", Schema{}, mockTTSConstructor("a"))

	got := r.List(KindTTS)
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("List: want [alpha zeta], got %v", got)
	}
	if names := r.List(KindVAD); len(names) != 0 {
		t.Errorf("List(vad): want empty, got %v", names)
	}
}

func TestRegistry_RegisterAfterSealPanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Seal()
	defer func() {
		if recover() == nil {
			t.Error("Register after Seal did not panic")
		}
	}()
	r.Register(KindTTS, "late", Schema{}, mockTTSConstructor("late"))
}
