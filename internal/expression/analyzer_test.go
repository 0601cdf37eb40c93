package expression

import (
	"testing"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

func tags(emotions ...string) []types.EmotionTag {
	out := make([]types.EmotionTag, len(emotions))
	for i, e := range emotions {
		out[i] = types.EmotionTag{Emotion: e, Position: i * 10}
	}
	return out
}

func TestTagAnalyzer_First(t *testing.T) {
	t.Parallel()

	a := NewTagAnalyzer(ModeFirst)
	got := a.Analyze("", tags("sad", "happy", "happy"))
	if got.Primary != "sad" {
		t.Errorf("first mode primary: want sad, got %q", got.Primary)
	}
	if got.Confidence != 1 {
		t.Errorf("first mode confidence: want 1, got %f", got.Confidence)
	}
	if len(got.Emotions) != 3 {
		t.Errorf("emotions multiset: want 3 entries, got %v", got.Emotions)
	}
}

func TestTagAnalyzer_Frequency(t *testing.T) {
	t.Parallel()

	a := NewTagAnalyzer(ModeFrequency)
	got := a.Analyze("", tags("sad", "happy", "happy"))
	if got.Primary != "happy" {
		t.Errorf("frequency primary: want happy, got %q", got.Primary)
	}
	if want := 2.0 / 3.0; got.Confidence != want {
		t.Errorf("frequency confidence: want %f, got %f", want, got.Confidence)
	}
}

func TestTagAnalyzer_FrequencyTieBreaksByPosition(t *testing.T) {
	t.Parallel()

	// happy and thinking appear once each; the earlier tag wins.
	a := NewTagAnalyzer(ModeFrequency)
	got := a.Analyze("", tags("happy", "thinking"))
	if got.Primary != "happy" {
		t.Errorf("tie primary: want happy (first by position), got %q", got.Primary)
	}
}

func TestTagAnalyzer_NoTags(t *testing.T) {
	t.Parallel()

	got := NewTagAnalyzer(ModeMajority).Analyze("whatever", nil)
	if got.Primary != Neutral || got.Confidence != 0 {
		t.Errorf("no tags: want neutral/0, got %q/%f", got.Primary, got.Confidence)
	}
}

func TestKeywordAnalyzer_Hit(t *testing.T) {
	t.Parallel()

	a := NewKeywordAnalyzer(nil)
	got := a.Analyze("I am so happy and glad today!", nil)
	if got.Primary != "happy" {
		t.Errorf("keyword primary: want happy, got %q", got.Primary)
	}
	if got.Confidence <= 0 {
		t.Errorf("keyword confidence: want > 0, got %f", got.Confidence)
	}
}

func TestKeywordAnalyzer_NoHit(t *testing.T) {
	t.Parallel()

	a := NewKeywordAnalyzer(nil)
	got := a.Analyze("The quorum convenes at noon.", nil)
	if got.Primary != Neutral || got.Confidence != 0 {
		t.Errorf("no hit: want neutral/0, got %q/%f", got.Primary, got.Confidence)
	}
}

func TestKeywordAnalyzer_FuzzyMatch(t *testing.T) {
	t.Parallel()

	// "wonderfull" is one letter off a lexicon word; JaroWinkler catches it.
	a := NewKeywordAnalyzer(nil)
	got := a.Analyze("what a wonderfull day", nil)
	if got.Primary != "happy" {
		t.Errorf("fuzzy match: want happy, got %q", got.Primary)
	}
}

func TestNewAnalyzer(t *testing.T) {
	t.Parallel()

	if _, err := NewAnalyzer("tag", ModeFirst); err != nil {
		t.Errorf("NewAnalyzer(tag): %v", err)
	}
	if _, err := NewAnalyzer("keyword", ""); err != nil {
		t.Errorf("NewAnalyzer(keyword): %v", err)
	}
	_, err := NewAnalyzer("vibes", "")
	if !types.IsKind(err, types.KindConfigInvalid) {
		t.Errorf("NewAnalyzer(vibes): want config_invalid, got %v", err)
	}
}
