package expression

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Neutral is the fallback emotion used when nothing else applies.
const Neutral = "neutral"

// Analyzer picks the primary emotion of one sentence from its extracted
// tags and/or cleaned text.
type Analyzer interface {
	// Analyze returns the emotion data for one sentence. tags are the
	// extracted emotion tags ordered by position; text is the sentence
	// with tags stripped.
	Analyze(text string, tags []types.EmotionTag) types.EmotionData
}

// TagMode selects how the tag analyzer picks the primary emotion.
type TagMode string

const (
	// ModeFirst uses the first tag with confidence 1.
	ModeFirst TagMode = "first"

	// ModeFrequency uses the most frequent tag; confidence is its share.
	ModeFrequency TagMode = "frequency"

	// ModeMajority is an alias of frequency kept for config compatibility.
	ModeMajority TagMode = "majority"
)

// TagAnalyzer derives emotion from the bracket tags alone.
type TagAnalyzer struct {
	mode TagMode
}

var _ Analyzer = (*TagAnalyzer)(nil)

// NewTagAnalyzer creates a TagAnalyzer. An empty mode defaults to first.
func NewTagAnalyzer(mode TagMode) *TagAnalyzer {
	if mode == "" {
		mode = ModeFirst
	}
	return &TagAnalyzer{mode: mode}
}

// Analyze implements Analyzer.
func (a *TagAnalyzer) Analyze(_ string, tags []types.EmotionTag) types.EmotionData {
	if len(tags) == 0 {
		return types.EmotionData{Primary: Neutral, Confidence: 0}
	}

	emotions := make([]string, len(tags))
	for i, t := range tags {
		emotions[i] = t.Emotion
	}

	if a.mode == ModeFirst {
		return types.EmotionData{Emotions: emotions, Primary: emotions[0], Confidence: 1}
	}

	// frequency / majority: argmax of tag count, ties broken by first
	// appearance.
	counts := make(map[string]int, len(emotions))
	for _, e := range emotions {
		counts[e]++
	}
	best := emotions[0]
	for _, e := range emotions {
		if counts[e] > counts[best] {
			best = e
		}
	}
	return types.EmotionData{
		Emotions:   emotions,
		Primary:    best,
		Confidence: float64(counts[best]) / float64(len(emotions)),
	}
}

// fuzzyThreshold is the JaroWinkler similarity above which a word counts as
// a lexicon hit. Catches inflections and minor misspellings without
// matching unrelated words.
const fuzzyThreshold = 0.92

// defaultLexicon maps each emotion to the words that signal it in plain
// text. Extended per deployment via NewKeywordAnalyzer.
var defaultLexicon = map[string][]string{
	"happy":     {"happy", "glad", "great", "wonderful", "love", "laugh", "joy", "delighted", "yay"},
	"sad":       {"sad", "sorry", "unfortunate", "cry", "tears", "miss", "lonely", "regret"},
	"angry":     {"angry", "furious", "mad", "annoyed", "hate", "outrageous"},
	"surprised": {"surprised", "wow", "incredible", "unbelievable", "amazing", "astonishing"},
	"thinking":  {"think", "hmm", "consider", "wonder", "perhaps", "maybe", "ponder"},
	"fear":      {"afraid", "scared", "terrified", "frightening", "dread"},
}

// KeywordAnalyzer derives emotion from the sentence text using a fixed
// per-emotion lexicon. A word matches on equality or on JaroWinkler
// similarity above the fuzzy threshold.
type KeywordAnalyzer struct {
	lexicon map[string][]string
}

var _ Analyzer = (*KeywordAnalyzer)(nil)

// NewKeywordAnalyzer creates a KeywordAnalyzer. A nil lexicon selects the
// built-in one.
func NewKeywordAnalyzer(lexicon map[string][]string) *KeywordAnalyzer {
	if lexicon == nil {
		lexicon = defaultLexicon
	}
	return &KeywordAnalyzer{lexicon: lexicon}
}

// Analyze implements Analyzer. No lexicon hit yields neutral with
// confidence 0.
func (a *KeywordAnalyzer) Analyze(text string, _ []types.EmotionTag) types.EmotionData {
	words := strings.Fields(strings.ToLower(stripPunct(text)))
	if len(words) == 0 {
		return types.EmotionData{Primary: Neutral, Confidence: 0}
	}

	var hits []string
	counts := make(map[string]int)
	for _, w := range words {
		for emotion, keywords := range a.lexicon {
			if matchesKeyword(w, keywords) {
				hits = append(hits, emotion)
				counts[emotion]++
				break
			}
		}
	}
	if len(hits) == 0 {
		return types.EmotionData{Primary: Neutral, Confidence: 0}
	}

	best := hits[0]
	for _, e := range hits {
		if counts[e] > counts[best] {
			best = e
		}
	}

	// Confidence grows with evidence and saturates at three hits.
	conf := float64(counts[best]) / 3
	if conf > 1 {
		conf = 1
	}
	return types.EmotionData{Emotions: hits, Primary: best, Confidence: conf}
}

// matchesKeyword reports whether word matches any lexicon keyword exactly
// or by fuzzy similarity.
func matchesKeyword(word string, keywords []string) bool {
	for _, k := range keywords {
		if word == k {
			return true
		}
		if matchr.JaroWinkler(word, k, false) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

// stripPunct replaces ASCII punctuation with spaces so Fields can split
// cleanly.
func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '[', ']':
			return ' '
		}
		return r
	}, s)
}

// NewAnalyzer builds the analyzer selected by name ("tag" or "keyword").
// An unknown name fails with config_invalid.
func NewAnalyzer(name string, mode TagMode) (Analyzer, error) {
	switch name {
	case "", "tag":
		return NewTagAnalyzer(mode), nil
	case "keyword":
		return NewKeywordAnalyzer(nil), nil
	default:
		return nil, types.E(types.KindConfigInvalid, "unknown emotion analyzer %q; valid: tag, keyword", name)
	}
}
