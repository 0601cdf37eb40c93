// Package expression turns a synthesized sentence into everything the
// avatar needs to perform it: emotion tags are extracted from the text,
// an analyzer picks the primary emotion, a timeline strategy lays the
// emotions out over the clip duration, and the audio is decoded into a
// 50 Hz loudness envelope for lipsync.
package expression

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// tagPattern matches bracketed emotion candidates such as "[happy]".
var tagPattern = regexp.MustCompile(`\[([A-Za-z]+)\]`)

// spaceRuns collapses runs of spaces left behind by tag removal.
var spaceRuns = regexp.MustCompile(` {2,}`)

// TagSet is the closed set of emotions recognized in bracket tags,
// lowercase.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from the configured emotion list.
func NewTagSet(emotions []string) TagSet {
	s := make(TagSet, len(emotions))
	for _, e := range emotions {
		s[strings.ToLower(e)] = struct{}{}
	}
	return s
}

// Contains reports whether emotion is in the set (case-insensitive).
func (s TagSet) Contains(emotion string) bool {
	_, ok := s[strings.ToLower(emotion)]
	return ok
}

// ExtractTags scans text for bracketed emotion tags, removes the recognized
// ones, and returns the cleaned text plus the extracted tags ordered by
// position. Positions are byte offsets of the opening bracket in the
// original text; for non-ASCII text they differ from character counts. A bracketed word outside the valid set is left in the text
// as a literal and logged as an operator warning.
//
// Adjacent spaces exposed by tag removal are collapsed to one; leading and
// trailing whitespace is trimmed.
func ExtractTags(text string, valid TagSet) (string, []types.EmotionTag) {
	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var tags []types.EmotionTag
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		word := strings.ToLower(text[m[2]:m[3]])
		if !valid.Contains(word) {
			slog.Warn("unrecognized emotion tag left in text", "tag", text[start:end])
			continue
		}
		tags = append(tags, types.EmotionTag{Emotion: word, Position: start})
		sb.WriteString(text[last:start])
		last = end
	}
	sb.WriteString(text[last:])

	clean := spaceRuns.ReplaceAllString(sb.String(), " ")
	clean = strings.TrimSpace(clean)
	return clean, tags
}
