// Paragraph classification.
//
// The only exam semantics inside the binary engine: a paragraph whose text
// starts with a question number ("1.", "12)", optionally prefixed with the
// marker word 문) gets the question style, anything else with visible text
// gets the passage style, and blank paragraphs keep the base style. The full
// exam-structure heuristics live in the parser, not here.
package hwpstyle

import (
	"regexp"
	"strings"
)

// baseStyleIndex is the built-in default style (바탕글/Normal).
const baseStyleIndex = 0

// questionNumberRE matches a question-number prefix: an optional 문 marker,
// one to three digits, then '.' or ')'.
var questionNumberRE = regexp.MustCompile(`^(?:문\s*)?[0-9]{1,3}\s*[.)]\s*`)

// layoutNoise holds zero-width and no-break characters that generation
// leaves at line starts; they must not hide a question number.
const layoutNoise = "\ufeff\u200b\u2060\u00a0"

// classify maps paragraph text to a style index. Pure function; the
// question/passage indexes come from the caller's style table.
func classify(text string, questionIdx, passageIdx int) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return baseStyleIndex
	}
	candidate := strings.TrimLeft(trimmed, layoutNoise)
	if questionNumberRE.MatchString(candidate) {
		return questionIdx
	}
	return passageIdx
}

// isQuestionText reports whether text looks like a numbered question line.
// Used by the standalone face reconciler, which runs without a style table.
func isQuestionText(text string) bool {
	candidate := strings.TrimLeft(strings.TrimSpace(text), layoutNoise)
	return questionNumberRE.MatchString(candidate)
}
