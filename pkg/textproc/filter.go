package textproc

import (
	"regexp"
	"strings"
)

// hallucinationBracket matches the bracketed/parenthesized placeholders
// local ASR engines emit for non-speech audio, e.g. "[BLANK_AUDIO]",
// "(silence)", "[Music]".
var hallucinationBracket = regexp.MustCompile(`(?i)[\[(][a-z _]+[\])]`)

// collapseStutters drops a word of at most three characters that
// repeats the previous word (case-insensitively), e.g. "the the" or
// "I I I", which local models occasionally emit during hesitant speech.
func collapseStutters(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := len(out); n > 0 && len([]rune(w)) <= 3 && strings.EqualFold(out[n-1], w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// FilterHallucinations strips engine-specific non-speech placeholders
// and collapses repeated-word stutters from a batch transcription result
// before it reaches custom-word correction (supplementary feature,
// a defensive cleanup step applied to every batch transcription result
// before it reaches post-processing or output injection.
func FilterHallucinations(text string) string {
	cleaned := hallucinationBracket.ReplaceAllString(text, "")
	return strings.Join(collapseStutters(strings.Fields(cleaned)), " ")
}
