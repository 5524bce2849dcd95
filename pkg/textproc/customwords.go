package textproc

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	maxNgram = 3
	maxCandidateLen = 50
	phoneticMultiplier = 0.3
)

// ApplyCustomWords runs the greedy n-gram fuzzy correction pass from
// over whitespace-tokenized text.
func ApplyCustomWords(text string, customWords []string, threshold float64, enableNgram bool) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(customWords) == 0 {
		return text
	}

	out := make([]string, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		maxN := maxNgram
		if !enableNgram {
			maxN = 1
		}
		if maxN > len(tokens)-i {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			span := tokens[i : i+n]
			candidate := buildCandidate(span)
			if candidate == "" || len(candidate) > maxCandidateLen {
				continue
			}

			winner, ok := findBestMatch(candidate, customWords, threshold)
			if !ok {
				continue
			}

			out = append(out, spliceCorrection(span, winner))
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}

	return strings.Join(out, " ")
}

// buildCandidate concatenates the alphanumeric-only, lowercased
// characters of the token span.
func buildCandidate(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		for _, r := range t {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
	}
	return b.String()
}

func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// findBestMatch returns the target word with the lowest score strictly
// below threshold, or ok=false if none qualifies.
func findBestMatch(candidate string, targets []string, threshold float64) (string, bool) {
	bestScore := threshold
	var best string
	found := false

	candLower := strings.ToLower(candidate)

	for _, w := range targets {
		wNoSpace := strings.ToLower(alnumOnly(w))
		if wNoSpace == "" {
			continue
		}

		lenDiff := abs(len(candLower) - len(wNoSpace))
		maxLen := maxInt(len(candLower), len(wNoSpace))
		allowedDiff := maxInt(2, int(0.25*float64(maxLen)))
		if lenDiff > allowedDiff {
			continue
		}

		score := normalizedLevenshtein(candLower, wNoSpace)
		if phoneticMatch(candLower, wNoSpace) {
			score *= phoneticMultiplier
		}

		if score < bestScore {
			bestScore = score
			best = w
			found = true
		}
	}

	return best, found
}

func normalizedLevenshtein(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	dist := matchr.Levenshtein(a, b)
	maxLen := maxInt(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 0
	}
	return float64(dist) / float64(maxLen)
}

// phoneticMatch applies the Soniox-style phonetic multiplier when the
// two candidates' Double Metaphone codes overlap (matchr has no Soundex;
// Double Metaphone is the library's closest phonetic primitive and is
// the one already used for fuzzy entity matching elsewhere in this
// codebase's sibling packages). Per open question (b), this is
// deliberately left unconditional (no Latin-script guard).
func phoneticMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aPrimary, aSecondary := matchr.DoubleMetaphone(a)
	bPrimary, bSecondary := matchr.DoubleMetaphone(b)

	return (aPrimary != "" && (aPrimary == bPrimary || aPrimary == bSecondary)) ||
		(aSecondary != "" && (aSecondary == bPrimary || aSecondary == bSecondary))
}

// spliceCorrection replaces the matched token span with the winning
// target word, preserving surrounding punctuation and the case pattern
// of the first token.
func spliceCorrection(span []string, winner string) string {
	first := span[0]
	last := span[len(span)-1]

	prefix := extractLeadingPunct(first)
	suffix := extractTrailingPunct(last)

	cased := preserveCasePattern(first, winner)
	return prefix + cased + suffix
}

func extractLeadingPunct(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

func extractTrailingPunct(s string) string {
	runes := []rune(s)
	end := len(runes)
	for end > 0 && !(unicode.IsLetter(runes[end-1]) || unicode.IsDigit(runes[end-1])) {
		end--
	}
	return string(runes[end:])
}

// preserveCasePattern matches PreserveCase(ref, target) from
// round-trips: all-upper -> upper; leading-upper -> title-case; else
// target as given.
func preserveCasePattern(ref, target string) string {
	letters := alnumOnly(ref)
	if letters == "" {
		return target
	}
	if strings.ToUpper(letters) == letters && hasAnyLetter(letters) {
		return strings.ToUpper(target)
	}
	runes := []rune(letters)
	if unicode.IsUpper(runes[0]) {
		return titleCase(target)
	}
	return target
}

func hasAnyLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
