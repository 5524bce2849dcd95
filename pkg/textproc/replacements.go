package textproc

import (
	"regexp"
	"strings"
)

// Rule is one ordered text-replacement rule. The From/To
// strings are expected to already be escape-decoded via DecodeEscapes
// before being passed to NewReplacementEngine.
type Rule struct {
	From string
	To string
	Enabled bool
	IsRegex bool
	CaseSensitive bool
}

type compiledRule struct {
	plain bool
	from string
	to string
	caseSensitive bool
	regex *regexp.Regexp
}

// ReplacementEngine applies an ordered list of plain/regex rules.
// Invalid regex patterns are dropped with a warning at construction
// time rather than failing the whole engine.
type ReplacementEngine struct {
	rules []compiledRule
}

// WarnFunc receives a warning message; pass nil to discard.
type WarnFunc func(format string, args...interface{})

// NewReplacementEngine compiles every enabled regex rule once, when the
// engine is built rather than on first use; case-insensitive plain rules
// build their matching regex on each Apply call.
// Returns nil if there are no usable rules (mirrors the
// Option<Self>/None-means-skip pattern the pipeline relies on).
func NewReplacementEngine(rules []Rule, warn WarnFunc) *ReplacementEngine {
	if warn == nil {
		warn = func(string,...interface{}) {}
	}

	var compiled []compiledRule
	for _, r := range rules {
		if !r.Enabled || r.From == "" {
			continue
		}

		if r.IsRegex {
			pattern := r.From
			if !r.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				warn("invalid regex pattern %q in text replacement: %v", r.From, err)
				continue
			}
			compiled = append(compiled, compiledRule{regex: re, to: r.To})
			continue
		}

		if r.From == "" {
			continue
		}
		compiled = append(compiled, compiledRule{
			plain: true,
			from: r.From,
			to: r.To,
			caseSensitive: r.CaseSensitive,
		})
	}

	if len(compiled) == 0 {
		return nil
	}
	return &ReplacementEngine{rules: compiled}
}

// Apply runs every rule, in declaration order, over text.
func (e *ReplacementEngine) Apply(text string) string {
	result := text
	for _, r := range e.rules {
		if r.regex != nil {
			result = r.regex.ReplaceAllLiteralString(result, r.to)
			continue
		}
		if r.caseSensitive {
			result = strings.ReplaceAll(result, r.from, r.to)
		} else {
			result = replaceCaseInsensitive(result, r.from, r.to, warnDiscard)
		}
	}
	return result
}

var warnDiscard WarnFunc = func(string,...interface{}) {}

// replaceCaseInsensitive mirrors the original's regex::escape + (?i)
// approach so replacement text is never reinterpreted as a regex
// template.
func replaceCaseInsensitive(text, from, to string, warn WarnFunc) string {
	if from == "" {
		return text
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		warn("failed to build case-insensitive replacement regex for %q: %v", from, err)
		return text
	}
	return re.ReplaceAllLiteralString(text, to)
}
