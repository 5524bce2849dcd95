package session

import (
	"strings"

	"github.com/dictation-tools/dictator/pkg/logging"
	"github.com/dictation-tools/dictator/pkg/textproc"
)

const defaultStableTailWords = 3

// StreamPostProcessor turns a stream of raw final-text fragments into a
// stream of paste deltas that never revise already-released text. One
// instance is created per streaming session from a frozen snapshot of
// settings at session start.
type StreamPostProcessor struct {
	pendingRaw strings.Builder
	stableTailWords int

	fuzzyEnabled bool
	customWords []string
	wordCorrectionThreshold float64
	ngramEnabled bool

	replacements *textproc.ReplacementEngine
	decap *textproc.DecapitalizeState

	log logging.Logger
}

type PostProcessorConfig struct {
	KeepSafetyBuffer bool
	FuzzyEnabled bool
	CustomWords []string
	WordCorrectionThreshold float64
	NgramEnabled bool
	Replacements []textproc.Rule
	Decap *textproc.DecapitalizeState
	Log logging.Logger
}

func NewStreamPostProcessor(cfg PostProcessorConfig) *StreamPostProcessor {
	tailWords := 0
	if cfg.KeepSafetyBuffer {
		tailWords = defaultStableTailWords
	}

	log := cfg.Log
	if log == nil {
		log = &logging.NoOpLogger{}
	}

	return &StreamPostProcessor{
		stableTailWords: tailWords,
		fuzzyEnabled: cfg.FuzzyEnabled && len(cfg.CustomWords) > 0,
		customWords: cfg.CustomWords,
		wordCorrectionThreshold: cfg.WordCorrectionThreshold,
		ngramEnabled: cfg.NgramEnabled,
		replacements: textproc.NewReplacementEngine(cfg.Replacements, func(f string, a...interface{}) { log.Warn(f, a...) }),
		decap: cfg.Decap,
		log: log,
	}
}

// PushChunk appends raw to the pending buffer and releases whatever
// prefix is now stable.
func (p *StreamPostProcessor) PushChunk(raw string) string {
	if raw == "" {
		return ""
	}

	p.pendingRaw.WriteString(raw)
	pending := p.pendingRaw.String()

	stableEnd := stablePrefixEnd(pending, p.stableTailWords)
	if stableEnd == 0 {
		return ""
	}

	stable := pending[:stableEnd]
	remaining := pending[stableEnd:]
	p.pendingRaw.Reset()
	p.pendingRaw.WriteString(remaining)

	return p.processPipeline(stable)
}

// Flush drains whatever remains in the pending buffer through the
// pipeline, unconditionally. Called at session end.
func (p *StreamPostProcessor) Flush()string {
	pending := p.pendingRaw.String()
	if pending == "" {
		return ""
	}
	p.pendingRaw.Reset()
	return p.processPipeline(pending)
}

func (p *StreamPostProcessor) processPipeline(text string) string {
	if text == "" {
		return ""
	}

	corrected := text
	if p.fuzzyEnabled {
		corrected = applyCustomWordsPreservingWhitespace(text, p.customWords, p.wordCorrectionThreshold, p.ngramEnabled)
	}

	processed := corrected
	if p.replacements != nil {
		processed = p.replacements.Apply(corrected)
	}

	if p.decap != nil {
		processed = p.decap.MaybeDecapitalizeNextChunkRealtime(processed)
	}

	return processed
}

// stablePrefixEnd returns the byte offset of the start of the
// tailWords-th-from-last whitespace-delimited token, so the last
// tailWords tokens stay pending; it returns 0 when the buffer holds no
// more than tailWords tokens. tailWords==0 means the whole buffer is
// stable.
func stablePrefixEnd(text string, tailWords int) int {
	if text == "" {
		return 0
	}
	if tailWords == 0 {
		return len(text)
	}

	var tokenStarts []int
	inToken := false
	for i, r := range text {
		if isSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			tokenStarts = append(tokenStarts, i)
			inToken = true
		}
	}

	if len(tokenStarts) <= tailWords {
		return 0
	}
	return tokenStarts[len(tokenStarts)-tailWords]
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// applyCustomWordsPreservingWhitespace is the streaming-safe wrapper
// around textproc.ApplyCustomWords: it skips correction entirely when
// the chunk has non-trivial internal whitespace, since
// ApplyCustomWords tokenizes and rejoins with single spaces (
// pipeline step 1).
func applyCustomWordsPreservingWhitespace(text string, customWords []string, threshold float64, enableNgram bool) string {
	if text == "" || len(customWords) == 0 {
		return text
	}

	leading := countLeadingWhitespace(text)
	trailing := countTrailingWhitespace(text)
	coreEnd := len(text) - trailing
	if leading > coreEnd {
		return text
	}
	core := text[leading:coreEnd]
	if core == "" {
		return text
	}

	if strings.Contains(core, "  ") || strings.ContainsAny(core, "\n\r\t") {
		return text
	}

	corrected := textproc.ApplyCustomWords(core, customWords, threshold, enableNgram)
	return text[:leading] + corrected + text[coreEnd:]
}

func countLeadingWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !isSpace(r) {
			break
		}
		n += len(string(r))
	}
	return n
}

func countTrailingWhitespace(s string) int {
	runes := []rune(s)
	n := 0
	for i := len(runes) - 1; i >= 0; i-- {
		if !isSpace(runes[i]) {
			break
		}
		n += len(string(runes[i]))
	}
	return n
}
