package session

import (
	"context"
	"strings"
	"time"

	"github.com/dictation-tools/dictator/pkg/logging"
)

// LLMOutcome is the tagged result of a post-process call.
type LLMOutcome int

const (
	OutcomeSkipped LLMOutcome = iota
	OutcomeCancelled
	OutcomeProcessed
)

type LLMResult struct {
	Outcome LLMOutcome
	Text string
	PromptUsed string
}

// TemplateVars supplies every substitution names.
type TemplateVars struct {
	Output string
	Instruction string
	Selection string
	CurrentApp string
	ShortPrevTranscript string
	Language string
	ProfileName string
	TimeLocal time.Time
	TranslateToEnglish bool
}

// ExpandTemplate performs the order-independent substring replacement of
// every ${...} variable in the prompt template.
func ExpandTemplate(template string, vars TemplateVars) string {
	r := strings.NewReplacer(
		"${output}", vars.Output,
		"${instruction}", vars.Instruction,
		"${selection}", vars.Selection,
		"${current_app}", vars.CurrentApp,
		"${short_prev_transcript}", vars.ShortPrevTranscript,
		"${language}", vars.Language,
		"${profile_name}", vars.ProfileName,
		"${time_local}", vars.TimeLocal.Format("Monday, January 2, 2006 3:04 PM"),
		"${date_iso}", vars.TimeLocal.Format(time.RFC3339),
		"${translate_to_english}", boolString(vars.TranslateToEnglish),
	)
	return r.Replace(template)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

const (
	zeroWidthSpace = rune(0x200B)
	zeroWidthNonJoiner = rune(0x200C)
	zeroWidthJoiner = rune(0x200D)
	byteOrderMark = rune(0xFEFF)
)

// StripZeroWidth removes the zero-width characters step 5
// names (U+200B, U+200C, U+200D, U+FEFF).
func StripZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case zeroWidthSpace, zeroWidthNonJoiner, zeroWidthJoiner, byteOrderMark:
			return -1
		}
		return r
	}, s)
}

// LLMOrchestrator implements the call semantics of
type LLMOrchestrator struct {
	tracker *OperationTracker
	zeroWidthFilterOn bool
	log logging.Logger
}

func NewLLMOrchestrator(tracker *OperationTracker, zeroWidthFilterOn bool, log logging.Logger) *LLMOrchestrator {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &LLMOrchestrator{tracker: tracker, zeroWidthFilterOn: zeroWidthFilterOn, log: log}
}

// Request bundles everything PostProcess needs so the call site doesn't
// have to thread a long argument list.
type Request struct {
	Enabled bool
	Provider LLMProvider
	Model string
	Prompt string
	Vars TemplateVars
}

// PostProcess runs steps 1-6 of
func (o *LLMOrchestrator) PostProcess(ctx context.Context, req Request) LLMResult {
	if !req.Enabled || req.Provider == nil || req.Model == "" || strings.TrimSpace(req.Prompt) == "" {
		return LLMResult{Outcome: OutcomeSkipped}
	}

	opID := o.tracker.StartOperation()

	expanded := ExpandTemplate(req.Prompt, req.Vars)
	text, err := req.Provider.Complete(ctx, []Message{{Role: "user", Content: expanded}})
	if err != nil {
		o.log.Warn("llm post-process call failed, skipping", "provider", req.Provider.Name(), "err", err)
		return LLMResult{Outcome: OutcomeSkipped}
	}

	if o.tracker.IsCancelled(opID) {
		return LLMResult{Outcome: OutcomeCancelled}
	}

	if o.zeroWidthFilterOn {
		text = StripZeroWidth(text)
	}

	if strings.TrimSpace(text) == "" {
		return LLMResult{Outcome: OutcomeSkipped}
	}

	return LLMResult{Outcome: OutcomeProcessed, Text: text, PromptUsed: req.Prompt}
}
