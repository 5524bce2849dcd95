package session

import (
	"testing"
	"time"

	"github.com/dictation-tools/dictator/pkg/textproc"
)

func TestStreamPostProcessorReleasesStablePrefixOnly(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{KeepSafetyBuffer: true})

	out := p.PushChunk("hello world foo bar")
	if out != "hello " {
		t.Errorf("expected only the stable prefix released, got %q", out)
	}
}

func TestStreamPostProcessorFlushReleasesRemainder(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{KeepSafetyBuffer: true})
	p.PushChunk("hello world foo bar")

	tail := p.Flush()
	if tail != "world foo bar" {
		t.Errorf("expected remainder on flush, got %q", tail)
	}
}

func TestStreamPostProcessorNoSafetyBufferReleasesEverything(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{KeepSafetyBuffer: false})
	out := p.PushChunk("hello world")
	if out != "hello world" {
		t.Errorf("expected immediate release, got %q", out)
	}
}

func TestStreamPostProcessorAppliesReplacements(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{
		KeepSafetyBuffer: false,
		Replacements: []textproc.Rule{{From: "teh", To: "the", Enabled: true}},
	})
	out := p.PushChunk("teh cat sat")
	if out != "the cat sat" {
		t.Errorf("got %q", out)
	}
}

func TestStreamPostProcessorAppliesCustomWordNgramCorrection(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{
		KeepSafetyBuffer: false,
		FuzzyEnabled: true,
		CustomWords: []string{"ChatGPT"},
		WordCorrectionThreshold: 0.5,
		NgramEnabled: true,
	})
	out := p.PushChunk("Chat G P T is great")
	// The trigram "Chat G P" is the first span under the threshold, so
	// it becomes "ChatGPT" and the trailing "T" stays as its own token.
	if out != "ChatGPT T is great" {
		t.Errorf("got %q", out)
	}
}

func TestStreamPostProcessorSkipsCustomWordsOnComplexWhitespace(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{
		KeepSafetyBuffer: false,
		FuzzyEnabled: true,
		CustomWords: []string{"ChatGPT"},
		WordCorrectionThreshold: 0.5,
		NgramEnabled: true,
	})
	out := p.PushChunk("Chat G  P T is great")
	if out != "Chat G  P T is great" {
		t.Errorf("expected correction skipped on double-space chunk, got %q", out)
	}
}

func TestStreamPostProcessorAppliesDecap(t *testing.T) {
	decap := textproc.NewDecapitalizeState()
	decap.MarkEditKeyPressed(time.Second)

	p := NewStreamPostProcessor(PostProcessorConfig{KeepSafetyBuffer: false, Decap: decap})
	out := p.PushChunk("Hello world")
	if out != "hello world" {
		t.Errorf("got %q", out)
	}
}

func TestStreamPostProcessorEmptyChunkIsNoop(t *testing.T) {
	p := NewStreamPostProcessor(PostProcessorConfig{})
	if out := p.PushChunk(""); out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
	if out := p.Flush(); out != "" {
		t.Errorf("expected empty flush with nothing pending, got %q", out)
	}
}
