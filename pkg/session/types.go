// Package session implements the recording state machine, the streaming
// post-processor, the LLM orchestrator, and the auto-stop timer: the
// stateful core of the dictation pipeline.
package session

import "context"

// STTProvider is a one-shot batch transcriber: local engine handle or
// remote HTTP upload ("Batch STT clients").
type STTProvider interface {
	Transcribe(ctx context.Context, pcm []byte, lang string) (string, error)
	Name() string
}

// StreamingSTTProvider additionally exposes a push-based streaming
// session. The returned channel accepts raw PCM S16LE frames;
// onTranscript is invoked once per final or interim token batch.
type StreamingSTTProvider interface {
	STTProvider
	StreamTranscribe(ctx context.Context, lang string, onTranscript func(text string, isFinal bool) error) (chan<- []byte, error)
}

// LLMProvider performs one chat-completion call.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

type Message struct {
	Role string `json:"role"`
	Content string `json:"content"`
}

// BindingID identifies a keyboard binding ("Binding").
type BindingID string

const (
	BindingTranscribe BindingID = "transcribe"
	BindingCancel BindingID = "cancel"
	BindingAIReplaceSelection BindingID = "ai_replace_selection"
	BindingCycleProfile BindingID = "cycle_profile"
	BindingRepasteLast BindingID = "repaste_last"
)
