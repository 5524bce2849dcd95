// Package settings defines the settings snapshot and loads it
// through viper so it can come from a config file, environment variables,
// or flags uniformly.
package settings

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type TranscriptionProvider string

const (
	ProviderLocal TranscriptionProvider = "local"
	ProviderRemoteBatch TranscriptionProvider = "remote_batch"
	ProviderRemoteStreaming TranscriptionProvider = "remote_streaming"
)

type OutputMethod string

const (
	OutputNone OutputMethod = "none"
	OutputDirect OutputMethod = "direct"
	OutputClipboardCtrlV OutputMethod = "clipboard_ctrl_v"
	OutputClipboardCtrlShiftV OutputMethod = "clipboard_ctrl_shift_v"
	OutputClipboardShiftInsert OutputMethod = "clipboard_shift_insert"
)

type ClipboardDiscipline string

const (
	ClipboardDontModify ClipboardDiscipline = "dont_modify"
	ClipboardCopyToClipboard ClipboardDiscipline = "copy_to_clipboard"
	ClipboardRestoreAdvanced ClipboardDiscipline = "restore_advanced"
)

// TextReplacement is one ordered rule in the replacement list.
type TextReplacement struct {
	From string
	To string
	Enabled bool
	IsRegex bool
	CaseSensitive bool
}

// StreamTuning holds the streaming knobs that are clamped at load
// time, not at point of use, so downstream code never has to re-clamp.
type StreamTuning struct {
	KeepSafetyBuffer bool
	FuzzyOnStreaming bool
	KeepaliveInterval time.Duration
	LiveFinalizeTimeout time.Duration
	MaxEndpointDelay time.Duration
}

type AutoStopConfig struct {
	Enabled bool
	Timeout time.Duration
	Paste bool
}

type PrevTranscriptConfig struct {
	MaxWords int
	Expiry time.Duration
}

// Snapshot is the immutable-per-operation view of user configuration
// (, "Settings snapshot"). Callers capture one at the start of a
// recording; later mutations to the live config never affect an
// in-flight operation.
type Snapshot struct {
	Provider TranscriptionProvider
	Language string // ISO-639-1, "auto", or "os_input"
	Profile string

	PostProcessEnabled bool
	PostProcessProvider string
	PostProcessModel string
	PostProcessPrompt string

	WordCorrectionThreshold float64

	OutputMethod OutputMethod
	ClipboardDiscipline ClipboardDiscipline
	ConvertLFToCRLF bool
	PasteDelay time.Duration

	AutoStop AutoStopConfig
	Stream StreamTuning

	CustomWordsEnabled bool
	CustomWordsNgramEnabled bool
	CustomWords []string

	TextReplacementsEnabled bool
	TextReplacements []TextReplacement

	PrevTranscript PrevTranscriptConfig

	ZeroWidthFilterEnabled bool
	TranslateToEnglish bool
}

const (
	minKeepaliveInterval = 5 * time.Second
	maxKeepaliveInterval = 20 * time.Second

	minLiveFinalizeTimeout = 100 * time.Millisecond
	maxLiveFinalizeTimeout = 20 * time.Second

	minMaxEndpointDelay = 500 * time.Millisecond
	maxMaxEndpointDelay = 3 * time.Second

	minPrevTranscriptWords = 1
	maxPrevTranscriptWords = 2000
	minPrevTranscriptExpiry = 10 * time.Second
	maxPrevTranscriptExpiry = 86400 * time.Second
)

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp enforces every numeric bound in place, so a Snapshot is
// always safe to use once loaded.
func (s *Snapshot) Clamp() {
	s.Stream.KeepaliveInterval = clampDuration(s.Stream.KeepaliveInterval, minKeepaliveInterval, maxKeepaliveInterval)
	s.Stream.LiveFinalizeTimeout = clampDuration(s.Stream.LiveFinalizeTimeout, minLiveFinalizeTimeout, maxLiveFinalizeTimeout)
	s.Stream.MaxEndpointDelay = clampDuration(s.Stream.MaxEndpointDelay, minMaxEndpointDelay, maxMaxEndpointDelay)

	s.PrevTranscript.MaxWords = clampInt(s.PrevTranscript.MaxWords, minPrevTranscriptWords, maxPrevTranscriptWords)
	s.PrevTranscript.Expiry = clampDuration(s.PrevTranscript.Expiry, minPrevTranscriptExpiry, maxPrevTranscriptExpiry)

	if s.WordCorrectionThreshold < 0 {
		s.WordCorrectionThreshold = 0
	}
	if s.WordCorrectionThreshold > 1 {
		s.WordCorrectionThreshold = 1
	}
}

// Load reads configuration from (in ascending priority) a config file,
// environment variables prefixed DICTATOR_, and whatever has already been
// bound to the passed-in viper instance (e.g. pflag values). Returns a
// clamped Snapshot.
func Load(v *viper.Viper) (Snapshot, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("DICTATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Snapshot{}, err
		}
	}

	snap := Snapshot{
		Provider: TranscriptionProvider(v.GetString("provider")),
		Language: v.GetString("language"),
		Profile: v.GetString("profile"),

		PostProcessEnabled: v.GetBool("post_process.enabled"),
		PostProcessProvider: v.GetString("post_process.provider"),
		PostProcessModel: v.GetString("post_process.model"),
		PostProcessPrompt: v.GetString("post_process.prompt"),

		WordCorrectionThreshold: v.GetFloat64("word_correction_threshold"),

		OutputMethod: OutputMethod(v.GetString("output.method")),
		ClipboardDiscipline: ClipboardDiscipline(v.GetString("output.clipboard_discipline")),
		ConvertLFToCRLF: v.GetBool("output.convert_lf_to_crlf"),
		PasteDelay: v.GetDuration("output.paste_delay"),

		AutoStop: AutoStopConfig{
			Enabled: v.GetBool("auto_stop.enabled"),
			Timeout: v.GetDuration("auto_stop.timeout"),
			Paste: v.GetBool("auto_stop.paste"),
		},
		Stream: StreamTuning{
			KeepSafetyBuffer: v.GetBool("stream.keep_safety_buffer"),
			FuzzyOnStreaming: v.GetBool("stream.fuzzy_on_streaming"),
			KeepaliveInterval: v.GetDuration("stream.keepalive_interval"),
			LiveFinalizeTimeout: v.GetDuration("stream.live_finalize_timeout"),
			MaxEndpointDelay: v.GetDuration("stream.max_endpoint_delay"),
		},

		CustomWordsEnabled: v.GetBool("custom_words.enabled"),
		CustomWordsNgramEnabled: v.GetBool("custom_words.ngram_enabled"),
		CustomWords: v.GetStringSlice("custom_words.words"),

		TextReplacementsEnabled: v.GetBool("text_replacements.enabled"),

		PrevTranscript: PrevTranscriptConfig{
			MaxWords: v.GetInt("prev_transcript.max_words"),
			Expiry: v.GetDuration("prev_transcript.expiry"),
		},

		ZeroWidthFilterEnabled: v.GetBool("post_process.zero_width_filter"),
		TranslateToEnglish: v.GetBool("translate_to_english"),
	}

	var rules []TextReplacement
	if err := v.UnmarshalKey("text_replacements.rules", &rules); err == nil {
		snap.TextReplacements = rules
	}

	snap.Clamp()
	return snap, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", string(ProviderRemoteStreaming))
	v.SetDefault("language", "auto")
	v.SetDefault("word_correction_threshold", 0.5)
	v.SetDefault("output.method", string(OutputDirect))
	v.SetDefault("output.clipboard_discipline", string(ClipboardDontModify))
	v.SetDefault("output.paste_delay", 50*time.Millisecond)
	v.SetDefault("auto_stop.timeout", 30*time.Second)
	v.SetDefault("stream.keepalive_interval", 10*time.Second)
	v.SetDefault("stream.live_finalize_timeout", 5*time.Second)
	v.SetDefault("stream.max_endpoint_delay", 1500*time.Millisecond)
	v.SetDefault("custom_words.ngram_enabled", true)
	v.SetDefault("prev_transcript.max_words", 200)
	v.SetDefault("prev_transcript.expiry", 5*time.Minute)
}
