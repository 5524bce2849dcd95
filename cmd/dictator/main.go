// Command dictator runs the desktop dictation daemon: it owns the
// microphone, speaks to the configured STT/LLM providers, and injects
// the resulting text into the foreground application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dictation-tools/dictator/pkg/audio"
	"github.com/dictation-tools/dictator/pkg/connector"
	"github.com/dictation-tools/dictator/pkg/dispatch"
	"github.com/dictation-tools/dictator/pkg/download"
	"github.com/dictation-tools/dictator/pkg/logging"
	"github.com/dictation-tools/dictator/pkg/output"
	"github.com/dictation-tools/dictator/pkg/providers/llm"
	"github.com/dictation-tools/dictator/pkg/providers/stt"
	"github.com/dictation-tools/dictator/pkg/session"
	"github.com/dictation-tools/dictator/pkg/settings"
	"github.com/dictation-tools/dictator/pkg/textproc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Note: no .env file found, using system environment variables")
	}

	log, err := logging.NewProductionZapLogger()
	if err != nil {
		fmt.Println("failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	snap, err := settings.Load(viper.New())
	if err != nil {
		log.Error("failed to load settings", "err", err)
		os.Exit(1)
	}

	sonioxKey := os.Getenv("SONIOX_API_KEY")
	if sonioxKey == "" {
		log.Error("SONIOX_API_KEY must be set")
		os.Exit(1)
	}

	streamingSTT := stt.NewSonioxStreamingProvider(sonioxKey, "stt-rt-v4", log)
	batchSTT := stt.NewRemoteBatchSTT(sonioxKey, "stt-async-v4", "https://api.soniox.com", log)

	var postLLM session.LLMProvider
	if snap.PostProcessEnabled {
		switch settings.TranscriptionProvider(snap.PostProcessProvider) {
		case "anthropic":
			if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
				postLLM = llm.NewAnthropicLLM(key, snap.PostProcessModel)
			}
		default:
			if key := os.Getenv("LLM_API_KEY"); key != "" {
				postLLM = llm.NewHTTPChatLLM("llm", key, os.Getenv("LLM_API_URL"), snap.PostProcessModel)
			}
		}
		if postLLM == nil {
			log.Warn("post-process enabled but no matching provider credentials found, disabling")
			snap.PostProcessEnabled = false
		}
	}

	device := audio.NewDevice(log)
	streaming := snap.Provider == settings.ProviderRemoteStreaming
	onDemand := !streaming
	recorder := session.NewRecordingManager(device, noopMutter{}, onDemand, log)

	var streamMu sync.Mutex
	var streamCh chan<- []byte
	recorder.SetStreamFrameCallback(func(frame []byte) {
		streamMu.Lock()
		ch := streamCh
		streamMu.Unlock()
		if ch != nil {
			ch <- audio.FloatToPCM16LE(frame)
			return
		}
		recorder.AppendFrame(frame)
	})
	if !onDemand {
		if err := recorder.StartMicrophoneStream(); err != nil {
			log.Error("failed to open microphone for always-on capture", "err", err)
			os.Exit(1)
		}
	}

	decap := textproc.NewDecapitalizeState()
	tracker := session.NewOperationTracker()
	orchestrator := session.NewLLMOrchestrator(tracker, snap.ZeroWidthFilterEnabled, log)
	autoStop := session.NewAutoStopTimer()

	keys := output.NewLinuxKeystroker()
	injector := output.NewInjector(keys, log)

	dlDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "dictator", "models")
	downloader := download.NewManager(dlDir, log)
	if err := downloader.SweepStaleExtractions(); err != nil {
		log.Warn("failed to sweep stale model extractions", "err", err)
	}

	var webhook *connector.Client
	if os.Getenv("DICTATOR_CONNECTOR_ENABLED") == "1" {
		webhook = connector.NewClient(connector.Config{
			Host: os.Getenv("DICTATOR_CONNECTOR_HOST"),
			Path: os.Getenv("DICTATOR_CONNECTOR_PATH"),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := dispatch.NewDispatcher(func(session.BindingID) dispatch.Mode {
		if snap.Stream.KeepSafetyBuffer {
			return dispatch.ModePushToTalk
		}
		return dispatch.ModeToggle
	}, decap, 500*time.Millisecond, log)

	disp.SetCancelHandler(func() {
		streamingSTT.Cancel()
		tracker.Cancel()
		autoStop.Cancel()
		recorder.CancelRecording()
	})

	var activeStreamPP *session.StreamPostProcessor

	disp.RegisterBinding(session.BindingTranscribe, dispatch.Action{
		Start: func(bindingID session.BindingID) {
			if !recorder.TryStartRecording(bindingID, true) {
				return
			}
			log.Info("recording started", "binding", bindingID)

			if streaming {
				pp := session.NewStreamPostProcessor(session.PostProcessorConfig{
					KeepSafetyBuffer: snap.Stream.KeepSafetyBuffer,
					FuzzyEnabled: snap.CustomWordsEnabled,
					CustomWords: snap.CustomWords,
					WordCorrectionThreshold: snap.WordCorrectionThreshold,
					NgramEnabled: snap.CustomWordsNgramEnabled,
					Replacements: toReplacementRules(snap.TextReplacements),
					Decap: decap,
					Log: log,
				})
				activeStreamPP = pp

				ch, err := streamingSTT.StreamTranscribe(ctx, snap.Language, func(text string, isFinal bool) error {
					if !isFinal {
						return nil
					}
					delta := pp.PushChunk(text)
					if delta == "" {
						return nil
					}
					return injector.Deliver(delta, snap.OutputMethod, snap.ClipboardDiscipline, snap.ConvertLFToCRLF)
				})
				if err != nil {
					log.Error("failed to start streaming transcription", "err", err)
					recorder.CancelRecording()
					return
				}
				streamMu.Lock()
				streamCh = ch
				streamMu.Unlock()
			}

			if snap.AutoStop.Enabled {
				autoStop.Start(snap.AutoStop.Timeout, func() {
					log.Info("auto-stop fired", "binding", bindingID)
					disp.ResetToggle(bindingID)
					recorder.StopRecording(bindingID)
				})
			}
		},
		Stop: func(bindingID session.BindingID) {
			autoStop.Cancel()
			buf := recorder.StopRecording(bindingID)

			if streaming {
				streamMu.Lock()
				streamCh = nil
				streamMu.Unlock()
				if _, err := streamingSTT.FinalizeAndStop(int(snap.Stream.LiveFinalizeTimeout / time.Millisecond)); err != nil {
					log.Error("streaming transcription failed", "err", err)
				}
				if activeStreamPP != nil {
					if tail := activeStreamPP.Flush(); tail != "" {
						if err := injector.Deliver(tail, snap.OutputMethod, snap.ClipboardDiscipline, snap.ConvertLFToCRLF); err != nil {
							log.Error("output injection failed", "err", err)
						}
					}
					activeStreamPP = nil
				}
				return
			}

			if buf == nil {
				return
			}
			go handleRecording(ctx, buf, snap, batchSTT, postLLM, orchestrator, injector, webhook, log)
		},
	})

	log.Info("dictator daemon started", "provider", snap.Provider, "language", snap.Language)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

func handleRecording(ctx context.Context, pcmFloat []byte, snap settings.Snapshot, batchSTT session.STTProvider, postLLM session.LLMProvider, orchestrator *session.LLMOrchestrator, injector *output.Injector, webhook *connector.Client, log logging.Logger) {
	pcm16 := audio.FloatToPCM16LE(pcmFloat)
	wav := audio.NewWavBuffer(pcm16, 16000)

	text, err := batchSTT.Transcribe(ctx, wav, snap.Language)
	if err != nil {
		log.Error("transcription failed", "err", err)
		return
	}
	text = textproc.FilterHallucinations(text)

	if snap.CustomWordsEnabled {
		text = textproc.ApplyCustomWords(text, snap.CustomWords, snap.WordCorrectionThreshold, snap.CustomWordsNgramEnabled)
	}

	if postLLM != nil {
		result := orchestrator.PostProcess(ctx, session.Request{
			Enabled: snap.PostProcessEnabled,
			Provider: postLLM,
			Model: snap.PostProcessModel,
			Prompt: snap.PostProcessPrompt,
			Vars: session.TemplateVars{Output: text, Language: snap.Language, TimeLocal: time.Now()},
		})
		if result.Outcome == session.OutcomeProcessed {
			text = result.Text
		}
	}

	if err := injector.Deliver(text, snap.OutputMethod, snap.ClipboardDiscipline, snap.ConvertLFToCRLF); err != nil {
		log.Error("output injection failed", "err", err)
	}

	if webhook != nil {
		if err := webhook.Send(text); err != nil {
			log.Warn("connector webhook send failed", "err", err)
		}
	}
}

func toReplacementRules(rules []settings.TextReplacement) []textproc.Rule {
	out := make([]textproc.Rule, len(rules))
	for i, r := range rules {
		out[i] = textproc.Rule{
			From: r.From,
			To: r.To,
			Enabled: r.Enabled,
			IsRegex: r.IsRegex,
			CaseSensitive: r.CaseSensitive,
		}
	}
	return out
}

type noopMutter struct{}

func (noopMutter) Mute()error { return nil }
func (noopMutter) Unmute()error { return nil }
