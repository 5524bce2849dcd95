package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dictation-tools/dictator/pkg/logging"
	"github.com/dictation-tools/dictator/pkg/session"
)

const (
	sonioxWSURL = "wss://stt-rt.soniox.com/transcribe-websocket"
	sonioxConnectTimeout = 10 * time.Second
	sonioxAudioQueueCapacity = 256

	defaultKeepaliveIntervalSeconds = 10
	minKeepaliveIntervalSeconds = 5
	maxKeepaliveIntervalSeconds = 20

	minFinalizeTimeoutMs = 100
	maxFinalizeTimeoutMs = 20000

	minEndpointDelayMs = 500
	maxEndpointDelayMs = 3000
)

// StreamOptions configures one Soniox realtime session.
type StreamOptions struct {
	LanguageHints []string
	LanguageHintsStrict bool
	EnableSpeakerDiarization bool
	EnableLanguageID bool
	EnableEndpointDetection bool
	MaxEndpointDelayMs int
	KeepaliveIntervalSeconds int
	Context json.RawMessage
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

// isRealtimeModel mirrors the reference implementation's "stt-rt" prefix
// check: an empty model defaults to realtime.
func isRealtimeModel(model string) bool {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return true
	}
	return strings.HasPrefix(trimmed, "stt-rt")
}

// normalizeModelForRealtime remaps the async model family onto its
// realtime counterpart (supplement, : "stt-async-v{N}" ->
// "stt-rt-v{N}"), defaulting to stt-rt-v4 when unset.
func normalizeModelForRealtime(model string) string {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return "stt-rt-v4"
	}
	if version, ok := strings.CutPrefix(trimmed, "stt-async-v"); ok {
		return "stt-rt-v" + version
	}
	return trimmed
}

type startRequest struct {
	APIKey string `json:"api_key"`
	Model string `json:"model"`
	AudioFormat string `json:"audio_format"`
	SampleRate int `json:"sample_rate"`
	NumChannels int `json:"num_channels"`
	LanguageHints []string `json:"language_hints,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
	LanguageHintsStrict bool `json:"language_hints_strict"`
	EnableSpeakerDiarization bool `json:"enable_speaker_diarization"`
	EnableLanguageID bool `json:"enable_language_identification"`
	EnableEndpointDetection bool `json:"enable_endpoint_detection"`
	MaxEndpointDelayMs int `json:"max_endpoint_delay_ms"`
}

type sonioxToken struct {
	Text string `json:"text"`
	IsFinal bool `json:"is_final"`
}

type sonioxResponse struct {
	Tokens []sonioxToken `json:"tokens"`
	Finished bool `json:"finished"`
	ErrorCode *int `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type controlMessage int

const (
	controlFinalize controlMessage = iota
	controlFinish
	controlCancel
)

// activeSession is the live state of one in-flight realtime connection.
type activeSession struct {
	bindingID string
	audioCh chan []byte
	controlCh chan controlMessage
	done chan struct{} // closed when the session goroutine exits
	runErr error
	finalMu sync.Mutex
	finalText strings.Builder
	generation uint64
}

// SonioxStreamingProvider implements session.StreamingSTTProvider (and
// session.STTProvider) against Soniox's realtime WebSocket protocol
//, grounded on the reference implementation's
// SonioxRealtimeManager.
type SonioxStreamingProvider struct {
	apiKey string
	model string
	wsURL string
	log logging.Logger

	mu sync.Mutex
	active *activeSession
	generation uint64
}

func NewSonioxStreamingProvider(apiKey, model string, log logging.Logger) *SonioxStreamingProvider {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &SonioxStreamingProvider{apiKey: apiKey, model: model, wsURL: sonioxWSURL, log: log}
}

func (p *SonioxStreamingProvider) Name()string { return "soniox" }

// StreamTranscribe opens a new realtime session and returns a channel
// the caller feeds raw PCM16LE mono 16kHz frames into. onTranscript is
// invoked with the final text newly received in each server frame
// (isFinal=true) or with interim text (isFinal=false) as tokens arrive.
func (p *SonioxStreamingProvider) StreamTranscribe(ctx context.Context, lang string, onTranscript func(text string, isFinal bool) error) (chan<- []byte, error) {
	return p.StartSession(ctx, "", StreamOptions{LanguageHints: languageHintsFor(lang)}, onTranscript)
}

func languageHintsFor(lang string) []string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return nil
	}
	return []string{lang}
}

// StartSession is the full-featured entry point;
// StreamTranscribe is a thin adapter over it for the generic
// session.StreamingSTTProvider interface.
func (p *SonioxStreamingProvider) StartSession(ctx context.Context, bindingID string, opts StreamOptions, onFinalChunk func(text string, isFinal bool) error) (chan<- []byte, error) {
	url := p.wsURL
	if url == "" {
		url = sonioxWSURL
	}
	return p.startSessionAt(ctx, url, bindingID, opts, onFinalChunk)
}

// startSessionAt is StartSession with an explicit WebSocket URL, split
// out so tests can point the client at a local test server.
func (p *SonioxStreamingProvider) startSessionAt(ctx context.Context, wsURL, bindingID string, opts StreamOptions, onFinalChunk func(text string, isFinal bool) error) (chan<- []byte, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, errors.New("soniox: api key is missing")
	}

	model := normalizeModelForRealtime(p.model)
	if !isRealtimeModel(model) {
		return nil, fmt.Errorf("soniox: live mode requires a realtime model (stt-rt-*), got %q", model)
	}

	keepalive := opts.KeepaliveIntervalSeconds
	if keepalive == 0 {
		keepalive = defaultKeepaliveIntervalSeconds
	}
	keepalive = clampInt(keepalive, minKeepaliveIntervalSeconds, maxKeepaliveIntervalSeconds)

	hints, rejected := NormalizeHintList(opts.LanguageHints)
	if len(rejected) > 0 {
		p.log.Warn("ignoring unsupported soniox language hints", "rejected", rejected)
	}

	maxEndpointDelay := opts.MaxEndpointDelayMs
	if maxEndpointDelay == 0 {
		maxEndpointDelay = 2000
	}
	maxEndpointDelay = clampInt(maxEndpointDelay, minEndpointDelayMs, maxEndpointDelayMs)

	req := startRequest{
		APIKey: p.apiKey,
		Model: model,
		AudioFormat: "pcm_s16le",
		SampleRate: 16000,
		NumChannels: 1,
		LanguageHints: hints,
		Context: opts.Context,
		LanguageHintsStrict: opts.LanguageHintsStrict,
		EnableSpeakerDiarization: opts.EnableSpeakerDiarization,
		EnableLanguageID: opts.EnableLanguageID,
		EnableEndpointDetection: opts.EnableEndpointDetection,
		MaxEndpointDelayMs: maxEndpointDelay,
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, sonioxConnectTimeout)
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	cancelDial()
	if err != nil {
		return nil, fmt.Errorf("soniox: failed to connect: %w", err)
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "failed to send start request")
		return nil, fmt.Errorf("soniox: failed to send start request: %w", err)
	}

	p.mu.Lock()
	p.generation++
	generation := p.generation
	p.mu.Unlock()

	sess := &activeSession{
		bindingID: bindingID,
		audioCh: make(chan []byte, sonioxAudioQueueCapacity),
		controlCh: make(chan controlMessage, 4),
		done: make(chan struct{}),
		generation: generation,
	}

	p.mu.Lock()
	p.active = sess
	p.mu.Unlock()

	go p.runSessionLoop(ctx, conn, sess, keepalive, onFinalChunk)

	return sess.audioCh, nil
}

func (p *SonioxStreamingProvider) runSessionLoop(ctx context.Context, conn *websocket.Conn, sess *activeSession, keepaliveSeconds int, onChunk func(string, bool) error) {
	defer close(sess.done)

	frameCh := make(chan frameOrErr, 1)
	go func() {
		for {
			mt, payload, err := conn.Read(ctx)
			select {
			case frameCh <- frameOrErr{mt: mt, payload: payload, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Duration(keepaliveSeconds) * time.Second)
	defer ticker.Stop()

	lastActivity := time.Now()
	finished := false

	finish := func(err error) {
		sess.runErr = err
	}

loop:
	for {
		select {
		case <-ctx.Done():
			finish(ctx.Err())
			break loop

		case control := <-sess.controlCh:
			switch control {
			case controlFinalize:
				if err := wsjson.Write(ctx, conn, map[string]string{"type": "finalize"}); err != nil {
					finish(fmt.Errorf("soniox: finalize failed: %w", err))
					break loop
				}
				lastActivity = time.Now()
			case controlFinish:
				if err := conn.Write(ctx, websocket.MessageBinary, nil); err != nil {
					finish(fmt.Errorf("soniox: finish failed: %w", err))
					break loop
				}
			case controlCancel:
				conn.Close(websocket.StatusNormalClosure, "cancelled")
				finish(nil)
				return
			}

		case chunk, ok := <-sess.audioCh:
			if !ok {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				finish(fmt.Errorf("soniox: failed to send audio: %w", err))
				break loop
			}
			lastActivity = time.Now()

		case f := <-frameCh:
			if f.err != nil {
				if finished {
					break loop
				}
				finish(fmt.Errorf("soniox: websocket read failed: %w", f.err))
				break loop
			}

			switch f.mt {
			case websocket.MessageText:
				var resp sonioxResponse
				if err := json.Unmarshal(f.payload, &resp); err != nil {
					finish(fmt.Errorf("soniox: invalid payload: %w", err))
					break loop
				}
				if resp.ErrorCode != nil {
					msg := resp.ErrorMessage
					if msg == "" {
						msg = "unknown soniox websocket error"
					}
					finish(fmt.Errorf("soniox: error %d: %s", *resp.ErrorCode, msg))
					break loop
				}

				var chunkText, interimText strings.Builder
				for _, tok := range resp.Tokens {
					if tok.Text == "" || tok.Text == "<fin>" || tok.Text == "<end>" {
						continue
					}
					if tok.IsFinal {
						chunkText.WriteString(tok.Text)
					} else {
						interimText.WriteString(tok.Text)
					}
				}

				if chunkText.Len() > 0 {
					sess.finalMu.Lock()
					sess.finalText.WriteString(chunkText.String())
					sess.finalMu.Unlock()
					if onChunk != nil {
						if err := onChunk(chunkText.String(), true); err != nil {
							finish(err)
							break loop
						}
					}
				}

				if resp.Finished {
					interimText.Reset()
				} else if onChunk != nil && interimText.Len() > 0 {
					if err := onChunk(interimText.String(), false); err != nil {
						finish(err)
						break loop
					}
				}

				if resp.Finished {
					finished = true
					break loop
				}

			case websocket.MessageBinary:
				// ignored
			}

		case <-ticker.C:
			if time.Since(lastActivity) >= time.Duration(keepaliveSeconds)*time.Second {
				if err := wsjson.Write(ctx, conn, map[string]string{"type": "keepalive"}); err != nil {
					finish(fmt.Errorf("soniox: keepalive failed: %w", err))
					break loop
				}
				lastActivity = time.Now()
			}
		}
	}

	if !finished && sess.runErr == nil {
		sess.runErr = errors.New("soniox: websocket closed before completion")
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

type frameOrErr struct {
	mt websocket.MessageType
	payload []byte
	err error
}

// FinalizeAndStop implements 's finalize/stop contract: it
// requests a manual finalize then a graceful finish, waits up to
// timeoutMs (clamped 100-20000ms) for the session to complete, and
// always returns whatever final text accumulated even on error/timeout.
func (p *SonioxStreamingProvider) FinalizeAndStop(timeoutMs int) (string, error) {
	p.mu.Lock()
	sess := p.active
	p.active = nil
	p.mu.Unlock()

	if sess == nil {
		return "", nil
	}

	select {
	case sess.controlCh <- controlFinalize:
	default:
	}
	select {
	case sess.controlCh <- controlFinish:
	default:
	}

	wait := time.Duration(clampInt(timeoutMs, minFinalizeTimeoutMs, maxFinalizeTimeoutMs)) * time.Millisecond

	readFinal := func() string {
		sess.finalMu.Lock()
		defer sess.finalMu.Unlock()
		return strings.TrimSpace(sess.finalText.String())
	}

	select {
	case <-sess.done:
		if sess.runErr != nil {
			if partial := readFinal(); partial != "" {
				p.log.Warn("soniox session ended with error after partial output", "binding", sess.bindingID, "err", sess.runErr)
				return partial, nil
			}
			return "", sess.runErr
		}
		return readFinal(), nil

	case <-time.After(wait):
		if partial := readFinal(); partial != "" {
			p.log.Warn("soniox session timed out after partial output", "binding", sess.bindingID, "wait", wait)
			return partial, nil
		}
		return "", errors.New("soniox: timed out waiting for session completion")
	}
}

// Cancel abandons the active session without waiting for completion.
// Idempotent: calling it with no active session is a no-op.
func (p *SonioxStreamingProvider) Cancel() {
	p.mu.Lock()
	sess := p.active
	p.active = nil
	p.mu.Unlock()

	if sess == nil {
		return
	}
	select {
	case sess.controlCh <- controlCancel:
	default:
	}
}

// Transcribe adapts the realtime protocol to the one-shot STTProvider
// interface: the whole buffer is streamed in, immediately finalized,
// and the accumulated final text returned.
func (p *SonioxStreamingProvider) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	var final strings.Builder
	audioCh, err := p.StartSession(ctx, "", StreamOptions{LanguageHints: languageHintsFor(lang)}, func(text string, isFinal bool) error {
		if isFinal {
			final.WriteString(text)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	select {
	case audioCh <- pcm:
	case <-ctx.Done():
		p.Cancel()
		return "", ctx.Err()
	}

	text, err := p.FinalizeAndStop(5000)
	if err != nil {
		return "", err
	}
	if text != "" {
		return text, nil
	}
	return strings.TrimSpace(final.String()), nil
}

var _ session.StreamingSTTProvider = (*SonioxStreamingProvider)(nil)
