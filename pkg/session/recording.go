package session

import (
	"sync"

	"github.com/dictation-tools/dictator/pkg/logging"
)

// recordingState is the two-state machine from "Recording session".
type recordingState int

const (
	stateIdle recordingState = iota
	stateRecording
)

const (
	sampleRate = 16000
	bytesPerSample = 4 // 32-bit float
	minDurationSecs = 1.0
	padToDurationSecs = 1.25
)

// Capturer is the external audio-I/O collaborator ("out of
// scope"): it owns the physical device and hands back raw 16 kHz mono
// float32 samples. pkg/audio.Device implements this over malgo.
type Capturer interface {
	Open() error
	Close() error
	IsOpen() bool
	// SetFrameCallback installs (or, with nil, removes) a per-frame
	// callback invoked with raw float32-LE sample bytes as they arrive.
	SetFrameCallback(cb func([]byte))
}

// Mutter optionally mutes system output audio while recording, so the
// user doesn't hear their own voice loop back through speakers. On
// platforms without a native mute API this is a no-op that always
// succeeds.
type Mutter interface {
	Mute() error
	Unmute() error
}

// RecordingManager owns the capture device and the recording state
// machine. Exactly one binding may be "Recording" at a time.
type RecordingManager struct {
	mu sync.Mutex
	log logging.Logger
	cap Capturer
	mute Mutter
	muted bool

	onDemand bool // closes the stream after each session when true

	state recordingState
	activeBind BindingID
	buf []byte
}

func NewRecordingManager(cap Capturer, mute Mutter, onDemand bool, log logging.Logger) *RecordingManager {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &RecordingManager{cap: cap, mute: mute, onDemand: onDemand, log: log}
}

// StartMicrophoneStream opens the device if not already open. Idempotent.
func (m *RecordingManager) StartMicrophoneStream()error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startStreamLocked()
}

func (m *RecordingManager) startStreamLocked()error {
	if m.cap.IsOpen() {
		return nil
	}
	if err := m.cap.Open(); err != nil {
		m.log.Error("failed to open audio device", "err", err)
		return ErrDeviceOpenFailed
	}
	return nil
}

// TryStartRecording attempts Idle -> Recording{bindingID}. Returns false
// if a recording is already active (no side effects in that case).
func (m *RecordingManager) TryStartRecording(bindingID BindingID, applyMute bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateRecording {
		return false
	}

	if m.onDemand {
		if err := m.startStreamLocked(); err != nil {
			return false
		}
	}

	m.state = stateRecording
	m.activeBind = bindingID
	m.buf = m.buf[:0]

	if applyMute {
		m.applyMuteLocked()
	}
	return true
}

// StopRecording returns the captured buffer if bindingID owns the active
// recording, padding short buffers up to 1.25s.
func (m *RecordingManager) StopRecording(bindingID BindingID) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateRecording || m.activeBind != bindingID {
		return nil
	}

	buf := m.buf
	m.buf = nil
	m.state = stateIdle
	m.activeBind = ""
	m.removeMuteLocked()

	if m.onDemand {
		_ = m.cap.Close()
	}

	return padToMinDuration(buf)
}

func padToMinDuration(buf []byte) []byte {
	minBytes := int(minDurationSecs * sampleRate * bytesPerSample)
	if len(buf) >= minBytes {
		return buf
	}
	padBytes := int(padToDurationSecs*sampleRate*bytesPerSample) - len(buf)
	padded := make([]byte, len(buf)+padBytes)
	copy(padded, buf)
	return padded
}

// CancelRecording drops any buffered audio without returning it.
func (m *RecordingManager) CancelRecording() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateRecording {
		return
	}
	m.buf = nil
	m.state = stateIdle
	m.activeBind = ""
	m.removeMuteLocked()
	if m.onDemand {
		_ = m.cap.Close()
	}
}

func (m *RecordingManager) applyMuteLocked() {
	if m.mute == nil || m.muted {
		return
	}
	if err := m.mute.Mute(); err != nil {
		m.log.Warn("mute failed, continuing unmuted", "err", err)
		return
	}
	m.muted = true
}

func (m *RecordingManager) removeMuteLocked() {
	if m.mute == nil || !m.muted {
		return
	}
	if err := m.mute.Unmute(); err != nil {
		m.log.Warn("unmute failed", "err", err)
	}
	m.muted = false
}

// InvalidateRecorder refuses while Recording is active; otherwise it
// tears down and reopens the capture device (e.g. after a VAD setting
// change).
func (m *RecordingManager) InvalidateRecorder()error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == stateRecording {
		return ErrRecorderBusy
	}
	wasOpen := m.cap.IsOpen()
	if wasOpen {
		_ = m.cap.Close()
	}
	if wasOpen {
		return m.startStreamLocked()
	}
	return nil
}

// SetStreamFrameCallback installs the per-frame forwarder used by the
// streaming path. Passing nil removes it.
func (m *RecordingManager) SetStreamFrameCallback(cb func([]byte)) {
	m.cap.SetFrameCallback(cb)
}

// AppendFrame is invoked by the capture callback on the audio thread; it
// must not block, so it only appends under the lock. Used by the batch
// path to accumulate the full clip.
func (m *RecordingManager) AppendFrame(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateRecording {
		return
	}
	m.buf = append(m.buf, frame...)
}

func (m *RecordingManager) IsRecording()bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRecording
}

func (m *RecordingManager) ActiveBinding() (BindingID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeBind, m.state == stateRecording
}
