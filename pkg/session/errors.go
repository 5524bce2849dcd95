package session

import "errors"

var (
	ErrAlreadyRecording = errors.New("a different binding already owns the recorder")

	ErrNotRecording = errors.New("stop/cancel called but no recording is active")

	ErrDeviceOpenFailed = errors.New("failed to open audio capture device")

	ErrEmptyTranscription = errors.New("transcription returned empty text")

	ErrStreamingProtocol = errors.New("streaming transcription protocol error")

	ErrStreamingClosedEarly = errors.New("streaming socket closed before completion")

	ErrNilProvider = errors.New("required provider is nil")

	ErrRecorderBusy = errors.New("cannot invalidate recorder while recording is active")
)
