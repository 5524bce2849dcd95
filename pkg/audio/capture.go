package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/dictation-tools/dictator/pkg/logging"
)

const (
	deviceSampleRate = 16000
	deviceChannels = 1
)

// Device captures 16 kHz mono float32 samples from the system
// microphone via malgo. It implements session.Capturer.
//
// Device selection (the "clamshell" alt-device override) is left to
// whichever malgo.Context.Devices the caller picks; NewDeviceWithID
// accepts that id directly rather than this package re-deriving it.
type Device struct {
	mu sync.Mutex
	log logging.Logger
	deviceID malgo.DeviceID
	hasID bool
	mctx *malgo.AllocatedContext
	dev *malgo.Device
	open bool
	frameCb func([]byte)
}

// NewDevice builds a Device bound to the system default input device.
func NewDevice(log logging.Logger) *Device {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Device{log: log}
}

// NewDeviceWithID builds a Device bound to a specific input device,
// e.g. an alternate microphone selected when the laptop lid closes.
func NewDeviceWithID(id malgo.DeviceID, log logging.Logger) *Device {
	d := NewDevice(log)
	d.deviceID = id
	d.hasID = true
	return d
}

func (d *Device) Open()error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = deviceChannels
	cfg.SampleRate = deviceSampleRate
	cfg.Alsa.NoMMap = 1
	if d.hasID {
		cfg.Capture.DeviceID = d.deviceID
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: d.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("init audio device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		mctx.Uninit()
		return fmt.Errorf("start audio device: %w", err)
	}

	d.mctx = mctx
	d.dev = dev
	d.open = true
	return nil
}

func (d *Device) onSamples(_, pInput []byte, _ uint32) {
	d.mu.Lock()
	cb := d.frameCb
	d.mu.Unlock()
	if cb != nil && pInput != nil {
		cb(pInput)
	}
}

func (d *Device) Close()error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil
	}
	d.dev.Uninit()
	d.mctx.Uninit()
	d.dev = nil
	d.mctx = nil
	d.open = false
	return nil
}

func (d *Device) IsOpen()bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *Device) SetFrameCallback(cb func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameCb = cb
}
