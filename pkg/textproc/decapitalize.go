package textproc

import (
	"sync"
	"time"
	"unicode"
)

// DecapitalizeState is the passive-monitor one-shot trigger: it causes
// the first alphabetic character of the next released chunk to be
// lowercased.
//
// Two independent arming paths exist because the monitor key can fire
// either while output is still streaming (realtime) or after a batch
// recording has finished pasting (standard). pendingUntil guards the
// former; standardPostRecordingPending plus the monitor window guards
// the latter.
type DecapitalizeState struct {
	mu sync.Mutex

	pendingUntil time.Time // zero = not armed

	standardPostRecordingMonitorUntil time.Time // zero = monitor inactive
	standardPostRecordingPending bool

	now func() time.Time
}

func NewDecapitalizeState() *DecapitalizeState {
	return &DecapitalizeState{now: time.Now}
}

// MarkEditKeyPressed arms the immediate realtime trigger for timeout,
// and — if the standard post-recording monitor window is currently
// active — also arms the standard-path trigger.
func (d *DecapitalizeState) MarkEditKeyPressed(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pendingUntil = now.Add(timeout)

	if !d.standardPostRecordingMonitorUntil.IsZero() && now.Before(d.standardPostRecordingMonitorUntil) {
		d.standardPostRecordingPending = true
	}
}

// BeginStandardPostRecordingMonitor opens a window (e.g. for the
// duration batch output injection takes) during which a monitor
// keypress also arms the standard-path trigger.
func (d *DecapitalizeState) BeginStandardPostRecordingMonitor(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.standardPostRecordingMonitorUntil = d.now().Add(window)
}

func (d *DecapitalizeState) IsStandardPostRecordingMonitorActive()bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.standardPostRecordingMonitorUntil.IsZero() && d.now().Before(d.standardPostRecordingMonitorUntil)
}

// MaybeDecapitalizeNextChunkRealtime checks only the realtime trigger.
func (d *DecapitalizeState) MaybeDecapitalizeNextChunkRealtime(chunk string) string {
	d.mu.Lock()
	pending := d.isTriggerPendingLocked()
	if pending {
		d.consumeTriggerLocked()
	}
	d.mu.Unlock()

	if !pending {
		return chunk
	}
	return decapitalizeFirstAlpha(chunk)
}

// MaybeDecapitalizeNextChunkStandard checks the realtime trigger OR the
// standard post-recording pending flag.
func (d *DecapitalizeState) MaybeDecapitalizeNextChunkStandard(chunk string) string {
	d.mu.Lock()
	pending := d.isTriggerPendingLocked() || d.standardPostRecordingPending
	if pending {
		d.consumeTriggerLocked()
		d.standardPostRecordingPending = false
	}
	d.mu.Unlock()

	if !pending {
		return chunk
	}
	return decapitalizeFirstAlpha(chunk)
}

func (d *DecapitalizeState) isTriggerPendingLocked()bool {
	return !d.pendingUntil.IsZero() && d.now().Before(d.pendingUntil)
}

func (d *DecapitalizeState) consumeTriggerLocked() {
	d.pendingUntil = time.Time{}
}

func decapitalizeFirstAlpha(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if unicode.IsUpper(r) {
				runes[i] = unicode.ToLower(r)
			}
			return string(runes)
		}
	}
	return s
}
