package dispatch

import (
	"testing"
	"time"

	"github.com/dictation-tools/dictator/pkg/session"
	"github.com/dictation-tools/dictator/pkg/textproc"
)

func TestDispatcherPushToTalk(t *testing.T) {
	var starts, stops int
	d := NewDispatcher(func(session.BindingID) Mode { return ModePushToTalk }, nil, time.Second, nil)
	d.RegisterBinding(session.BindingTranscribe, Action{
		Start: func(session.BindingID) { starts++ },
		Stop: func(session.BindingID) { stops++ },
	})

	d.OnKeyDown(session.BindingTranscribe, false)
	d.OnKeyUp(session.BindingTranscribe)

	if starts != 1 || stops != 1 {
		t.Errorf("expected one start and one stop, got starts=%d stops=%d", starts, stops)
	}
}

func TestDispatcherToggle(t *testing.T) {
	var starts, stops int
	d := NewDispatcher(func(session.BindingID) Mode { return ModeToggle }, nil, time.Second, nil)
	d.RegisterBinding(session.BindingTranscribe, Action{
		Start: func(session.BindingID) { starts++ },
		Stop: func(session.BindingID) { stops++ },
	})

	d.OnKeyDown(session.BindingTranscribe, false) // start
	d.OnKeyUp(session.BindingTranscribe) // no-op in toggle mode
	d.OnKeyDown(session.BindingTranscribe, false) // stop

	if starts != 1 || stops != 1 {
		t.Errorf("expected one start and one stop from two keydowns, got starts=%d stops=%d", starts, stops)
	}
}

func TestDispatcherInstantBypassesToggle(t *testing.T) {
	var starts, stops int
	d := NewDispatcher(func(session.BindingID) Mode { return ModeToggle }, nil, time.Second, nil)
	d.RegisterBinding(session.BindingCycleProfile, Action{
		Start: func(session.BindingID) { starts++ },
		Stop: func(session.BindingID) { stops++ },
		Instant: true,
	})

	d.OnKeyDown(session.BindingCycleProfile, false)
	d.OnKeyDown(session.BindingCycleProfile, false)
	d.OnKeyUp(session.BindingCycleProfile)

	if starts != 2 || stops != 0 {
		t.Errorf("expected two starts and no stops for instant action, got starts=%d stops=%d", starts, stops)
	}
}

func TestDispatcherCancelOnlyWhileRecording(t *testing.T) {
	var cancelled int
	d := NewDispatcher(func(session.BindingID) Mode { return ModePushToTalk }, nil, time.Second, nil)
	d.RegisterBinding(session.BindingCancel, Action{})
	d.SetCancelHandler(func() { cancelled++ })

	d.OnKeyDown(session.BindingCancel, false)
	if cancelled != 0 {
		t.Errorf("cancel must not act while not recording")
	}

	d.OnKeyDown(session.BindingCancel, true)
	if cancelled != 1 {
		t.Errorf("expected cancel to act while recording, got %d", cancelled)
	}
}

func TestDispatcherUnregisterBinding(t *testing.T) {
	d := NewDispatcher(func(session.BindingID) Mode { return ModePushToTalk }, nil, time.Second, nil)
	d.RegisterBinding(session.BindingTranscribe, Action{})
	if !d.IsRegistered(session.BindingTranscribe) {
		t.Fatal("expected binding to be registered")
	}
	d.UnregisterBinding(session.BindingTranscribe)
	if d.IsRegistered(session.BindingTranscribe) {
		t.Error("expected binding to be unregistered")
	}
}

func TestDispatcherMonitorKeyArmsDecap(t *testing.T) {
	decap := textproc.NewDecapitalizeState()
	d := NewDispatcher(nil, decap, time.Second, nil)

	d.OnMonitorKeyDown(MonitorDecapitalizePrimary)

	got := decap.MaybeDecapitalizeNextChunkRealtime("Hello")
	if got != "hello" {
		t.Errorf("expected monitor key to arm decapitalize trigger, got %q", got)
	}
}

func TestClampDuration(t *testing.T) {
	if got := clampDuration(10*time.Millisecond, minMonitorTimeout, maxMonitorTimeout); got != minMonitorTimeout {
		t.Errorf("expected floor clamp, got %v", got)
	}
	if got := clampDuration(time.Hour, minMonitorTimeout, maxMonitorTimeout); got != maxMonitorTimeout {
		t.Errorf("expected ceiling clamp, got %v", got)
	}
}
