// Package dispatch maps keyboard bindings to actions: mode
// selection (push-to-talk vs toggle), the cancel shortcut's universal
// abort path, and the passive decapitalize-monitor keys.
package dispatch

import (
	"sync"
	"time"

	"github.com/dictation-tools/dictator/pkg/logging"
	"github.com/dictation-tools/dictator/pkg/session"
	"github.com/dictation-tools/dictator/pkg/textproc"
)

// Mode selects how a binding's keydown/keyup pair maps to start/stop.
type Mode int

const (
	ModePushToTalk Mode = iota
	ModeToggle
)

// Action is what a binding triggers. Instant actions call Start on every
// keydown and never call Stop; toggle bookkeeping does not apply to them.
type Action struct {
	Start func(bindingID session.BindingID)
	Stop func(bindingID session.BindingID)
	Instant bool
}

// ModeResolver reports the effective mode for a binding, reading the
// binding-specific setting, the active profile's override, or the
// global push-to-talk flag, in that priority order.
type ModeResolver func(bindingID session.BindingID) Mode

const (
	minMonitorTimeout = 100 * time.Millisecond
	maxMonitorTimeout = 60 * time.Second
)

// MonitorBinding is a passive key that never starts a recording; its
// only effect is arming the decapitalize one-shot trigger.
type MonitorBinding session.BindingID

const (
	MonitorDecapitalizePrimary MonitorBinding = "__text_replacement_decapitalize_monitor__"
	MonitorDecapitalizeSecondary MonitorBinding = "__text_replacement_decapitalize_monitor_secondary__"
)

// Dispatcher owns the binding registry and per-binding toggle state.
type Dispatcher struct {
	mu sync.Mutex
	actions map[session.BindingID]Action
	toggled map[session.BindingID]bool
	resolve ModeResolver
	decap *textproc.DecapitalizeState
	monitorTimeout time.Duration

	cancelBinding session.BindingID
	onCancel func()

	log logging.Logger
}

func NewDispatcher(resolve ModeResolver, decap *textproc.DecapitalizeState, monitorTimeout time.Duration, log logging.Logger) *Dispatcher {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Dispatcher{
		actions: make(map[session.BindingID]Action),
		toggled: make(map[session.BindingID]bool),
		resolve: resolve,
		decap: decap,
		monitorTimeout: clampDuration(monitorTimeout, minMonitorTimeout, maxMonitorTimeout),
		cancelBinding: session.BindingCancel,
		log: log,
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// SetCancelHandler installs the universal cancel path invoked when the
// cancel binding fires while a recording is active.
func (d *Dispatcher) SetCancelHandler(onCancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCancel = onCancel
}

// RegisterBinding wires a binding id to its action. Safe to call again
// to replace a binding's action.
func (d *Dispatcher) RegisterBinding(bindingID session.BindingID, action Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[bindingID] = action
}

// UnregisterBinding removes a binding entirely, so its key chord is free
// for another binding to claim (feature-gated bindings.6).
func (d *Dispatcher) UnregisterBinding(bindingID session.BindingID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.actions, bindingID)
	delete(d.toggled, bindingID)
}

// IsRegistered reports whether bindingID currently has an action.
func (d *Dispatcher) IsRegistered(bindingID session.BindingID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.actions[bindingID]
	return ok
}

// OnKeyDown handles a chord activation. isRecordingActive tells the
// cancel-shortcut special case whether it should act at all.
func (d *Dispatcher) OnKeyDown(bindingID session.BindingID, isRecordingActive bool) {
	d.mu.Lock()
	action, ok := d.actions[bindingID]
	if !ok {
		d.mu.Unlock()
		return
	}

	if bindingID == d.cancelBinding {
		onCancel := d.onCancel
		d.mu.Unlock()
		if isRecordingActive && onCancel != nil {
			onCancel()
		}
		return
	}

	if action.Instant {
		d.mu.Unlock()
		if action.Start != nil {
			action.Start(bindingID)
		}
		return
	}

	mode := ModePushToTalk
	if d.resolve != nil {
		mode = d.resolve(bindingID)
	}

	switch mode {
	case ModePushToTalk:
		d.mu.Unlock()
		if action.Start != nil {
			action.Start(bindingID)
		}
	case ModeToggle:
		active := d.toggled[bindingID]
		d.toggled[bindingID] = !active
		d.mu.Unlock()
		if !active {
			if action.Start != nil {
				action.Start(bindingID)
			}
		} else {
			if action.Stop != nil {
				action.Stop(bindingID)
			}
		}
	}
}

// OnKeyUp handles a chord release. No-op for instant actions and for
// bindings currently in toggle mode (keyup has no effect there).
func (d *Dispatcher) OnKeyUp(bindingID session.BindingID) {
	d.mu.Lock()
	action, ok := d.actions[bindingID]
	if !ok || action.Instant {
		d.mu.Unlock()
		return
	}

	mode := ModePushToTalk
	if d.resolve != nil {
		mode = d.resolve(bindingID)
	}
	d.mu.Unlock()

	if mode == ModePushToTalk && action.Stop != nil {
		action.Stop(bindingID)
	}
}

// ResetToggle clears toggle state for a binding, e.g. after auto-stop
// fires the stop path on its behalf.
func (d *Dispatcher) ResetToggle(bindingID session.BindingID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toggled[bindingID] = false
}

// OnMonitorKeyDown arms the decapitalize one-shot trigger. Monitor keys
// never start a recording regardless of what's registered for them.
func (d *Dispatcher) OnMonitorKeyDown(_ MonitorBinding) {
	if d.decap == nil {
		return
	}
	d.decap.MarkEditKeyPressed(d.monitorTimeout)
}
