// Package output delivers transcribed text to the foreground application
//: direct keystroke simulation, or one of the clipboard-paste
// variants with format-preserving backup/restore.
package output

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/dictation-tools/dictator/pkg/logging"
	"github.com/dictation-tools/dictator/pkg/settings"
)

const (
	clipboardSettleDelay = 50 * time.Millisecond
	pasteSettleDelay = 50 * time.Millisecond
	selectionCaptureWait = 80 * time.Millisecond
)

// Keystroker simulates keyboard input on the active window. Linux backs
// it with a wtype/dotool/xdotool fallback chain (keystroke_linux.go);
// no implementation for other platforms is included.
type Keystroker interface {
	// TypeText emits each rune of text as a keystroke.
	TypeText(text string) error
	// SendChord sends a paste or selection-capture chord.
	SendChord(chord Chord) error
}

// Chord names one of the fixed key combinations the injector sends.
type Chord int

const (
	ChordPasteCtrlV Chord = iota
	ChordPasteCtrlShiftV
	ChordPasteShiftInsert
	ChordCut
	ChordCopy
)

// Injector implements the output methods a binding's action can select
//.
type Injector struct {
	keys Keystroker
	log logging.Logger
}

func NewInjector(keys Keystroker, log logging.Logger) *Injector {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Injector{keys: keys, log: log}
}

// Deliver routes text to the foreground app per the configured output
// method and clipboard discipline.
func (inj *Injector) Deliver(text string, method settings.OutputMethod, discipline settings.ClipboardDiscipline, convertLFToCRLF bool) error {
	switch method {
	case settings.OutputNone:
		return nil
	case settings.OutputDirect:
		return inj.keys.TypeText(text)
	case settings.OutputClipboardCtrlV:
		return inj.pasteViaClipboard(text, ChordPasteCtrlV, discipline, convertLFToCRLF)
	case settings.OutputClipboardCtrlShiftV:
		return inj.pasteViaClipboard(text, ChordPasteCtrlShiftV, discipline, convertLFToCRLF)
	case settings.OutputClipboardShiftInsert:
		return inj.pasteViaClipboard(text, ChordPasteShiftInsert, discipline, convertLFToCRLF)
	default:
		return nil
	}
}

func (inj *Injector) pasteViaClipboard(text string, chord Chord, discipline settings.ClipboardDiscipline, convertLFToCRLF bool) error {
	var textBackup string
	var haveTextBackup bool

	switch discipline {
	case settings.ClipboardDontModify:
		if prev, err := clipboard.ReadAll(); err == nil {
			textBackup = prev
			haveTextBackup = true
		}
	case settings.ClipboardRestoreAdvanced:
		// Go's clipboard package only exposes the text format; a full
		// multi-format backup (as the original does on Windows) has no
		// counterpart here, so RestoreAdvanced degrades to a text-only
		// backup rather than silently modifying clipboard with no
		// restoration at all.
		if prev, err := clipboard.ReadAll(); err == nil {
			textBackup = prev
			haveTextBackup = true
		} else {
			inj.log.Warn("clipboard backup failed, continuing without restore", "err", err)
		}
	case settings.ClipboardCopyToClipboard:
		// no backup: caller wants the transcription left in the clipboard
	}

	if convertLFToCRLF {
		text = normalizeLineEndings(text)
	}

	if err := clipboard.WriteAll(text); err != nil {
		return err
	}
	time.Sleep(clipboardSettleDelay)

	if err := inj.keys.SendChord(chord); err != nil {
		return err
	}
	time.Sleep(pasteSettleDelay)

	if discipline == settings.ClipboardCopyToClipboard {
		return nil
	}
	if haveTextBackup {
		if err := clipboard.WriteAll(textBackup); err != nil {
			inj.log.Warn("clipboard restore failed", "err", err)
		}
	}
	return nil
}

// normalizeLineEndings collapses any existing CRLF to LF, then expands
// every LF to CRLF, so mixed input never double-converts.
func normalizeLineEndings(text string) string {
	collapsed := strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(collapsed, "\n", "\r\n")
}

// CaptureSelection temporarily clears the clipboard, sends the given
// capture chord (cut or copy), waits for the target app to populate the
// clipboard, reads it back, and always restores whatever was there
// before.
func (inj *Injector) CaptureSelection(chord Chord) (string, error) {
	backup, _ := clipboard.ReadAll()
	defer func() {
		if err := clipboard.WriteAll(backup); err != nil {
			inj.log.Warn("clipboard restore after selection capture failed", "err", err)
		}
	}()

	if err := clipboard.WriteAll(""); err != nil {
		return "", err
	}
	if err := inj.keys.SendChord(chord); err != nil {
		return "", err
	}
	time.Sleep(selectionCaptureWait)

	return clipboard.ReadAll()
}
