package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func floatFrame(samples...float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func loudFrame() []byte { return floatFrame(0.9, -0.9, 0.9, -0.9) }
func quietFrame() []byte { return floatFrame(0.0, 0.0, 0.0, 0.0) }

func TestSmoothedVADRequiresConsecutiveFramesToConfirmSpeech(t *testing.T) {
	v := NewSmoothedVAD(0.1, 0.3)

	for i := 0; i < 6; i++ {
		if ev := v.Process(loudFrame(), 0.02); ev != nil {
			t.Fatalf("expected no event before onset confirmation, got %v at frame %d", ev.Type, i)
		}
	}
	ev := v.Process(loudFrame(), 0.02)
	if ev == nil || ev.Type != VADSpeechStart {
		t.Fatalf("expected speech start on the 7th confirming frame, got %v", ev)
	}
}

func TestSmoothedVADOnsetResetsOnSilence(t *testing.T) {
	v := NewSmoothedVAD(0.1, 0.3)
	for i := 0; i < 5; i++ {
		v.Process(loudFrame(), 0.02)
	}
	v.Process(quietFrame(), 0.02) // resets the consecutive-frame counter

	for i := 0; i < 6; i++ {
		if ev := v.Process(loudFrame(), 0.02); ev != nil {
			t.Fatalf("expected onset counter to have reset, got %v at frame %d", ev.Type, i)
		}
	}
}

func TestSmoothedVADSilenceEndAfterHangover(t *testing.T) {
	v := NewSmoothedVAD(0.1, 0.1)
	for i := 0; i < 7; i++ {
		v.Process(loudFrame(), 0.02)
	}
	if !v.IsSpeaking() {
		t.Fatal("expected speaking state after onset")
	}

	var ev *VADEvent
	for i := 0; i < 10; i++ {
		ev = v.Process(quietFrame(), 0.02)
		if ev != nil {
			break
		}
	}
	if ev == nil || ev.Type != VADSpeechEnd {
		t.Fatalf("expected speech end after hangover duration, got %v", ev)
	}
	if v.IsSpeaking() {
		t.Error("expected not speaking after speech end")
	}
}

func TestSmoothedVADSilenceBeforeSpeechIsNoop(t *testing.T) {
	v := NewSmoothedVAD(0.1, 0.3)
	if ev := v.Process(quietFrame(), 0.02); ev != nil {
		t.Errorf("expected nil event for silence with no prior speech, got %v", ev.Type)
	}
}
