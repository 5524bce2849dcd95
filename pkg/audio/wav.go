package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// FloatToPCM16LE converts little-endian 32-bit float samples (the
// Capturer's native format) to little-endian signed 16-bit PCM, the
// format the streaming and batch STT providers speak on the wire.
// Out-of-range samples are clamped to [-1, 1] before scaling.
func FloatToPCM16LE(frame []byte) []byte {
	n := len(frame) / 4
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		bits := uint32(frame[i*4]) | uint32(frame[i*4+1])<<8 | uint32(frame[i*4+2])<<16 | uint32(frame[i*4+3])<<24
		f := float64(math.Float32frombits(bits))
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		sample := int16(math.Round(f * 32767))
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}

func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)


	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")


	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))


	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
