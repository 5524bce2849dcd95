// Package subtitle formats timed transcript segments as SRT or VTT
//.
package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// Segment is one timed piece of a transcript.
type Segment struct {
	Start float64 // seconds
	End float64 // seconds
	Text string
}

// Format names one of the supported output formats.
type Format string

const (
	FormatText Format = "text"
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// Extension returns the file extension associated with a Format.
func Extension(f Format) string {
	switch f {
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	default:
		return "txt"
	}
}

func formatTimestamp(seconds float64, msSep string) string {
	totalMs := int64(math.Round(seconds * 1000))
	hours := totalMs / 3_600_000
	minutes := (totalMs % 3_600_000) / 60_000
	secs := (totalMs % 60_000) / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, msSep, ms)
}

func formatSRTTime(seconds float64) string { return formatTimestamp(seconds, ",") }
func formatVTTTime(seconds float64) string { return formatTimestamp(seconds, ".") }

// ToSRT renders segments as SRT, 1-based indexing.
func ToSRT(segments []Segment) string {
	var blocks []string
	for i, seg := range segments {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			i+1, formatSRTTime(seg.Start), formatSRTTime(seg.End), strings.TrimSpace(seg.Text)))
	}
	return strings.Join(blocks, "\n")
}

// ToVTT renders segments as WebVTT.
func ToVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatVTTTime(seg.Start), formatVTTTime(seg.End), strings.TrimSpace(seg.Text))
	}
	return b.String()
}
