package session

import "strings"

// ErrorKind is the fixed taxonomy the overlay categorizer reduces any
// error string to.
type ErrorKind string

const (
	KindAudioDevice ErrorKind = "audio_device"
	KindStreamingProtocol ErrorKind = "streaming_protocol"
	KindStreamingClosedEarly ErrorKind = "streaming_closed_before_completion"
	KindTimedOut ErrorKind = "timed_out"
	KindTLSCertificate ErrorKind = "tls_certificate"
	KindTLSHandshake ErrorKind = "tls_handshake"
	KindNetwork ErrorKind = "network"
	KindServer5xx ErrorKind = "server_5xx"
	KindParse ErrorKind = "parse"
	KindUnknown ErrorKind = "unknown"
)

// CategorizeError classifies an error message by substring match, per the
// fixed precedence in Matching is case-insensitive.
func CategorizeError(msg string) ErrorKind {
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "certificate", "unknownissuer", "expired"):
		return KindTLSCertificate
	case containsAny(lower, "tls", "handshake", "ssl"):
		return KindTLSHandshake
	case containsAny(lower, "timeout", "timed out"):
		return KindTimedOut
	case containsAny(lower, "connect", "network", "dns", "resolve", "unreachable"):
		return KindNetwork
	case containsAny(lower, "500", "502", "503", "504", "server"):
		return KindServer5xx
	case containsAny(lower, "parse", "json", "deserialize"):
		return KindParse
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
