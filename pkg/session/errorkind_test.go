package session

import "testing"

func TestCategorizeErrorPrecedence(t *testing.T) {
	cases := []struct {
		msg string
		want ErrorKind
	}{
		{"x509: certificate signed by unknown authority", KindTLSCertificate},
		{"tls: handshake failure", KindTLSHandshake},
		{"context deadline exceeded: timeout", KindTimedOut},
		{"dial tcp: connect: connection refused", KindNetwork},
		{"received 503 from upstream", KindServer5xx},
		{"failed to parse json response", KindParse},
		{"something completely unrecognized", KindUnknown},
	}
	for _, c := range cases {
		if got := CategorizeError(c.msg); got != c.want {
			t.Errorf("CategorizeError(%q) = %q, want %q", c.msg, got, c.want)
		}
	}
}

func TestCategorizeErrorCaseInsensitive(t *testing.T) {
	if got := CategorizeError("TIMEOUT WAITING FOR RESPONSE"); got != KindTimedOut {
		t.Errorf("got %q", got)
	}
}
