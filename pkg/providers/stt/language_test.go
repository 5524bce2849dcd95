package stt

import "testing"

func TestIsSupportedLanguage(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"EN", true},
		{" fr ", true},
		{"xx", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsSupportedLanguage(c.code); got != c.want {
			t.Errorf("IsSupportedLanguage(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestCanonicalizeLanguageCode(t *testing.T) {
	cases := []struct {
		in string
		want string
		wantOk bool
	}{
		{"en-US", "en", true},
		{"zh-Hans", "zh", true},
		{"zh-Hant", "zh", true},
		{"pt_br", "pt", true},
		{"", "", false},
		{" ", "", false},
	}
	for _, c := range cases {
		got, ok := canonicalizeLanguageCode(c.in)
		if got != c.want || ok != c.wantOk {
			t.Errorf("canonicalizeLanguageCode(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.wantOk)
		}
	}
}

func TestResolveRequestedLanguage(t *testing.T) {
	t.Run("empty is auto", func(t *testing.T) {
		r := ResolveRequestedLanguage("", nil)
		if r.Status != StatusAutoOrEmpty {
			t.Errorf("expected StatusAutoOrEmpty, got %v", r.Status)
		}
	})

	t.Run("auto keyword", func(t *testing.T) {
		r := ResolveRequestedLanguage("auto", nil)
		if r.Status != StatusAutoOrEmpty {
			t.Errorf("expected StatusAutoOrEmpty, got %v", r.Status)
		}
	})

	t.Run("supported code", func(t *testing.T) {
		r := ResolveRequestedLanguage("en-US", nil)
		if r.Status != StatusSupported || r.Hint != "en" {
			t.Errorf("expected supported 'en', got status=%v hint=%q", r.Status, r.Hint)
		}
	})

	t.Run("unsupported code", func(t *testing.T) {
		r := ResolveRequestedLanguage("xx-YY", nil)
		if r.Status != StatusUnsupported {
			t.Errorf("expected StatusUnsupported, got %v", r.Status)
		}
	})

	t.Run("os_input unavailable without resolver", func(t *testing.T) {
		r := ResolveRequestedLanguage("os_input", nil)
		if r.Status != StatusOSInputUnavailable {
			t.Errorf("expected StatusOSInputUnavailable, got %v", r.Status)
		}
	})

	t.Run("os_input resolves via callback", func(t *testing.T) {
		r := ResolveRequestedLanguage("os_input", func() (string, bool) { return "de-DE", true })
		if r.Status != StatusSupported || r.Hint != "de" {
			t.Errorf("expected supported 'de', got status=%v hint=%q", r.Status, r.Hint)
		}
	})
}

func TestNormalizeHintList(t *testing.T) {
	normalized, rejected := NormalizeHintList([]string{"en", "EN", "fr-FR", "zz", ""})
	if len(normalized) != 2 {
		t.Fatalf("expected 2 normalized hints, got %v", normalized)
	}
	if normalized[0] != "en" || normalized[1] != "fr" {
		t.Errorf("unexpected normalized hints: %v", normalized)
	}
	if len(rejected) != 1 || rejected[0] != "zz" {
		t.Errorf("expected 'zz' rejected, got %v", rejected)
	}
}

func TestNormalizeHintListCollapsesDuplicates(t *testing.T) {
	var hints []string
	for i := 0; i < 120; i++ {
		hints = append(hints, "en")
	}
	// all duplicates of "en" collapse to one entry regardless of cap
	normalized, _ := NormalizeHintList(hints)
	if len(normalized) != 1 {
		t.Fatalf("expected dedup to 1 entry, got %d", len(normalized))
	}
}
