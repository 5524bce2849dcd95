package textproc

import "testing"

func TestReplacementEngineNilWhenNoUsableRules(t *testing.T) {
	if e := NewReplacementEngine(nil, nil); e != nil {
		t.Error("expected nil engine for no rules")
	}
	if e := NewReplacementEngine([]Rule{{From: "x", To: "y", Enabled: false}}, nil); e != nil {
		t.Error("expected nil engine when all rules disabled")
	}
}

func TestReplacementEnginePlainCaseInsensitive(t *testing.T) {
	e := NewReplacementEngine([]Rule{{From: "teh", To: "the", Enabled: true}}, nil)
	if got := e.Apply("TEH quick fox"); got != "the quick fox" {
		t.Errorf("got %q", got)
	}
}

func TestReplacementEnginePlainCaseSensitive(t *testing.T) {
	e := NewReplacementEngine([]Rule{{From: "NASA", To: "N.A.S.A.", Enabled: true, CaseSensitive: true}}, nil)
	if got := e.Apply("nasa launched NASA today"); got != "nasa launched N.A.S.A. today" {
		t.Errorf("got %q", got)
	}
}

func TestReplacementEngineRegex(t *testing.T) {
	e := NewReplacementEngine([]Rule{{From: `\d+`, To: "#", Enabled: true, IsRegex: true, CaseSensitive: true}}, nil)
	if got := e.Apply("item 123 and 456"); got != "item # and #" {
		t.Errorf("got %q", got)
	}
}

func TestReplacementEngineInvalidRegexSkipped(t *testing.T) {
	var warned bool
	e := NewReplacementEngine([]Rule{{From: `[`, To: "x", Enabled: true, IsRegex: true}}, func(string,...interface{}) { warned = true })
	if e != nil {
		t.Error("expected nil engine when only rule is an invalid regex")
	}
	if !warned {
		t.Error("expected warning for invalid regex")
	}
}

func TestReplacementEngineOrderedApplication(t *testing.T) {
	e := NewReplacementEngine([]Rule{
		{From: "a", To: "b", Enabled: true, CaseSensitive: true},
		{From: "b", To: "c", Enabled: true, CaseSensitive: true},
	}, nil)
	if got := e.Apply("a"); got != "c" {
		t.Errorf("got %q", got)
	}
}
