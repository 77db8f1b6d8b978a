package rules

import "testing"

func TestMatchesSimpleTrigger(t *testing.T) {
	rule := Rule{
		Enabled: true,
		Trigger: Trigger{Type: "file_closed"},
		PathGlob: "/rec/*.mkv",
	}
	if !Matches(rule, Event{Type: "file_closed", Path: "/rec/clip.mkv"}) {
		t.Fatal("expected match")
	}
	if Matches(rule, Event{Type: "file_closed", Path: "/rec/clip.mp4"}) {
		t.Fatal("expected no match on extension")
	}
	if Matches(rule, Event{Type: "asset_tagged", Path: "/rec/clip.mkv"}) {
		t.Fatal("expected no match on trigger type")
	}
}

func TestMatchesAnyAlternatives(t *testing.T) {
	rule := Rule{
		Enabled: true,
		Trigger: Trigger{Any: []TriggerAlt{
			{Event: "file_closed", PathGlob: "/rec/*.mkv"},
			{Event: "move_completed"},
		}},
	}
	if !Matches(rule, Event{Type: "move_completed", Path: "/anything"}) {
		t.Fatal("expected match on second alternative")
	}
	if Matches(rule, Event{Type: "file_closed", Path: "/rec/clip.mp4"}) {
		t.Fatal("expected no match: glob fails on first alternative")
	}
}

func TestConditionOperators(t *testing.T) {
	base := Event{Type: "file_closed", Path: "/rec/clip.mkv", Payload: map[string]any{
		"duration_sec": float64(650),
		"ext":          "mkv",
	}}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq case-insensitive", Condition{Field: "ext", Op: OpEq, Value: "MKV"}, true},
		{"ne", Condition{Field: "ext", Op: OpNe, Value: "mp4"}, true},
		{"gt", Condition{Field: "duration_sec", Op: OpGt, Value: float64(600)}, true},
		{"gte false", Condition{Field: "duration_sec", Op: OpGte, Value: float64(900)}, false},
		{"in", Condition{Field: "ext", Op: OpIn, Value: []any{"mp4", "mkv"}}, true},
		{"regex", Condition{Field: "ext", Op: OpRegex, Value: "^mk."}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rule := Rule{Enabled: true, Trigger: Trigger{Type: "file_closed"}, Conditions: []Condition{c.cond}}
			if got := Matches(rule, base); got != c.want {
				t.Errorf("%s: got %v, want %v", c.name, got, c.want)
			}
		})
	}
}
