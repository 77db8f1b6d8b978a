package rules

import "testing"

func TestValidateRequiresTrigger(t *testing.T) {
	r := &Rule{Name: "no-trigger", Actions: []Action{{Type: "tag"}}}
	if err := Validate(r); err == nil {
		t.Fatal("expected error for missing trigger")
	}
}

func TestValidateRequiresActions(t *testing.T) {
	r := &Rule{Name: "no-actions", Trigger: Trigger{Type: "file_stable"}}
	if err := Validate(r); err == nil {
		t.Fatal("expected error for missing actions")
	}
}

func TestValidateRejectsUnknownActionType(t *testing.T) {
	r := &Rule{
		Name:    "bad-action",
		Trigger: Trigger{Type: "file_stable"},
		Actions: []Action{{Type: "not_a_real_action"}},
	}
	if err := Validate(r); err == nil {
		t.Fatal("expected error for unknown action type")
	}
}

func TestValidateAcceptsWellFormedRule(t *testing.T) {
	r := &Rule{
		Name:    "ok",
		Trigger: Trigger{Type: "file_stable"},
		Actions: []Action{{Type: "index"}, {Type: "tag", Params: map[string]any{"tags": []string{"vod"}}}},
	}
	if err := Validate(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsTriggerAny(t *testing.T) {
	r := &Rule{
		Name:    "any-trigger",
		Trigger: Trigger{Any: []TriggerAlt{{Event: "file_stable", PathGlob: "*.mp4"}}},
		Actions: []Action{{Type: "remux"}},
	}
	if err := Validate(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
