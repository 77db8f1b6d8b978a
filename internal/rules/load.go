package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// KnownActionTypes are the action kinds the library registers; used by
// Validate to catch a typo'd action type before a rule is ever saved.
var KnownActionTypes = map[string]bool{
	"remux": true, "move": true, "copy": true, "tag": true,
	"index": true, "hook": true, "proxy": true, "thumbnail": true, "transcode": true,
}

// ruleFile is the on-disk shape: a bare list of rule definitions.
type ruleFile struct {
	Rules []*Rule `yaml:"rules"`
}

// LoadFile parses a YAML rule-definitions file (a top-level "rules:" list)
// into Rule values, without touching the database — used by the CLI's
// rules-validate command.
func LoadFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return f.Rules, nil
}

// Validate checks a rule's structural invariants — trigger set, at least
// one action, every action type recognized — without requiring a database
// or running executor.
func Validate(r *Rule) error {
	if r.Name == "" {
		return fmt.Errorf("rule: name is required")
	}
	if r.Trigger.Type == "" && len(r.Trigger.Any) == 0 {
		return fmt.Errorf("rule %q: trigger.type or trigger.any is required", r.Name)
	}
	for i, alt := range r.Trigger.Any {
		if alt.Event == "" {
			return fmt.Errorf("rule %q: trigger.any[%d].event is required", r.Name, i)
		}
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %q: at least one action is required", r.Name)
	}
	for i, action := range r.Actions {
		if action.Type == "" {
			return fmt.Errorf("rule %q: actions[%d].type is required", r.Name, i)
		}
		if !KnownActionTypes[action.Type] {
			return fmt.Errorf("rule %q: actions[%d].type %q is not a known action", r.Name, i, action.Type)
		}
	}
	for i, cond := range r.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("rule %q: conditions[%d].field is required", r.Name, i)
		}
	}
	return nil
}
