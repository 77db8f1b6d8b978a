package rules

import "errors"

var (
	// ErrNoHandler is returned when a rule names an action type for which
	// no handler is registered in the executor's registry.
	ErrNoHandler = errors.New("rules: no action handler registered")

	// ErrGuardTimeout is returned when a guardrail never cleared before
	// the rule's deadline expired.
	ErrGuardTimeout = errors.New("rules: guardrail did not clear before deadline")

	// ErrNotFound is returned by the rule store when an id is unknown.
	ErrNotFound = errors.New("rules: rule not found")
)
