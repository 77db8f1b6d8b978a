package rules

import "time"

// Trigger names the event type a rule reacts to, plus an optional list of
// OR-ed alternatives, each with its own event type and path glob.
type Trigger struct {
	Type string       `yaml:"type,omitempty" json:"type,omitempty"`
	Any  []TriggerAlt `yaml:"any,omitempty" json:"any,omitempty"`
}

// TriggerAlt is one alternative within a trigger's any[] list. The first
// alternative whose event type matches and whose PathGlob (if set) matches
// the event path wins.
type TriggerAlt struct {
	Event    string `yaml:"event" json:"event"`
	PathGlob string `yaml:"path_glob,omitempty" json:"path_glob,omitempty"`
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEq    Operator = "="
	OpNe    Operator = "$ne"
	OpGt    Operator = "$gt"
	OpGte   Operator = "$gte"
	OpLt    Operator = "$lt"
	OpLte   Operator = "$lte"
	OpIn    Operator = "$in"
	OpRegex Operator = "$regex"
)

// Condition is one entry in a rule's AND-ed condition list. Field supports
// dotted lookup into the event payload (e.g. "file.extension").
type Condition struct {
	Field string   `yaml:"field" json:"field"`
	Op    Operator `yaml:"op" json:"op"`
	Value any      `yaml:"value" json:"value"`
}

// Guardrails are the runtime preconditions evaluated before each action.
type Guardrails struct {
	CPUGuardPct        float64 `yaml:"cpu_guard_pct,omitempty" json:"cpu_guard_pct,omitempty"`
	GPUGuardPct        float64 `yaml:"gpu_guard_pct,omitempty" json:"gpu_guard_pct,omitempty"`
	PauseWhenRecording bool    `yaml:"pause_when_recording,omitempty" json:"pause_when_recording,omitempty"`
}

// Action is one step of a rule's ordered pipeline: an action type plus its
// parameters, exactly as the action handler of that type expects them.
type Action struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Rule is a stored automation definition: a trigger, a condition list that
// must all hold, and an ordered action pipeline that shares one Context
// across its whole run.
type Rule struct {
	ID             string      `yaml:"id,omitempty" json:"id,omitempty"`
	Name           string      `yaml:"name" json:"name"`
	Priority       int         `yaml:"priority,omitempty" json:"priority,omitempty"`
	Enabled        bool        `yaml:"enabled" json:"enabled"`
	Trigger        Trigger     `yaml:"trigger" json:"trigger"`
	PathGlob       string      `yaml:"path_glob,omitempty" json:"path_glob,omitempty"`
	Conditions     []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Actions        []Action    `yaml:"actions" json:"actions"`
	Guardrails     Guardrails  `yaml:"guardrails,omitempty" json:"guardrails,omitempty"`
	QuietPeriodSec int         `yaml:"quiet_period_sec,omitempty" json:"quiet_period_sec,omitempty"`
	CreatedAt      time.Time   `yaml:"-" json:"created_at,omitempty"`
	UpdatedAt      time.Time   `yaml:"-" json:"updated_at,omitempty"`
}
