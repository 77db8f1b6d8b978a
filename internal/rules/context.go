package rules

// Context is the mutable carrier threaded through one rule execution. It
// holds the artifact as it existed at trigger time, the artifact the next
// action should operate on, the history of prior active artifacts, and the
// template variables derived from the triggering event.
type Context struct {
	Original Artifact
	Active   Artifact
	History  []Artifact
	Vars     map[string]any
}

// NewContext builds a Context for a rule firing against path, seeded with
// vars taken from the triggering event (asset_id, event fields, ...).
func NewContext(path string, vars map[string]any) *Context {
	art := NewArtifact(path)
	if vars == nil {
		vars = map[string]any{}
	}
	return &Context{
		Original: art,
		Active:   art,
		Vars:     vars,
	}
}

// UpdateActive sets the context's active artifact to next, appending the
// previous active artifact to history only if its path actually changed —
// an action that ran in place (e.g. tag) shouldn't pollute history with a
// no-op entry.
func (c *Context) UpdateActive(next Artifact) {
	if c.Active.Path != next.Path {
		c.History = append(c.History, c.Active)
	}
	c.Active = next
}
