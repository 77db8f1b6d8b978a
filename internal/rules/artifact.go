// Package rules implements the rule engine: the matcher that decides which
// rules fire for an event, and the executor that threads a mutable
// RuleContext through an ordered action pipeline so the output of one
// action becomes the input of the next, following the
// transcode pipeline shape (params struct in, result struct out,
// progress callback) generalized from a single hardcoded action to an
// ordered, context-threaded sequence driven by data (internal/rules.Rule).
package rules

import (
	"path/filepath"
	"strings"
)

// Artifact is a concrete file a rule's actions operate on: a path, its
// extension, and whatever metadata the action that produced it attached.
type Artifact struct {
	Path string
	Ext  string
	MIME string
	Meta map[string]any
}

// NewArtifact builds an Artifact from a path, deriving Ext from the path's
// suffix if not already known.
func NewArtifact(path string) Artifact {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return Artifact{Path: path, Ext: ext, Meta: map[string]any{}}
}

// WithPath returns a copy of the artifact pointing at a new path, updating
// Ext from the new suffix. Meta is not carried forward — a new action's
// result should describe the new file from scratch.
func (a Artifact) WithPath(path string) Artifact {
	return NewArtifact(path)
}
