// Package trigger decides whether incoming events start workflow runs.
package trigger

import (
	"log/slog"

	"github.com/systemstart/step-runner/pkg/api"
)

// Event is an incoming occurrence that may start a run.
type Event struct {
	Kind   string `json:"kind" yaml:"kind"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

var knownKinds = map[string]bool{
	api.TriggerPush:        true,
	api.TriggerPullRequest: true,
	api.TriggerManual:      true,
}

// Evaluator matches events against a workflow's declared trigger set.
type Evaluator struct {
	accepted map[string]bool
}

// NewEvaluator builds an evaluator from declared trigger kinds.
func NewEvaluator(kinds []string) *Evaluator {
	accepted := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		accepted[k] = true
	}
	return &Evaluator{accepted: accepted}
}

// Evaluate reports whether the event should start a run. Events of an
// unrecognized kind are logged and rejected, never fatal.
func (e *Evaluator) Evaluate(ev Event) bool {
	if !knownKinds[ev.Kind] {
		slog.Warn("ignoring event of unknown kind", "kind", ev.Kind)
		return false
	}
	return e.accepted[ev.Kind]
}
