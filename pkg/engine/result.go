package engine

import "time"

// Status classifies a finished step or run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// StepResult is the immutable record of one step attempt. Skipped steps
// (fail-fast stopped the run before them) have an empty Output and no
// Started time.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started,omitzero"`
	Duration time.Duration `json:"duration,omitempty"`
}

// RunResult aggregates the step results of one run. Status is failure
// iff any step result is failure or cancelled; skipped steps do not
// count against the run.
type RunResult struct {
	Workflow string       `json:"workflow"`
	Status   Status       `json:"status"`
	Results  []StepResult `json:"results"`
}

// Failed reports whether the run ended in failure.
func (r *RunResult) Failed() bool {
	return r.Status != StatusSuccess
}
