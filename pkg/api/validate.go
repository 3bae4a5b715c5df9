package api

import (
	"fmt"
	"time"
)

var validTriggers = map[string]bool{
	TriggerPush:        true,
	TriggerPullRequest: true,
	TriggerManual:      true,
}

// Validate checks the workflow definition for errors.
func (w *Workflow) Validate() error {
	if len(w.On) == 0 {
		return fmt.Errorf("workflow declares no triggers")
	}

	seen := make(map[string]bool, len(w.On))
	for _, tr := range w.On {
		if !validTriggers[tr] {
			return fmt.Errorf("unknown trigger %q (valid: %s, %s, %s)",
				tr, TriggerPush, TriggerPullRequest, TriggerManual)
		}
		if seen[tr] {
			return fmt.Errorf("duplicate trigger %q", tr)
		}
		seen[tr] = true
	}

	return w.Job.validate()
}

func (j *JobConfig) validate() error {
	if len(j.Steps) == 0 {
		return fmt.Errorf("job has no steps")
	}

	names := make(map[string]int)
	for i, step := range j.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if prev, exists := names[step.Name]; exists {
			return fmt.Errorf("step %d: duplicate step name %q (first defined at step %d)", i, step.Name, prev)
		}
		names[step.Name] = i

		if err := step.validate(); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}

	return nil
}

func (s *StepConfig) validate() error {
	kinds := 0
	if s.Run != "" {
		kinds++
	}
	if s.Checkout != nil {
		kinds++
	}
	if s.Fetch != nil {
		kinds++
	}
	if kinds == 0 {
		return fmt.Errorf("one of run, checkout or fetch is required")
	}
	if kinds > 1 {
		return fmt.Errorf("run, checkout and fetch are mutually exclusive")
	}

	if s.Run == "" {
		if s.Shell != "" {
			return fmt.Errorf("shell only applies to run steps")
		}
		if s.Timeout != "" {
			return fmt.Errorf("timeout only applies to run steps")
		}
	}

	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %q", s.Timeout)
		}
	}

	if s.Fetch != nil {
		if len(s.Fetch.URLs) == 0 {
			return fmt.Errorf("fetch.urls is required")
		}
		if len(s.Fetch.To) != 0 && len(s.Fetch.To) != len(s.Fetch.URLs) {
			return fmt.Errorf("fetch.to must name one target per url (%d urls, %d targets)",
				len(s.Fetch.URLs), len(s.Fetch.To))
		}
	}

	return nil
}
