// Package engine executes a workflow's job: steps strictly in declared
// order, one shared environment context, fail-fast or run-through on
// failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/systemstart/step-runner/pkg/api"
	"github.com/systemstart/step-runner/pkg/steps"
	"github.com/systemstart/step-runner/pkg/trigger"
)

// Runner executes workflow runs. The zero value is usable; runs then get
// workspaces under the system temp directory.
type Runner struct {
	WorkspaceRoot string
	KeepWorkspace bool
}

// HandleEvent evaluates the event against the workflow's trigger set and,
// when accepted, executes a run. The second return is false when the
// event was rejected; that is a no-op, not an error.
func (r *Runner) HandleEvent(ctx context.Context, wf *api.Workflow, ev trigger.Event) (*RunResult, bool, error) {
	if !trigger.NewEvaluator(wf.On).Evaluate(ev) {
		slog.Debug("event rejected by trigger set", "workflow", wf.Name, "kind", ev.Kind)
		return nil, false, nil
	}
	result, err := r.Run(ctx, wf)
	return result, true, err
}

// Run executes the workflow's job in a fresh workspace. A non-nil error
// is an engine fault (workspace allocation and the like); ordinary step
// failures are reported only through the RunResult.
func (r *Runner) Run(ctx context.Context, wf *api.Workflow) (*RunResult, error) {
	result := &RunResult{Workflow: wf.Name, Status: StatusSuccess}

	workDir, cleanup, err := r.allocateWorkspace(wf.Name)
	if err != nil {
		result.Status = StatusFailure
		return result, fmt.Errorf("allocating workspace: %w", err)
	}
	defer cleanup()

	slog.Info("starting run", "workflow", wf.Name, "steps", len(wf.Job.Steps),
		"failFast", wf.Job.FailFast, "workspace", workDir)

	env := steps.NewEnvContext(workDir, wf.Job.Env)

	stopped := false
	for _, cfg := range wf.Job.Steps {
		if stopped {
			result.Results = append(result.Results, StepResult{Name: cfg.Name, Status: StatusSkipped})
			continue
		}

		sr := r.runStep(ctx, cfg, wf.Dir, env)
		result.Results = append(result.Results, sr)

		if sr.Status == StatusFailure || sr.Status == StatusCancelled {
			result.Status = StatusFailure
			if wf.Job.FailFast {
				slog.Info("fail-fast: skipping remaining steps", "workflow", wf.Name, "after", cfg.Name)
				stopped = true
			}
		}
	}

	slog.Info("run finished", "workflow", wf.Name, "status", result.Status)
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, cfg api.StepConfig, baseDir string, env *steps.EnvContext) StepResult {
	sr := StepResult{Name: cfg.Name, Started: time.Now()}

	step, err := steps.New(cfg, baseDir)
	if err != nil {
		sr.Status = StatusFailure
		sr.Error = err.Error()
		return sr
	}

	slog.Info("running step", "step", cfg.Name, "kind", cfg.Kind())

	res, err := step.Run(ctx, env)
	sr.Duration = time.Since(sr.Started)
	if res != nil {
		sr.Output = string(res.Output)
	}

	switch {
	case err == nil:
		sr.Status = StatusSuccess
		slog.Info("step succeeded", "step", cfg.Name, "duration", sr.Duration)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		sr.Status = StatusCancelled
		sr.Error = err.Error()
		slog.Warn("step cancelled", "step", cfg.Name, "error", err)
	default:
		sr.Status = StatusFailure
		sr.Error = err.Error()
		slog.Error("step failed", "step", cfg.Name, "error", err)
	}
	return sr
}
